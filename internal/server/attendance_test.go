package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	attdomain "github.com/ottimo/presence/internal/attendance/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAttendanceService struct {
	submitResult *attdomain.SubmitResult
	submitErr    error
	submitCalls  int
}

func (f *fakeAttendanceService) Submit(ctx context.Context, orgID snowflake.ID, req attdomain.SubmitRequest) (*attdomain.SubmitResult, error) {
	f.submitCalls++
	_ = ctx
	_ = req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResult, nil
}

func (f *fakeAttendanceService) Review(ctx context.Context, orgID, recordID snowflake.ID, status attdomain.ApprovalStatus, reason string) (*attdomain.AttendanceRecord, error) {
	return nil, attdomain.ErrRecordNotFound
}

func (f *fakeAttendanceService) GetByID(ctx context.Context, orgID, recordID snowflake.ID) (*attdomain.AttendanceRecord, error) {
	return nil, attdomain.ErrRecordNotFound
}

func (f *fakeAttendanceService) ListBySubject(ctx context.Context, orgID, subjectID snowflake.ID) ([]attdomain.AttendanceRecord, error) {
	return nil, nil
}

func (f *fakeAttendanceService) ListPendingReview(ctx context.Context, orgID snowflake.ID) ([]attdomain.AttendanceRecord, error) {
	return nil, nil
}

func newIntakeTestServer(fake *fakeAttendanceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	s := &Server{engine: engine, attendanceSvc: fake}
	s.registerAttendanceRoutes()
	return engine
}

func submitBody(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"event_id":    "4b27e6a9-2f30-44f2-9f3c-5ac5a2a7a111",
		"subject_id":  "12345",
		"event_type":  "CHECK_IN",
		"captured_at": "2025-06-02T08:00:00Z",
		"source_code": "qr-head-office",
	})
	require.NoError(t, err)
	return raw
}

func postIntake(t *testing.T, engine *gin.Engine, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/organizations/100/attendance/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestIntakeCreated(t *testing.T) {
	fake := &fakeAttendanceService{
		submitResult: &attdomain.SubmitResult{
			Record: &attdomain.AttendanceRecord{
				ID:             snowflake.ID(777),
				ApprovalStatus: attdomain.ApprovalApproved,
			},
		},
	}
	w := postIntake(t, newIntakeTestServer(fake), submitBody(t))

	require.Equal(t, http.StatusCreated, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "777", body["record_id"])
	assert.Equal(t, "APPROVED", body["approval_status"])
	_, hasDuplicate := body["duplicate"]
	assert.False(t, hasDuplicate)
}

func TestIntakeDuplicateReplay(t *testing.T) {
	fake := &fakeAttendanceService{
		submitResult: &attdomain.SubmitResult{
			Record: &attdomain.AttendanceRecord{
				ID:             snowflake.ID(777),
				ApprovalStatus: attdomain.ApprovalPending,
			},
			Duplicate: true,
		},
	}
	w := postIntake(t, newIntakeTestServer(fake), submitBody(t))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, "PENDING", body["approval_status"])
}

func TestIntakeDefinitiveRejection(t *testing.T) {
	for _, serr := range []error{
		attdomain.ErrSubjectNotApproved,
		attdomain.ErrNoOpenCheckIn,
		attdomain.ErrDuplicateCheckIn,
	} {
		fake := &fakeAttendanceService{submitErr: serr}
		w := postIntake(t, newIntakeTestServer(fake), submitBody(t))

		require.Equal(t, http.StatusConflict, w.Code, serr.Error())
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, serr.Error(), body["reason"])
	}
}

func TestIntakeMalformed(t *testing.T) {
	fake := &fakeAttendanceService{submitErr: attdomain.ErrInvalidEventID}
	w := postIntake(t, newIntakeTestServer(fake), submitBody(t))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_idempotency_key", body["reason"])

	// Body that is not JSON at all.
	fake = &fakeAttendanceService{}
	w = postIntake(t, newIntakeTestServer(fake), []byte("{nope"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, fake.submitCalls)
}

func TestIntakeIdempotencyHeaderMismatch(t *testing.T) {
	fake := &fakeAttendanceService{}
	engine := newIntakeTestServer(fake)

	req := httptest.NewRequest(http.MethodPost, "/v1/organizations/100/attendance/events", bytes.NewReader(submitBody(t)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "some-other-key")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, fake.submitCalls)
}
