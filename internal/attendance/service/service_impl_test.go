package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	attdomain "github.com/ottimo/presence/internal/attendance/domain"
	attrepo "github.com/ottimo/presence/internal/attendance/repository"
	"github.com/ottimo/presence/internal/clock"
	orgdomain "github.com/ottimo/presence/internal/organization/domain"
	orgrepo "github.com/ottimo/presence/internal/organization/repository"
	subjectdomain "github.com/ottimo/presence/internal/subject/domain"
	subjectrepo "github.com/ottimo/presence/internal/subject/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testOrgID  = snowflake.ID(100)
	testSiteID = snowflake.ID(200)

	siteLat     = -6.2000000
	siteLon     = 106.8166666
	siteRadiusM = 150.0
)

type fixture struct {
	svc     *Service
	db      *gorm.DB
	clock   *clock.FakeClock
	subject *subjectdomain.Subject
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.Site{},
		&subjectdomain.Subject{},
		&attdomain.AttendanceRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))

	require.NoError(t, gdb.Create(&orgdomain.Site{
		ID:              testSiteID,
		OrgID:           testOrgID,
		Name:            "Head Office",
		Code:            "head-office",
		Latitude:        siteLat,
		Longitude:       siteLon,
		GeofenceRadiusM: siteRadiusM,
		Active:          true,
		CreatedAt:       fake.Now(),
		UpdatedAt:       fake.Now(),
	}).Error)

	siteID := testSiteID
	subject := &subjectdomain.Subject{
		ID:        node.Generate(),
		OrgID:     testOrgID,
		SiteID:    &siteID,
		FullName:  "Dina Prasetyo",
		Status:    subjectdomain.StatusApproved,
		CreatedAt: fake.Now(),
		UpdatedAt: fake.Now(),
	}
	require.NoError(t, gdb.Create(subject).Error)

	svc := NewService(ServiceParam{
		DB:          gdb,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fake,
		Repo:        attrepo.Provide(),
		SubjectRepo: subjectrepo.Provide(),
		OrgRepo:     orgrepo.Provide(),
	}).(*Service)

	return &fixture{svc: svc, db: gdb, clock: fake, subject: subject}
}

func (f *fixture) request(eventType attdomain.EventType, loc *attdomain.Location) attdomain.SubmitRequest {
	return attdomain.SubmitRequest{
		EventID:    uuid.NewString(),
		SubjectID:  f.subject.ID.String(),
		EventType:  eventType,
		CapturedAt: f.clock.Now(),
		Location:   loc,
		SourceCode: "qr-head-office",
	}
}

func insideLocation() *attdomain.Location {
	return &attdomain.Location{Latitude: siteLat, Longitude: siteLon}
}

func TestSubmitIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.request(attdomain.EventCheckIn, insideLocation())

	first, err := f.svc.Submit(ctx, testOrgID, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	// Same event_id replayed after a lost response.
	second, err := f.svc.Submit(ctx, testOrgID, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, first.Record.ApprovalStatus, second.Record.ApprovalStatus)

	var count int64
	require.NoError(t, f.db.Model(&attdomain.AttendanceRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed event id", func(t *testing.T) {
		f := newFixture(t)
		req := f.request(attdomain.EventCheckIn, nil)
		req.EventID = "not-a-uuid"
		_, err := f.svc.Submit(ctx, testOrgID, req)
		assert.ErrorIs(t, err, attdomain.ErrInvalidEventID)
	})

	t.Run("unknown event type", func(t *testing.T) {
		f := newFixture(t)
		req := f.request(attdomain.EventType("BREAK"), nil)
		_, err := f.svc.Submit(ctx, testOrgID, req)
		assert.ErrorIs(t, err, attdomain.ErrInvalidEventType)
	})

	t.Run("subject not approved", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.db.Model(f.subject).Update("status", subjectdomain.StatusSuspended).Error)
		_, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, nil))
		assert.ErrorIs(t, err, attdomain.ErrSubjectNotApproved)
	})

	t.Run("unknown subject", func(t *testing.T) {
		f := newFixture(t)
		req := f.request(attdomain.EventCheckIn, nil)
		req.SubjectID = snowflake.ID(424242).String()
		_, err := f.svc.Submit(ctx, testOrgID, req)
		assert.ErrorIs(t, err, attdomain.ErrSubjectNotApproved)
	})
}

func TestSubmitDayOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("check-out without open check-in", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckOut, insideLocation()))
		assert.ErrorIs(t, err, attdomain.ErrNoOpenCheckIn)
	})

	t.Run("second check-in while one is open", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, insideLocation()))
		require.NoError(t, err)

		f.clock.Advance(time.Minute)
		_, err = f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, insideLocation()))
		assert.ErrorIs(t, err, attdomain.ErrDuplicateCheckIn)
	})

	t.Run("check-in then check-out then check-in again", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, insideLocation()))
		require.NoError(t, err)

		f.clock.Advance(4 * time.Hour)
		_, err = f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckOut, insideLocation()))
		require.NoError(t, err)

		// Split shift on the same day.
		f.clock.Advance(time.Hour)
		_, err = f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, insideLocation()))
		require.NoError(t, err)
	})

	t.Run("yesterday's check-in does not satisfy today's check-out", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, insideLocation()))
		require.NoError(t, err)

		f.clock.Advance(24 * time.Hour)
		_, err = f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckOut, insideLocation()))
		assert.ErrorIs(t, err, attdomain.ErrNoOpenCheckIn)
	})
}

func TestSubmitGeofence(t *testing.T) {
	ctx := context.Background()

	t.Run("inside radius auto-approves", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, insideLocation()))
		require.NoError(t, err)
		assert.Equal(t, attdomain.ApprovalApproved, res.Record.ApprovalStatus)
	})

	t.Run("missing location goes to review", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, nil))
		require.NoError(t, err)
		assert.Equal(t, attdomain.ApprovalPending, res.Record.ApprovalStatus)
	})

	t.Run("outside radius goes to review", func(t *testing.T) {
		f := newFixture(t)
		// Roughly 1.1km north of the site.
		far := &attdomain.Location{Latitude: siteLat + 0.01, Longitude: siteLon}
		res, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, far))
		require.NoError(t, err)
		assert.Equal(t, attdomain.ApprovalPending, res.Record.ApprovalStatus)
	})

	t.Run("exactly at the boundary goes to review", func(t *testing.T) {
		f := newFixture(t)
		// One degree of latitude is ~111.195km on this sphere model, so
		// this offset lands the point at the 150m radius.
		boundary := &attdomain.Location{
			Latitude:  siteLat + (siteRadiusM/earthCircumferenceMPerDeg)*1.000001,
			Longitude: siteLon,
		}
		d := attdomain.DistanceMeters(boundary.Latitude, boundary.Longitude, siteLat, siteLon)
		require.InDelta(t, siteRadiusM, d, 0.5)

		res, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, boundary))
		require.NoError(t, err)
		assert.Equal(t, attdomain.ApprovalPending, res.Record.ApprovalStatus)
	})
}

// Meters per degree of latitude on the haversine sphere.
const earthCircumferenceMPerDeg = 6371000.0 * 2 * 3.141592653589793 / 360

func TestReview(t *testing.T) {
	ctx := context.Background()

	t.Run("approve pending record", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, nil))
		require.NoError(t, err)
		require.Equal(t, attdomain.ApprovalPending, res.Record.ApprovalStatus)

		got, err := f.svc.Review(ctx, testOrgID, res.Record.ID, attdomain.ApprovalApproved, "")
		require.NoError(t, err)
		assert.Equal(t, attdomain.ApprovalApproved, got.ApprovalStatus)

		// A second resolution is refused.
		_, err = f.svc.Review(ctx, testOrgID, res.Record.ID, attdomain.ApprovalRejected, "late")
		assert.ErrorIs(t, err, attdomain.ErrNotPending)
	})

	t.Run("reject requires reason", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, nil))
		require.NoError(t, err)

		_, err = f.svc.Review(ctx, testOrgID, res.Record.ID, attdomain.ApprovalRejected, "  ")
		assert.ErrorIs(t, err, attdomain.ErrInvalidReason)

		got, err := f.svc.Review(ctx, testOrgID, res.Record.ID, attdomain.ApprovalRejected, "wrong site")
		require.NoError(t, err)
		require.NotNil(t, got.RejectionReason)
		assert.Equal(t, "wrong site", *got.RejectionReason)
	})

	t.Run("unknown record", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Review(ctx, testOrgID, snowflake.ID(999), attdomain.ApprovalApproved, "")
		assert.ErrorIs(t, err, attdomain.ErrRecordNotFound)
	})
}

func TestListPendingReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approved, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckIn, insideLocation()))
	require.NoError(t, err)
	require.Equal(t, attdomain.ApprovalApproved, approved.Record.ApprovalStatus)

	f.clock.Advance(4 * time.Hour)
	pending, err := f.svc.Submit(ctx, testOrgID, f.request(attdomain.EventCheckOut, nil))
	require.NoError(t, err)
	require.Equal(t, attdomain.ApprovalPending, pending.Record.ApprovalStatus)

	records, err := f.svc.ListPendingReview(ctx, testOrgID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, pending.Record.ID, records[0].ID)
}
