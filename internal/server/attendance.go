package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	attdomain "github.com/ottimo/presence/internal/attendance/domain"
)

func (s *Server) registerAttendanceRoutes() {
	v1 := s.engine.Group("/v1/organizations/:org_id")

	v1.POST("/attendance/events", s.submitAttendanceEvent)
	v1.GET("/attendance/records/pending", s.listPendingRecords)
	v1.GET("/attendance/records/:record_id", s.getAttendanceRecord)
	v1.POST("/attendance/records/:record_id/approve", s.approveRecord)
	v1.POST("/attendance/records/:record_id/reject", s.rejectRecord)
	v1.GET("/subjects/:subject_id/attendance", s.listSubjectAttendance)
}

// submitAttendanceEvent is the device intake endpoint. It writes its
// responses directly because agents parse the body to decide between
// retrying and abandoning an event:
//
//	201 {record_id, approval_status}                  stored
//	200 {record_id, approval_status, duplicate:true}  idempotent replay
//	409 {reason}                                      definitive rejection
//	400 {reason}                                      malformed submission
func (s *Server) submitAttendanceEvent(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}

	if s.ingestLimiter.Enabled() {
		allowed, retryAfter, err := s.ingestLimiter.AllowOrg(c.Request.Context(), orgID.String())
		if err == nil && !allowed {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, gin.H{"reason": "rate_limited"})
			return
		}
	}

	var req attdomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "malformed_request"})
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" && key != req.EventID {
		c.JSON(http.StatusBadRequest, gin.H{"reason": attdomain.ErrInvalidEventID.Error()})
		return
	}

	res, err := s.attendanceSvc.Submit(c.Request.Context(), orgID, req)
	if err != nil {
		status, payload := mapIntakeError(err)
		c.JSON(status, payload)
		return
	}

	body := gin.H{
		"record_id":       res.Record.ID.String(),
		"approval_status": res.Record.ApprovalStatus,
	}
	if res.Duplicate {
		body["duplicate"] = true
		c.JSON(http.StatusOK, body)
		return
	}
	c.JSON(http.StatusCreated, body)
}

func mapIntakeError(err error) (int, gin.H) {
	switch {
	case errors.Is(err, attdomain.ErrInvalidEventID),
		errors.Is(err, attdomain.ErrInvalidEventType),
		errors.Is(err, attdomain.ErrInvalidSubjectID):
		return http.StatusBadRequest, gin.H{"reason": err.Error()}
	case errors.Is(err, attdomain.ErrSubjectNotApproved),
		errors.Is(err, attdomain.ErrNoOpenCheckIn),
		errors.Is(err, attdomain.ErrDuplicateCheckIn):
		return http.StatusConflict, gin.H{"reason": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"reason": "internal_error"}
	}
}

func (s *Server) listPendingRecords(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}

	records, err := s.attendanceSvc.ListPendingReview(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) getAttendanceRecord(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}
	recordID, ok := pathID(c, "record_id")
	if !ok {
		return
	}

	record, err := s.attendanceSvc.GetByID(c.Request.Context(), orgID, recordID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) approveRecord(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}
	recordID, ok := pathID(c, "record_id")
	if !ok {
		return
	}

	record, err := s.attendanceSvc.Review(c.Request.Context(), orgID, recordID, attdomain.ApprovalApproved, "")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) rejectRecord(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}
	recordID, ok := pathID(c, "record_id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.attendanceSvc.Review(c.Request.Context(), orgID, recordID, attdomain.ApprovalRejected, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) listSubjectAttendance(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}
	subjectID, ok := pathID(c, "subject_id")
	if !ok {
		return
	}

	records, err := s.attendanceSvc.ListBySubject(c.Request.Context(), orgID, subjectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
