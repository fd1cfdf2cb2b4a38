package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	subjectdomain "github.com/ottimo/presence/internal/subject/domain"
)

func (s *Server) registerSubjectRoutes() {
	v1 := s.engine.Group("/v1/organizations/:org_id")

	v1.POST("/subjects", s.registerSubject)
	v1.GET("/subjects", s.listSubjects)
	v1.GET("/subjects/:subject_id", s.getSubject)
	v1.POST("/subjects/:subject_id/approve", s.approveSubject)
	v1.POST("/subjects/:subject_id/reject", s.rejectSubject)
	v1.POST("/subjects/:subject_id/suspend", s.suspendSubject)
}

func (s *Server) registerSubject(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}

	var req subjectdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	subject, err := s.subjectSvc.Register(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

func (s *Server) listSubjects(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}

	subjects, err := s.subjectSvc.List(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

func (s *Server) getSubject(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}
	subjectID, ok := pathID(c, "subject_id")
	if !ok {
		return
	}

	subject, err := s.subjectSvc.GetByID(c.Request.Context(), orgID, subjectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (s *Server) approveSubject(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}
	subjectID, ok := pathID(c, "subject_id")
	if !ok {
		return
	}

	subject, err := s.subjectSvc.Approve(c.Request.Context(), orgID, subjectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (s *Server) rejectSubject(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}
	subjectID, ok := pathID(c, "subject_id")
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

	subject, err := s.subjectSvc.Reject(c.Request.Context(), orgID, subjectID, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (s *Server) suspendSubject(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}
	subjectID, ok := pathID(c, "subject_id")
	if !ok {
		return
	}

	subject, err := s.subjectSvc.Suspend(c.Request.Context(), orgID, subjectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}
