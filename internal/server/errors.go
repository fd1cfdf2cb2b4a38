package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	attdomain "github.com/ottimo/presence/internal/attendance/domain"
	organizationdomain "github.com/ottimo/presence/internal/organization/domain"
	subjectdomain "github.com/ottimo/presence/internal/subject/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware renders errors pushed onto the gin context by
// handlers that did not write a response themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Reason:  err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
			Reason:  err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
			Reason:  err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidLocation),
		errors.Is(err, organizationdomain.ErrInvalidRadius),
		errors.Is(err, subjectdomain.ErrInvalidName),
		errors.Is(err, subjectdomain.ErrInvalidReason),
		errors.Is(err, attdomain.ErrInvalidReason):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, organizationdomain.ErrSiteNotFound),
		errors.Is(err, subjectdomain.ErrNotFound),
		errors.Is(err, attdomain.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, organizationdomain.ErrDuplicateSlug),
		errors.Is(err, organizationdomain.ErrDuplicateSite),
		errors.Is(err, subjectdomain.ErrInvalidTransition),
		errors.Is(err, attdomain.ErrNotPending):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case isValidationError(err):
		return "validation_error", err.Error()
	case isNotFoundError(err):
		return "not_found", err.Error()
	case isConflictError(err):
		return "conflict", err.Error()
	default:
		return "internal_error", "internal_error"
	}
}
