package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type RegisterRequest struct {
	FullName string        `json:"full_name"`
	SiteID   *snowflake.ID `json:"site_id,omitempty"`
}

type Service interface {
	// Register creates the subject in PENDING_APPROVAL; it is the only
	// entry point into the lifecycle.
	Register(ctx context.Context, orgID snowflake.ID, req RegisterRequest) (*Subject, error)
	Approve(ctx context.Context, orgID, id snowflake.ID) (*Subject, error)
	Reject(ctx context.Context, orgID, id snowflake.ID, reason string) (*Subject, error)
	Suspend(ctx context.Context, orgID, id snowflake.ID) (*Subject, error)
	GetByID(ctx context.Context, orgID, id snowflake.ID) (*Subject, error)
	List(ctx context.Context, orgID snowflake.ID) ([]Subject, error)
}

var (
	ErrInvalidName       = errors.New("invalid_full_name")
	ErrInvalidReason     = errors.New("invalid_reason")
	ErrNotFound          = errors.New("subject_not_found")
	ErrInvalidTransition = errors.New("invalid_transition")
)
