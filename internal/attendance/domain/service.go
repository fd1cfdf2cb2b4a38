package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Submit ingests one device event idempotently. A replay of an
	// already stored event_id returns the existing record with
	// Duplicate set instead of an error.
	Submit(ctx context.Context, orgID snowflake.ID, req SubmitRequest) (*SubmitResult, error)

	// Review resolves a PENDING record to APPROVED or REJECTED.
	Review(ctx context.Context, orgID, recordID snowflake.ID, status ApprovalStatus, reason string) (*AttendanceRecord, error)

	GetByID(ctx context.Context, orgID, recordID snowflake.ID) (*AttendanceRecord, error)
	ListBySubject(ctx context.Context, orgID, subjectID snowflake.ID) ([]AttendanceRecord, error)
	ListPendingReview(ctx context.Context, orgID snowflake.ID) ([]AttendanceRecord, error)
}
