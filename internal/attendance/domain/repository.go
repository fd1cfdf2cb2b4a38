package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert relies on the (org_id, idempotency_key) unique constraint
	// to reject concurrent deliveries of the same retried event.
	Insert(ctx context.Context, db *gorm.DB, record *AttendanceRecord) error
	Update(ctx context.Context, db *gorm.DB, record *AttendanceRecord) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*AttendanceRecord, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, orgID snowflake.ID, key string) (*AttendanceRecord, error)
	// FindLatestForDay returns the newest record for the subject whose
	// captured_at falls inside [dayStart, dayEnd), or nil.
	FindLatestForDay(ctx context.Context, db *gorm.DB, orgID, subjectID snowflake.ID, dayStart, dayEnd time.Time) (*AttendanceRecord, error)
	ListBySubject(ctx context.Context, db *gorm.DB, orgID, subjectID snowflake.ID) ([]AttendanceRecord, error)
	ListByApprovalStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID, status ApprovalStatus) ([]AttendanceRecord, error)
}
