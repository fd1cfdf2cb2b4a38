package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	attdomain "github.com/ottimo/presence/internal/attendance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() attdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *attdomain.AttendanceRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, record *attdomain.AttendanceRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE attendance_records
		 SET approval_status = ?, rejection_reason = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		record.ApprovalStatus,
		record.RejectionReason,
		record.UpdatedAt,
		record.OrgID,
		record.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*attdomain.AttendanceRecord, error) {
	var record attdomain.AttendanceRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM attendance_records WHERE org_id = ? AND id = ?`, orgID, id,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, orgID snowflake.ID, key string) (*attdomain.AttendanceRecord, error) {
	var record attdomain.AttendanceRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM attendance_records WHERE org_id = ? AND idempotency_key = ?`, orgID, key,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindLatestForDay(ctx context.Context, db *gorm.DB, orgID, subjectID snowflake.ID, dayStart, dayEnd time.Time) (*attdomain.AttendanceRecord, error) {
	var record attdomain.AttendanceRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM attendance_records
		 WHERE org_id = ? AND subject_id = ?
		   AND captured_at >= ? AND captured_at < ?
		   AND approval_status <> ?
		 ORDER BY captured_at DESC
		 LIMIT 1`,
		orgID, subjectID, dayStart, dayEnd, attdomain.ApprovalRejected,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ListBySubject(ctx context.Context, db *gorm.DB, orgID, subjectID snowflake.ID) ([]attdomain.AttendanceRecord, error) {
	var records []attdomain.AttendanceRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM attendance_records
		 WHERE org_id = ? AND subject_id = ?
		 ORDER BY captured_at ASC`,
		orgID, subjectID,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ListByApprovalStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID, status attdomain.ApprovalStatus) ([]attdomain.AttendanceRecord, error) {
	var records []attdomain.AttendanceRecord
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM attendance_records
		 WHERE org_id = ? AND approval_status = ?
		 ORDER BY captured_at ASC`,
		orgID, status,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
