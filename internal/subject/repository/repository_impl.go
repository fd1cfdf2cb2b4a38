package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subjectdomain "github.com/ottimo/presence/internal/subject/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subjectdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subject *subjectdomain.Subject) error {
	return db.WithContext(ctx).Create(subject).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subject *subjectdomain.Subject) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subjects
		 SET status = ?, rejection_reason = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		subject.Status,
		subject.RejectionReason,
		subject.UpdatedAt,
		subject.OrgID,
		subject.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*subjectdomain.Subject, error) {
	var subject subjectdomain.Subject
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM subjects WHERE org_id = ? AND id = ?`, orgID, id,
	).Scan(&subject).Error
	if err != nil {
		return nil, err
	}
	if subject.ID == 0 {
		return nil, nil
	}
	return &subject, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]subjectdomain.Subject, error) {
	var subjects []subjectdomain.Subject
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM subjects WHERE org_id = ? ORDER BY created_at ASC`, orgID,
	).Scan(&subjects).Error
	if err != nil {
		return nil, err
	}
	return subjects, nil
}
