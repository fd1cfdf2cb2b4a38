package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subject *Subject) error
	Update(ctx context.Context, db *gorm.DB, subject *Subject) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Subject, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Subject, error)
}
