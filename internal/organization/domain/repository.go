package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOrganization(ctx context.Context, db *gorm.DB, org *Organization) error
	FindOrganizationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organization, error)
	InsertSite(ctx context.Context, db *gorm.DB, site *Site) error
	FindSiteByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Site, error)
	ListSites(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Site, error)
}
