package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	organizationdomain "github.com/ottimo/presence/internal/organization/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() organizationdomain.Repository {
	return &repo{}
}

func (r *repo) InsertOrganization(ctx context.Context, db *gorm.DB, org *organizationdomain.Organization) error {
	return db.WithContext(ctx).Create(org).Error
}

func (r *repo) FindOrganizationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM organizations WHERE id = ?`, id,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}

func (r *repo) InsertSite(ctx context.Context, db *gorm.DB, site *organizationdomain.Site) error {
	return db.WithContext(ctx).Create(site).Error
}

func (r *repo) FindSiteByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*organizationdomain.Site, error) {
	var site organizationdomain.Site
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM sites WHERE org_id = ? AND id = ?`, orgID, id,
	).Scan(&site).Error
	if err != nil {
		return nil, err
	}
	if site.ID == 0 {
		return nil, nil
	}
	return &site, nil
}

func (r *repo) ListSites(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]organizationdomain.Site, error) {
	var sites []organizationdomain.Site
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM sites WHERE org_id = ? ORDER BY created_at ASC`, orgID,
	).Scan(&sites).Error
	if err != nil {
		return nil, err
	}
	return sites, nil
}
