package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateOrganizationRequest struct {
	Name         string `json:"name"`
	TimezoneName string `json:"timezone_name"`
}

type CreateSiteRequest struct {
	Name            string  `json:"name"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	GeofenceRadiusM float64 `json:"geofence_radius_m"`
}

type Service interface {
	CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	CreateSite(ctx context.Context, orgID snowflake.ID, req CreateSiteRequest) (*Site, error)
	GetSite(ctx context.Context, orgID, id snowflake.ID) (*Site, error)
	ListSites(ctx context.Context, orgID snowflake.ID) ([]Site, error)
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidLocation = errors.New("invalid_location")
	ErrInvalidRadius   = errors.New("invalid_radius")
	ErrNotFound        = errors.New("organization_not_found")
	ErrSiteNotFound    = errors.New("site_not_found")
	ErrDuplicateSlug   = errors.New("duplicate_slug")
	ErrDuplicateSite   = errors.New("duplicate_site_code")
)
