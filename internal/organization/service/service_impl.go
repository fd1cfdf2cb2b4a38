package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/ottimo/presence/internal/clock"
	"github.com/ottimo/presence/internal/config"
	organizationdomain "github.com/ottimo/presence/internal/organization/domain"
	"github.com/ottimo/presence/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  organizationdomain.Repository
	Cfg   config.Config
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  organizationdomain.Repository
	cfg   config.Config
}

func NewService(p ServiceParam) organizationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		cfg:   p.Cfg,
	}
}

func (s *Service) CreateOrganization(ctx context.Context, req organizationdomain.CreateOrganizationRequest) (*organizationdomain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, organizationdomain.ErrInvalidName
	}
	tz := strings.TrimSpace(req.TimezoneName)
	if tz == "" {
		tz = "UTC"
	}

	now := s.clock.Now()
	org := &organizationdomain.Organization{
		ID:           s.genID.Generate(),
		Name:         name,
		Slug:         slug.Make(name),
		TimezoneName: tz,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertOrganization(ctx, s.db, org); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, organizationdomain.ErrDuplicateSlug
		}
		return nil, err
	}
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id snowflake.ID) (*organizationdomain.Organization, error) {
	org, err := s.repo.FindOrganizationByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, organizationdomain.ErrNotFound
	}
	return org, nil
}

func (s *Service) CreateSite(ctx context.Context, orgID snowflake.ID, req organizationdomain.CreateSiteRequest) (*organizationdomain.Site, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, organizationdomain.ErrInvalidName
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return nil, organizationdomain.ErrInvalidLocation
	}
	radius := req.GeofenceRadiusM
	if radius == 0 {
		radius = s.cfg.DefaultGeofenceRadiusM
	}
	if radius < 0 {
		return nil, organizationdomain.ErrInvalidRadius
	}

	now := s.clock.Now()
	site := &organizationdomain.Site{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		Name:            name,
		Code:            slug.Make(name),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		GeofenceRadiusM: radius,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.InsertSite(ctx, s.db, site); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, organizationdomain.ErrDuplicateSite
		}
		return nil, err
	}
	return site, nil
}

func (s *Service) GetSite(ctx context.Context, orgID, id snowflake.ID) (*organizationdomain.Site, error) {
	site, err := s.repo.FindSiteByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, organizationdomain.ErrSiteNotFound
	}
	return site, nil
}

func (s *Service) ListSites(ctx context.Context, orgID snowflake.ID) ([]organizationdomain.Site, error) {
	return s.repo.ListSites(ctx, s.db, orgID)
}
