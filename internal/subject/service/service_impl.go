package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ottimo/presence/internal/clock"
	subjectdomain "github.com/ottimo/presence/internal/subject/domain"
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
	Repo  subjectdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  subjectdomain.Repository
}

func NewService(p ServiceParam) subjectdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subject.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Register(ctx context.Context, orgID snowflake.ID, req subjectdomain.RegisterRequest) (*subjectdomain.Subject, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return nil, subjectdomain.ErrInvalidName
	}

	now := s.clock.Now()
	subject := &subjectdomain.Subject{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		SiteID:    req.SiteID,
		FullName:  name,
		Status:    subjectdomain.StatusPendingApproval,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, subject); err != nil {
		return nil, err
	}

	s.log.Info("subject registered",
		zap.String("subject_id", subject.ID.String()),
		zap.String("org_id", orgID.String()),
	)
	return subject, nil
}

func (s *Service) Approve(ctx context.Context, orgID, id snowflake.ID) (*subjectdomain.Subject, error) {
	return s.transition(ctx, orgID, id, subjectdomain.StatusApproved, nil)
}

func (s *Service) Reject(ctx context.Context, orgID, id snowflake.ID, reason string) (*subjectdomain.Subject, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, subjectdomain.ErrInvalidReason
	}
	return s.transition(ctx, orgID, id, subjectdomain.StatusRejected, &reason)
}

func (s *Service) Suspend(ctx context.Context, orgID, id snowflake.ID) (*subjectdomain.Subject, error) {
	return s.transition(ctx, orgID, id, subjectdomain.StatusSuspended, nil)
}

func (s *Service) transition(ctx context.Context, orgID, id snowflake.ID, to subjectdomain.Status, reason *string) (*subjectdomain.Subject, error) {
	subject, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, subjectdomain.ErrNotFound
	}
	if !subjectdomain.CanTransition(subject.Status, to) {
		return nil, subjectdomain.ErrInvalidTransition
	}

	subject.Status = to
	subject.RejectionReason = reason
	subject.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, subject); err != nil {
		return nil, err
	}

	s.log.Info("subject transitioned",
		zap.String("subject_id", subject.ID.String()),
		zap.String("status", string(to)),
	)
	return subject, nil
}

func (s *Service) GetByID(ctx context.Context, orgID, id snowflake.ID) (*subjectdomain.Subject, error) {
	subject, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, subjectdomain.ErrNotFound
	}
	return subject, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]subjectdomain.Subject, error) {
	return s.repo.List(ctx, s.db, orgID)
}
