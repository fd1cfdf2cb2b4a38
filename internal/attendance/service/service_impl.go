package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	attdomain "github.com/ottimo/presence/internal/attendance/domain"
	"github.com/ottimo/presence/internal/clock"
	"github.com/ottimo/presence/internal/observability/metrics"
	orgdomain "github.com/ottimo/presence/internal/organization/domain"
	subjectdomain "github.com/ottimo/presence/internal/subject/domain"
	"github.com/ottimo/presence/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        attdomain.Repository
	SubjectRepo subjectdomain.Repository
	OrgRepo     orgdomain.Repository
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        attdomain.Repository
	subjectRepo subjectdomain.Repository
	orgRepo     orgdomain.Repository
	metrics     *metrics.Metrics
}

func NewService(p ServiceParam) attdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("attendance.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		subjectRepo: p.SubjectRepo,
		orgRepo:     p.OrgRepo,
		metrics:     p.Metrics,
	}
}

func (s *Service) Submit(ctx context.Context, orgID snowflake.ID, req attdomain.SubmitRequest) (*attdomain.SubmitResult, error) {
	if _, err := uuid.Parse(req.EventID); err != nil {
		s.metrics.IncIntakeRejection(ctx, attdomain.ErrInvalidEventID.Error())
		return nil, attdomain.ErrInvalidEventID
	}
	if !req.EventType.Valid() {
		s.metrics.IncIntakeRejection(ctx, attdomain.ErrInvalidEventType.Error())
		return nil, attdomain.ErrInvalidEventType
	}
	subjectID, err := parseID(req.SubjectID)
	if err != nil {
		s.metrics.IncIntakeRejection(ctx, attdomain.ErrInvalidSubjectID.Error())
		return nil, attdomain.ErrInvalidSubjectID
	}

	// Fast path for replays. The unique constraint below still covers
	// two concurrent deliveries that both miss here.
	existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, orgID, req.EventID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.metrics.IncIntakeDuplicate(ctx)
		return &attdomain.SubmitResult{Record: existing, Duplicate: true}, nil
	}

	subject, err := s.subjectRepo.FindByID(ctx, s.db, orgID, subjectID)
	if err != nil {
		return nil, err
	}
	if subject == nil || subject.Status != subjectdomain.StatusApproved {
		s.metrics.IncIntakeRejection(ctx, attdomain.ErrSubjectNotApproved.Error())
		return nil, attdomain.ErrSubjectNotApproved
	}

	if err := s.checkDayOrdering(ctx, orgID, subjectID, req); err != nil {
		s.metrics.IncIntakeRejection(ctx, err.Error())
		return nil, err
	}

	now := s.clock.Now()
	record := &attdomain.AttendanceRecord{
		ID:               s.genID.Generate(),
		OrgID:            orgID,
		SubjectID:        subjectID,
		SiteID:           subject.SiteID,
		IdempotencyKey:   req.EventID,
		EventType:        req.EventType,
		CapturedAt:       req.CapturedAt.UTC(),
		ServerReceivedAt: now,
		SourceCode:       req.SourceCode,
		ApprovalStatus:   s.resolveApproval(ctx, orgID, subject.SiteID, req.Location),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Location != nil {
		record.Latitude = &req.Location.Latitude
		record.Longitude = &req.Location.Longitude
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the race against a concurrent delivery of the same
			// event; the stored row wins.
			stored, ferr := s.repo.FindByIdempotencyKey(ctx, s.db, orgID, req.EventID)
			if ferr != nil {
				return nil, ferr
			}
			if stored != nil {
				s.metrics.IncIntakeDuplicate(ctx)
				return &attdomain.SubmitResult{Record: stored, Duplicate: true}, nil
			}
		}
		return nil, err
	}

	s.metrics.IncIntakeEvent(ctx, string(record.EventType), string(record.ApprovalStatus))
	s.log.Info("attendance event stored",
		zap.String("record_id", record.ID.String()),
		zap.String("event_id", req.EventID),
		zap.String("subject_id", subjectID.String()),
		zap.String("event_type", string(req.EventType)),
		zap.String("approval_status", string(record.ApprovalStatus)),
	)
	return &attdomain.SubmitResult{Record: record, Duplicate: false}, nil
}

// checkDayOrdering enforces check-in/check-out pairing within the
// captured day: a check-out needs an open check-in, and an open
// check-in refuses a second check-in.
func (s *Service) checkDayOrdering(ctx context.Context, orgID, subjectID snowflake.ID, req attdomain.SubmitRequest) error {
	dayStart := req.CapturedAt.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	latest, err := s.repo.FindLatestForDay(ctx, s.db, orgID, subjectID, dayStart, dayEnd)
	if err != nil {
		return err
	}

	switch req.EventType {
	case attdomain.EventCheckOut:
		if latest == nil || latest.EventType != attdomain.EventCheckIn {
			return attdomain.ErrNoOpenCheckIn
		}
	case attdomain.EventCheckIn:
		if latest != nil && latest.EventType == attdomain.EventCheckIn {
			return attdomain.ErrDuplicateCheckIn
		}
	}
	return nil
}

// resolveApproval decides the initial approval status. Only a location
// strictly inside the site geofence auto-approves; anything the server
// cannot verify goes to human review instead of being rejected.
func (s *Service) resolveApproval(ctx context.Context, orgID snowflake.ID, siteID *snowflake.ID, loc *attdomain.Location) attdomain.ApprovalStatus {
	if loc == nil || siteID == nil {
		return attdomain.ApprovalPending
	}
	site, err := s.orgRepo.FindSiteByID(ctx, s.db, orgID, *siteID)
	if err != nil || site == nil || !site.Active {
		return attdomain.ApprovalPending
	}
	if attdomain.WithinGeofence(loc.Latitude, loc.Longitude, site.Latitude, site.Longitude, site.GeofenceRadiusM) {
		return attdomain.ApprovalApproved
	}
	return attdomain.ApprovalPending
}

func (s *Service) Review(ctx context.Context, orgID, recordID snowflake.ID, status attdomain.ApprovalStatus, reason string) (*attdomain.AttendanceRecord, error) {
	if status != attdomain.ApprovalApproved && status != attdomain.ApprovalRejected {
		return nil, attdomain.ErrNotPending
	}
	reason = strings.TrimSpace(reason)
	if status == attdomain.ApprovalRejected && reason == "" {
		return nil, attdomain.ErrInvalidReason
	}

	record, err := s.repo.FindByID(ctx, s.db, orgID, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, attdomain.ErrRecordNotFound
	}
	if record.ApprovalStatus != attdomain.ApprovalPending {
		return nil, attdomain.ErrNotPending
	}

	record.ApprovalStatus = status
	if status == attdomain.ApprovalRejected {
		record.RejectionReason = &reason
	}
	record.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, record); err != nil {
		return nil, err
	}

	s.log.Info("attendance record reviewed",
		zap.String("record_id", record.ID.String()),
		zap.String("approval_status", string(status)),
	)
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, orgID, recordID snowflake.ID) (*attdomain.AttendanceRecord, error) {
	record, err := s.repo.FindByID(ctx, s.db, orgID, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, attdomain.ErrRecordNotFound
	}
	return record, nil
}

func (s *Service) ListBySubject(ctx context.Context, orgID, subjectID snowflake.ID) ([]attdomain.AttendanceRecord, error) {
	return s.repo.ListBySubject(ctx, s.db, orgID, subjectID)
}

func (s *Service) ListPendingReview(ctx context.Context, orgID snowflake.ID) ([]attdomain.AttendanceRecord, error) {
	return s.repo.ListByApprovalStatus(ctx, s.db, orgID, attdomain.ApprovalPending)
}

func parseID(v string) (snowflake.ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n <= 0 {
		return 0, attdomain.ErrInvalidSubjectID
	}
	return snowflake.ID(n), nil
}
