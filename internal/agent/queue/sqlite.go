package queue

import (
	"context"

	"github.com/ottimo/presence/internal/clock"
	"gorm.io/gorm"
)

type sqliteStore struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewStore returns a Store backed by the agent's local database. The
// caller owns migration of the agent_events table.
func NewStore(db *gorm.DB, clk clock.Clock) Store {
	return &sqliteStore{db: db, clock: clk}
}

func (s *sqliteStore) Enqueue(ctx context.Context, event *Event) error {
	now := s.clock.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = StatusPending
	}
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *sqliteStore) PeekBatch(ctx context.Context, n int) ([]Event, error) {
	var events []Event
	// SUBMITTING rows are included so an event interrupted mid-cycle by
	// a crash is retried on the next pass.
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM agent_events
		 WHERE status IN (?, ?)
		 ORDER BY captured_at ASC, seq ASC
		 LIMIT ?`,
		StatusPending, StatusSubmitting, n,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *sqliteStore) ListPending(ctx context.Context) ([]Event, error) {
	var events []Event
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM agent_events
		 WHERE status IN (?, ?)
		 ORDER BY captured_at ASC, seq ASC`,
		StatusPending, StatusSubmitting,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *sqliteStore) ListResolvable(ctx context.Context) ([]Event, error) {
	var events []Event
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM agent_events
		 WHERE status IN (?, ?)
		 ORDER BY captured_at ASC, seq ASC`,
		StatusRejected, StatusAbandoned,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *sqliteStore) MarkSubmitting(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE agent_events SET status = ?, updated_at = ?
		 WHERE event_id = ? AND status = ?`,
		StatusSubmitting, s.clock.Now(), eventID, StatusPending,
	).Error
}

func (s *sqliteStore) MarkAcknowledged(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).Exec(
		`DELETE FROM agent_events WHERE event_id = ?`, eventID,
	).Error
}

func (s *sqliteStore) MarkRejected(ctx context.Context, eventID, reason string) error {
	return s.markTerminal(ctx, eventID, StatusRejected, reason)
}

func (s *sqliteStore) MarkAbandoned(ctx context.Context, eventID, reason string) error {
	return s.markTerminal(ctx, eventID, StatusAbandoned, reason)
}

func (s *sqliteStore) markTerminal(ctx context.Context, eventID string, status Status, reason string) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE agent_events SET status = ?, fail_reason = ?, updated_at = ?
		 WHERE event_id = ? AND status IN (?, ?)`,
		status, reason, s.clock.Now(), eventID, StatusPending, StatusSubmitting,
	).Error
}

func (s *sqliteStore) ResetToPending(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE agent_events SET status = ?, updated_at = ?
		 WHERE event_id = ? AND status = ?`,
		StatusPending, s.clock.Now(), eventID, StatusSubmitting,
	).Error
}

func (s *sqliteStore) IncrementAttempt(ctx context.Context, eventID string) (int, error) {
	err := s.db.WithContext(ctx).Exec(
		`UPDATE agent_events SET attempt_count = attempt_count + 1, updated_at = ?
		 WHERE event_id = ?`,
		s.clock.Now(), eventID,
	).Error
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.WithContext(ctx).Raw(
		`SELECT attempt_count FROM agent_events WHERE event_id = ?`, eventID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *sqliteStore) Delete(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).Exec(
		`DELETE FROM agent_events WHERE event_id = ? AND status IN (?, ?)`,
		eventID, StatusRejected, StatusAbandoned,
	).Error
}

func (s *sqliteStore) Depth(ctx context.Context) (int64, error) {
	var depth int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM agent_events WHERE status IN (?, ?)`,
		StatusPending, StatusSubmitting,
	).Scan(&depth).Error
	if err != nil {
		return 0, err
	}
	return depth, nil
}
