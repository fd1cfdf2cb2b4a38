// Package queue is the device-local durable event store. Events
// survive process crashes from the moment Enqueue returns and leave the
// store only once the server has acknowledged them.
package queue

import (
	"context"
	"errors"
	"time"
)

// Status is the delivery state of a locally queued event.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusSubmitting   Status = "SUBMITTING"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusRejected     Status = "REJECTED"
	StatusAbandoned    Status = "ABANDONED"
)

// ReasonMaxAttempts marks events dropped after the abandonment ceiling.
const ReasonMaxAttempts = "MAX_ATTEMPTS_EXCEEDED"

// Location is an optional device-reported coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Event is one captured attendance event awaiting delivery. EventID is
// the idempotency key the server deduplicates on.
type Event struct {
	Seq          int64     `gorm:"primaryKey;autoIncrement" json:"seq"`
	EventID      string    `gorm:"type:text;not null;uniqueIndex" json:"event_id"`
	SubjectID    string    `gorm:"type:text;not null" json:"subject_id"`
	EventType    string    `gorm:"type:text;not null" json:"event_type"`
	CapturedAt   time.Time `gorm:"not null;index" json:"captured_at"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	SourceCode   string    `gorm:"type:text" json:"source_code"`
	Status       Status    `gorm:"type:text;not null;index" json:"status"`
	AttemptCount int       `gorm:"not null;default:0" json:"attempt_count"`
	FailReason   *string   `gorm:"type:text" json:"fail_reason,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "agent_events" }

var ErrNotFound = errors.New("event_not_found")

// Store is the durable queue contract. Enqueue is synchronous: when it
// returns nil the event survives an immediate crash. PeekBatch returns
// events oldest-first by captured_at because a check-in must reach the
// server before its check-out. The Mark methods are idempotent.
type Store interface {
	Enqueue(ctx context.Context, event *Event) error
	PeekBatch(ctx context.Context, n int) ([]Event, error)
	ListPending(ctx context.Context) ([]Event, error)
	// ListResolvable returns events that ended REJECTED or ABANDONED,
	// kept for manual resolution instead of silently dropped.
	ListResolvable(ctx context.Context) ([]Event, error)
	MarkSubmitting(ctx context.Context, eventID string) error
	// MarkAcknowledged removes the event; the server copy is now the
	// only copy.
	MarkAcknowledged(ctx context.Context, eventID string) error
	MarkRejected(ctx context.Context, eventID, reason string) error
	MarkAbandoned(ctx context.Context, eventID, reason string) error
	// ResetToPending returns a SUBMITTING event to PENDING after a
	// failed or interrupted submission.
	ResetToPending(ctx context.Context, eventID string) error
	// IncrementAttempt bumps attempt_count and returns the new value.
	IncrementAttempt(ctx context.Context, eventID string) (int, error)
	// Delete removes a terminal event once a person has resolved it.
	Delete(ctx context.Context, eventID string) error
	Depth(ctx context.Context) (int64, error)
}
