// Package domain contains the attendance intake pipeline: idempotent
// ingestion of check-in/check-out events and the approval status each
// record carries after validation.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// EventType is the kind of attendance event a device submits.
type EventType string

const (
	EventCheckIn  EventType = "CHECK_IN"
	EventCheckOut EventType = "CHECK_OUT"
)

// Valid reports whether the event type is one the intake accepts.
func (t EventType) Valid() bool {
	return t == EventCheckIn || t == EventCheckOut
}

// ApprovalStatus is the review state of a stored attendance record.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// AttendanceRecord is the server-side row created for an accepted event.
// IdempotencyKey is unique per organization; a replay of the same key
// returns the existing row instead of creating a second one.
type AttendanceRecord struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID   `gorm:"not null;uniqueIndex:ux_attendance_idempotency" json:"org_id"`
	SubjectID        snowflake.ID   `gorm:"not null;index:ix_attendance_subject_day" json:"subject_id"`
	SiteID           *snowflake.ID  `gorm:"index" json:"site_id,omitempty"`
	IdempotencyKey   string         `gorm:"type:text;not null;uniqueIndex:ux_attendance_idempotency" json:"idempotency_key"`
	EventType        EventType      `gorm:"type:text;not null" json:"event_type"`
	CapturedAt       time.Time      `gorm:"not null;index:ix_attendance_subject_day" json:"captured_at"`
	ServerReceivedAt time.Time      `gorm:"not null" json:"server_received_at"`
	Latitude         *float64       `json:"latitude,omitempty"`
	Longitude        *float64       `json:"longitude,omitempty"`
	SourceCode       string         `gorm:"type:text" json:"source_code"`
	ApprovalStatus   ApprovalStatus `gorm:"type:text;not null" json:"approval_status"`
	RejectionReason  *string        `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (AttendanceRecord) TableName() string { return "attendance_records" }

// Location is an optional device-reported coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

// SubmitRequest is one event delivered by a device. EventID doubles as
// the idempotency key end to end.
type SubmitRequest struct {
	EventID    string    `json:"event_id"`
	SubjectID  string    `json:"subject_id"`
	EventType  EventType `json:"event_type"`
	CapturedAt time.Time `json:"captured_at"`
	Location   *Location `json:"location,omitempty"`
	SourceCode string    `json:"source_code"`
}

// SubmitResult carries the record plus whether this submission was a
// replay of an already stored event.
type SubmitResult struct {
	Record    *AttendanceRecord
	Duplicate bool
}

// Machine-readable rejection reasons. The client decides retry versus
// abandon from these, not from the HTTP status alone.
var (
	ErrInvalidEventID     = errors.New("invalid_idempotency_key")
	ErrInvalidEventType   = errors.New("invalid_event_type")
	ErrInvalidSubjectID   = errors.New("invalid_subject_id")
	ErrSubjectNotApproved = errors.New("subject_not_approved")
	ErrNoOpenCheckIn      = errors.New("no_open_check_in")
	ErrDuplicateCheckIn   = errors.New("duplicate_check_in")
	ErrRecordNotFound     = errors.New("attendance_record_not_found")
	ErrNotPending         = errors.New("record_not_pending")
	ErrInvalidReason      = errors.New("invalid_reason")
)
