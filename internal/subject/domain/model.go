// Package domain contains the subject approval lifecycle. A subject is a
// person whose attendance may be tracked once an administrator approves
// them; attendance submissions never move this state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the subject approval state.
type Status string

const (
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusSuspended       Status = "SUSPENDED"
)

// Subject is the server-side registration record.
type Subject struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID  `gorm:"not null;index" json:"org_id"`
	SiteID          *snowflake.ID `gorm:"index" json:"site_id,omitempty"`
	FullName        string        `gorm:"type:text;not null" json:"full_name"`
	Status          Status        `gorm:"type:text;not null" json:"status"`
	RejectionReason *string       `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subject) TableName() string { return "subjects" }

// CanTransition reports whether an administrator action may move a
// subject from its current status to the target status.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPendingApproval:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusSuspended
	default:
		return false
	}
}
