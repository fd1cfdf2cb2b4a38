// Package capture validates raw scan payloads on the device and turns
// them into queueable attendance events. Validation is a pure function
// over the payload and the device clock so it can run before anything
// touches the local store.
package capture

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ottimo/presence/internal/agent/queue"
)

var (
	ErrMalformed = errors.New("MALFORMED")
	ErrExpired   = errors.New("EXPIRED")
)

// ScanPayload is the decoded content of a scanned code.
type ScanPayload struct {
	Type       string    `json:"type"`
	IssuedAt   time.Time `json:"issued_at"`
	Expiry     time.Time `json:"expiry"`
	LocationID string    `json:"location_id"`
}

// Options tune validation behavior.
type Options struct {
	// DriftTolerance bounds how far in the future a payload's issued_at
	// may sit relative to the device clock. A payload issued further
	// ahead than this means either a forged code or a device clock too
	// wrong to trust, and is rejected rather than trusted.
	DriftTolerance time.Duration
}

// Validate parses and checks a raw scan payload against the device
// clock, returning a PENDING queue event ready for enqueue.
func Validate(raw []byte, subjectID string, loc *queue.Location, now time.Time, opts Options) (*queue.Event, error) {
	var payload ScanPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrMalformed
	}

	eventType := strings.ToUpper(strings.TrimSpace(payload.Type))
	if eventType != "CHECK_IN" && eventType != "CHECK_OUT" {
		return nil, ErrMalformed
	}
	if payload.IssuedAt.IsZero() || payload.Expiry.IsZero() || strings.TrimSpace(payload.LocationID) == "" {
		return nil, ErrMalformed
	}
	if strings.TrimSpace(subjectID) == "" {
		return nil, ErrMalformed
	}

	now = now.UTC()
	if now.After(payload.Expiry) {
		return nil, ErrExpired
	}
	if payload.IssuedAt.After(now.Add(opts.DriftTolerance)) {
		return nil, ErrExpired
	}

	event := &queue.Event{
		EventID:    uuid.NewString(),
		SubjectID:  strings.TrimSpace(subjectID),
		EventType:  eventType,
		CapturedAt: now,
		SourceCode: strings.TrimSpace(payload.LocationID),
		Status:     queue.StatusPending,
	}
	if loc != nil {
		event.Latitude = &loc.Latitude
		event.Longitude = &loc.Longitude
	}
	return event, nil
}
