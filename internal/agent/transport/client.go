// Package transport is the agent's HTTP client for the attendance
// intake endpoint. It classifies responses into retryable transport
// failures and definitive rejections so the resilience layer and the
// reconciler can decide retry-versus-abandon without inspecting HTTP
// details themselves.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ottimo/presence/internal/agent/queue"
	"go.uber.org/zap"
)

// RejectionError is a definitive business rejection from the server.
// Retrying cannot change the outcome.
type RejectionError struct {
	Status int
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected (%d): %s", e.Status, e.Reason)
}

// Permanent marks the error non-retryable for the resilience layer.
func (e *RejectionError) Permanent() bool { return true }

// StatusError is a transport-level failure worth retrying: the server
// answered, but not with a usable result.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transient http status %d", e.Status)
}

// SubmitResponse is the intake endpoint's success body.
type SubmitResponse struct {
	RecordID       string `json:"record_id"`
	ApprovalStatus string `json:"approval_status"`
	Duplicate      bool   `json:"duplicate"`
}

type submitBody struct {
	EventID    string          `json:"event_id"`
	SubjectID  string          `json:"subject_id"`
	EventType  string          `json:"event_type"`
	CapturedAt time.Time       `json:"captured_at"`
	Location   *queue.Location `json:"location,omitempty"`
	SourceCode string          `json:"source_code"`
}

type rejectionBody struct {
	Reason string `json:"reason"`
}

// Config configures the intake client.
type Config struct {
	BaseURL        string
	OrganizationID string
	// DeviceID identifies this agent in server-side request logs.
	DeviceID string
	// RequestTimeout bounds each individual attempt; the resilience
	// layer owns the overall retry budget.
	RequestTimeout time.Duration
}

type Client struct {
	http     *http.Client
	base     string
	orgID    string
	deviceID string
	log      *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		base:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		orgID:    strings.TrimSpace(cfg.OrganizationID),
		deviceID: strings.TrimSpace(cfg.DeviceID),
		log:      log.Named("agent.transport"),
	}
}

// SubmitEvent delivers one queued event. A nil error means the server
// durably stored (or had already stored) the event.
func (c *Client) SubmitEvent(ctx context.Context, event queue.Event) (*SubmitResponse, error) {
	body := submitBody{
		EventID:    event.EventID,
		SubjectID:  event.SubjectID,
		EventType:  event.EventType,
		CapturedAt: event.CapturedAt,
		SourceCode: event.SourceCode,
	}
	if event.Latitude != nil && event.Longitude != nil {
		body.Location = &queue.Location{Latitude: *event.Latitude, Longitude: *event.Longitude}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/organizations/%s/attendance/events", c.base, c.orgID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", event.EventID)
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are transient by definition.
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		var out SubmitResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		if out.Duplicate {
			c.log.Debug("server recognized replay", zap.String("event_id", event.EventID))
		}
		return &out, nil

	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return nil, &StatusError{Status: resp.StatusCode}

	default:
		// Remaining 4xx responses are business rejections carrying a
		// machine-readable reason.
		var rej rejectionBody
		_ = json.Unmarshal(raw, &rej)
		if strings.TrimSpace(rej.Reason) == "" {
			rej.Reason = http.StatusText(resp.StatusCode)
		}
		return nil, &RejectionError{Status: resp.StatusCode, Reason: rej.Reason}
	}
}
