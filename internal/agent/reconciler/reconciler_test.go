package reconciler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/ottimo/presence/internal/agent/queue"
	"github.com/ottimo/presence/internal/agent/resilience"
	"github.com/ottimo/presence/internal/agent/transport"
	"github.com/ottimo/presence/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// scriptedServer answers each submission with a scripted status per
// event id, recording the order events arrive in.
type scriptedServer struct {
	mu       sync.Mutex
	scripts  map[string][]int
	received []string
	srv      *httptest.Server
}

func newScriptedServer() *scriptedServer {
	s := &scriptedServer{scripts: map[string][]int{}}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			EventID string `json:"event_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		s.mu.Lock()
		s.received = append(s.received, body.EventID)
		script := s.scripts[body.EventID]
		status := http.StatusCreated
		if len(script) > 0 {
			status, s.scripts[body.EventID] = script[0], script[1:]
		}
		s.mu.Unlock()

		w.WriteHeader(status)
		switch {
		case status == http.StatusCreated || status == http.StatusOK:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"record_id":       "777",
				"approval_status": "APPROVED",
			})
		case status == http.StatusConflict:
			_ = json.NewEncoder(w).Encode(map[string]string{"reason": "subject_not_approved"})
		}
	}))
	return s
}

// script queues responses for an event; once exhausted the server
// answers 201.
func (s *scriptedServer) script(eventID string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[eventID] = statuses
}

func (s *scriptedServer) calls(eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.received {
		if id == eventID {
			n++
		}
	}
	return n
}

func (s *scriptedServer) order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

type fixture struct {
	rec    *Reconciler
	store  queue.Store
	server *scriptedServer
	clock  *clock.FakeClock
}

func newFixture(t *testing.T, cfg Config, policy resilience.Policy) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&queue.Event{}))

	fake := clock.NewFakeClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))
	store := queue.NewStore(db, fake)

	server := newScriptedServer()
	t.Cleanup(server.srv.Close)

	client := transport.NewClient(transport.Config{
		BaseURL:        server.srv.URL,
		OrganizationID: "100",
		RequestTimeout: 2 * time.Second,
	}, zap.NewNop())

	caller := resilience.NewCaller("attendance_intake", policy, zap.NewNop())
	rec := New(cfg, store, caller, client, fake, nil, zap.NewNop())

	return &fixture{rec: rec, store: store, server: server, clock: fake}
}

func fastPolicy() resilience.Policy {
	return resilience.Policy{
		MaxTries:         3,
		InitialDelay:     time.Millisecond,
		MaxDelay:         5 * time.Millisecond,
		Multiplier:       2.0,
		Jitter:           0,
		BreakerThreshold: 100,
		BreakerCooldown:  time.Minute,
		BreakerWindow:    time.Minute,
	}
}

func (f *fixture) enqueue(t *testing.T, eventType string, capturedAt time.Time) string {
	t.Helper()
	event := &queue.Event{
		EventID:    uuid.NewString(),
		SubjectID:  "12345",
		EventType:  eventType,
		CapturedAt: capturedAt,
		SourceCode: "qr-head-office",
		Status:     queue.StatusPending,
	}
	require.NoError(t, f.store.Enqueue(context.Background(), event))
	return event.EventID
}

func TestDrainRecoversWithinRetryBudget(t *testing.T) {
	f := newFixture(t, Config{AbandonCeiling: 3}, fastPolicy())
	ctx := context.Background()

	// Server is reachable but flaky: 503 twice, then 201 within a
	// single call's retry budget.
	eventID := f.enqueue(t, "CHECK_IN", f.clock.Now())
	f.server.script(eventID, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusCreated)

	require.NoError(t, f.rec.DrainOnce(ctx))

	assert.Equal(t, 3, f.server.calls(eventID))
	depth, err := f.store.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth, "acknowledged event must leave the store")

	// A restart that replays listPending finds nothing to resubmit.
	pending, err := f.store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainPreservesOrderOnTransientFailure(t *testing.T) {
	f := newFixture(t, Config{AbandonCeiling: 10}, fastPolicy())
	ctx := context.Background()

	checkIn := f.enqueue(t, "CHECK_IN", f.clock.Now())
	checkOut := f.enqueue(t, "CHECK_OUT", f.clock.Now().Add(time.Hour))

	// Check-in fails every attempt this cycle.
	f.server.script(checkIn,
		http.StatusServiceUnavailable,
		http.StatusServiceUnavailable,
		http.StatusServiceUnavailable,
	)

	require.NoError(t, f.rec.DrainOnce(ctx))

	// The check-out must not have been submitted behind a failed
	// check-in.
	for _, id := range f.server.order() {
		assert.NotEqual(t, checkOut, id)
	}

	pending, err := f.store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, checkIn, pending[0].EventID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	assert.Equal(t, 0, pending[1].AttemptCount)

	// Next cycle the server has recovered; both flush in order.
	require.NoError(t, f.rec.DrainOnce(ctx))
	order := f.server.order()
	require.NotEmpty(t, order)
	assert.Equal(t, checkOut, order[len(order)-1])

	depth, err := f.store.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestDrainRejectionAbandonsWithoutRetry(t *testing.T) {
	f := newFixture(t, Config{AbandonCeiling: 10}, fastPolicy())
	ctx := context.Background()

	eventID := f.enqueue(t, "CHECK_IN", f.clock.Now())
	f.server.script(eventID, http.StatusConflict)

	require.NoError(t, f.rec.DrainOnce(ctx))

	assert.Equal(t, 1, f.server.calls(eventID), "definitive rejections must not be retried")

	resolvable, err := f.store.ListResolvable(ctx)
	require.NoError(t, err)
	require.Len(t, resolvable, 1)
	assert.Equal(t, queue.StatusRejected, resolvable[0].Status)
	require.NotNil(t, resolvable[0].FailReason)
	assert.Equal(t, "subject_not_approved", *resolvable[0].FailReason)
}

func TestDrainAbandonsAtCeiling(t *testing.T) {
	f := newFixture(t, Config{AbandonCeiling: 2}, fastPolicy())
	ctx := context.Background()

	eventID := f.enqueue(t, "CHECK_IN", f.clock.Now())
	// Fail every attempt of every cycle.
	f.server.script(eventID,
		http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable,
		http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable,
		http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable,
	)

	// Cycles one and two exhaust retries and leave the event PENDING;
	// attempt_count is then 2, still within the ceiling.
	require.NoError(t, f.rec.DrainOnce(ctx))
	require.NoError(t, f.rec.DrainOnce(ctx))
	pending, err := f.store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].AttemptCount)

	// Cycle three pushes attempt_count past the ceiling.
	require.NoError(t, f.rec.DrainOnce(ctx))
	pending, err = f.store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	resolvable, err := f.store.ListResolvable(ctx)
	require.NoError(t, err)
	require.Len(t, resolvable, 1)
	assert.Equal(t, queue.StatusAbandoned, resolvable[0].Status)
	require.NotNil(t, resolvable[0].FailReason)
	assert.Equal(t, queue.ReasonMaxAttempts, *resolvable[0].FailReason)
}

func TestDrainBreakerOpenDoesNotEscalate(t *testing.T) {
	policy := fastPolicy()
	policy.BreakerThreshold = 3
	f := newFixture(t, Config{AbandonCeiling: 10}, policy)
	ctx := context.Background()

	first := f.enqueue(t, "CHECK_IN", f.clock.Now())
	second := f.enqueue(t, "CHECK_OUT", f.clock.Now().Add(time.Hour))
	f.server.script(first,
		http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable,
	)

	// Three failures trip the breaker during the first event's call.
	require.NoError(t, f.rec.DrainOnce(ctx))

	pending, err := f.store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].AttemptCount)

	// With the breaker open nothing reaches the network and attempt
	// counts stay put.
	require.NoError(t, f.rec.DrainOnce(ctx))
	pending, err = f.store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].AttemptCount, "breaker fast-fail must not count as an attempt")
	assert.Equal(t, 0, pending[1].AttemptCount)
	assert.Zero(t, f.server.calls(second), "later events never submitted behind an open breaker")
}

func TestDrainOnceGuard(t *testing.T) {
	f := newFixture(t, Config{}, fastPolicy())

	f.rec.running.Store(true)
	err := f.rec.DrainOnce(context.Background())
	assert.ErrorIs(t, err, ErrDrainInProgress)
	f.rec.running.Store(false)
}

func TestDrainCancelledBetweenEvents(t *testing.T) {
	f := newFixture(t, Config{AbandonCeiling: 10}, fastPolicy())

	f.enqueue(t, "CHECK_IN", f.clock.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.rec.DrainOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
