// Package reconciler drains the device-local event queue toward the
// server. One background worker per device; overlapping triggers
// coalesce into a single drain cycle.
package reconciler

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/ottimo/presence/internal/agent/queue"
	"github.com/ottimo/presence/internal/agent/resilience"
	"github.com/ottimo/presence/internal/agent/transport"
	"github.com/ottimo/presence/internal/clock"
	"github.com/ottimo/presence/internal/observability/metrics"
	"go.uber.org/zap"
)

// Config tunes the drain loop.
type Config struct {
	SyncInterval   time.Duration
	BatchSize      int
	AbandonCeiling int
}

func (c Config) withDefaults() Config {
	if c.SyncInterval <= 0 {
		c.SyncInterval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.AbandonCeiling <= 0 {
		c.AbandonCeiling = 10
	}
	return c
}

// ErrDrainInProgress is returned when a drain cycle is already running.
var ErrDrainInProgress = errors.New("drain_in_progress")

// Submitter delivers one event to the server.
type Submitter interface {
	SubmitEvent(ctx context.Context, event queue.Event) (*transport.SubmitResponse, error)
}

type Reconciler struct {
	cfg     Config
	store   queue.Store
	caller  *resilience.Caller
	client  Submitter
	clock   clock.Clock
	metrics *metrics.Metrics
	log     *zap.Logger

	running atomic.Bool
	kick    chan struct{}
	entropy *rand.Rand
}

func New(cfg Config, store queue.Store, caller *resilience.Caller, client Submitter, clk clock.Clock, m *metrics.Metrics, log *zap.Logger) *Reconciler {
	return &Reconciler{
		cfg:     cfg.withDefaults(),
		store:   store,
		caller:  caller,
		client:  client,
		clock:   clk,
		metrics: m,
		log:     log.Named("agent.reconciler"),
		kick:    make(chan struct{}, 1),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Kick requests a drain cycle outside the timer, e.g. after an enqueue
// or a connectivity-restored signal. Kicks arriving while a cycle runs
// coalesce into at most one follow-up cycle.
func (r *Reconciler) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run drains on the configured interval and on kicks until ctx is
// cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.kick:
		}

		if err := r.DrainOnce(ctx); err != nil && !errors.Is(err, ErrDrainInProgress) && !errors.Is(err, context.Canceled) {
			r.log.Warn("drain cycle failed", zap.Error(err))
		}
	}
}

// DrainOnce runs a single drain cycle. Events are submitted
// sequentially, oldest first, so a check-in reaches the server before
// its check-out. The cycle stops early on the first transient failure
// to keep that ordering, and between events on cancellation; it never
// cancels mid-submission.
func (r *Reconciler) DrainOnce(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrDrainInProgress
	}
	defer r.running.Store(false)

	if err := ctx.Err(); err != nil {
		return err
	}

	runID := ulid.MustNew(ulid.Timestamp(r.clock.Now()), r.entropy).String()
	log := r.log.With(zap.String("drain_id", runID))

	batch, err := r.store.PeekBatch(ctx, r.cfg.BatchSize)
	if err != nil {
		r.metrics.IncDrainCycle(ctx, "error")
		return err
	}
	if len(batch) == 0 {
		r.metrics.IncDrainCycle(ctx, "empty")
		return nil
	}

	log.Info("drain cycle started", zap.Int("batch_size", len(batch)))

	for _, event := range batch {
		if ctx.Err() != nil {
			r.metrics.IncDrainCycle(ctx, "cancelled")
			return ctx.Err()
		}
		if stop, err := r.submitOne(ctx, log, event); err != nil {
			r.metrics.IncDrainCycle(ctx, "error")
			return err
		} else if stop {
			r.metrics.IncDrainCycle(ctx, "stalled")
			return nil
		}
	}

	r.metrics.IncDrainCycle(ctx, "ok")
	log.Info("drain cycle completed")
	return nil
}

// submitOne pushes a single event through the resilience layer. The
// returned stop flag halts the rest of the batch; the returned error is
// a local storage failure, never a delivery outcome.
func (r *Reconciler) submitOne(ctx context.Context, log *zap.Logger, event queue.Event) (bool, error) {
	if err := r.store.MarkSubmitting(ctx, event.EventID); err != nil {
		return false, err
	}

	var resp *transport.SubmitResponse
	callErr := r.caller.Call(ctx, func(ctx context.Context) error {
		res, err := r.client.SubmitEvent(ctx, event)
		if err == nil {
			resp = res
		}
		return err
	})

	switch {
	case callErr == nil:
		if err := r.store.MarkAcknowledged(ctx, event.EventID); err != nil {
			return false, err
		}
		r.metrics.AddQueueDepth(ctx, -1)
		log.Info("event acknowledged",
			zap.String("event_id", event.EventID),
			zap.String("record_id", resp.RecordID),
			zap.Bool("duplicate", resp.Duplicate),
		)
		return false, nil

	case errors.Is(callErr, resilience.ErrBreakerOpen):
		// Nothing reached the network, so the attempt count stays put;
		// the endpoint outage should not push events toward
		// abandonment.
		if err := r.store.ResetToPending(ctx, event.EventID); err != nil {
			return false, err
		}
		log.Warn("endpoint breaker open, deferring queue",
			zap.String("event_id", event.EventID),
		)
		return true, nil

	case isRejection(callErr):
		var rej *transport.RejectionError
		errors.As(callErr, &rej)
		if err := r.store.MarkRejected(ctx, event.EventID, rej.Reason); err != nil {
			return false, err
		}
		r.metrics.AddQueueDepth(ctx, -1)
		r.metrics.IncAbandoned(ctx, rej.Reason)
		log.Warn("event rejected by server",
			zap.String("event_id", event.EventID),
			zap.String("reason", rej.Reason),
		)
		return false, nil

	default:
		// Transient exhaustion: the event stays queued and the rest of
		// the batch waits for the next cycle.
		count, err := r.store.IncrementAttempt(ctx, event.EventID)
		if err != nil {
			return false, err
		}
		if count > r.cfg.AbandonCeiling {
			if err := r.store.MarkAbandoned(ctx, event.EventID, queue.ReasonMaxAttempts); err != nil {
				return false, err
			}
			r.metrics.AddQueueDepth(ctx, -1)
			r.metrics.IncAbandoned(ctx, queue.ReasonMaxAttempts)
			log.Error("event abandoned after retry ceiling",
				zap.String("event_id", event.EventID),
				zap.Int("attempts", count),
			)
			return true, nil
		}
		if err := r.store.ResetToPending(ctx, event.EventID); err != nil {
			return false, err
		}
		log.Warn("transient delivery failure",
			zap.String("event_id", event.EventID),
			zap.Int("attempts", count),
			zap.Error(callErr),
		)
		return true, nil
	}
}

func isRejection(err error) bool {
	var rej *transport.RejectionError
	return errors.As(err, &rej)
}
