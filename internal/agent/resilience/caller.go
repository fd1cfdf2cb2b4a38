package resilience

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned when the endpoint's circuit breaker
// fast-fails a call without touching the network. Callers treat it
// like a transient failure but must not escalate attempt counting on
// it, since nothing was actually attempted.
var ErrBreakerOpen = errors.New("breaker_open")

// Permanent classifies an error as non-retryable. Call returns it
// unwrapped after the first attempt.
type Permanent interface {
	error
	Permanent() bool
}

// Caller composes retry-with-backoff around a circuit breaker for one
// endpoint. The breaker sits inside the retry loop so every attempt,
// including retries, is accounted against it.
type Caller struct {
	policy Policy
	cb     *gobreaker.CircuitBreaker
	log    *zap.Logger
}

func NewCaller(name string, p Policy, log *zap.Logger) *Caller {
	p = p.withDefaults()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		// One trial request in half-open; its outcome decides the
		// state.
		MaxRequests: 1,
		Interval:    p.BreakerWindow,
		Timeout:     p.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= p.BreakerThreshold
		},
		// Definitive business rejections are healthy endpoint behavior;
		// only transport-level failures should open the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("circuit breaker state change",
					zap.String("endpoint", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
		},
	})

	return &Caller{policy: p, cb: cb, log: log}
}

// Call runs op with retries per the policy. It returns nil on success,
// the op's error unwrapped when it is Permanent, ErrBreakerOpen when
// the breaker fast-failed, or the last transient error once the try
// budget is exhausted.
func (c *Caller) Call(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := func() (any, error) {
		_, err := c.cb.Execute(func() (interface{}, error) {
			return nil, op(ctx)
		})
		switch {
		case err == nil:
			return nil, nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			// Retrying against an open breaker only burns the backoff
			// budget; fail the call immediately.
			return nil, backoff.Permanent(ErrBreakerOpen)
		case isPermanent(err):
			return nil, backoff.Permanent(err)
		default:
			return nil, err
		}
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(NewBackOff(c.policy)),
		backoff.WithMaxTries(c.policy.MaxTries),
	)
	return err
}

// State exposes the breaker state for logging and tests.
func (c *Caller) State() gobreaker.State {
	return c.cb.State()
}

func isPermanent(err error) bool {
	var p Permanent
	return errors.As(err, &p) && p.Permanent()
}
