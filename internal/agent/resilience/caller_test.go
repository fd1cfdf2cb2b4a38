package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fastPolicy keeps retry sleeps negligible for tests.
func fastPolicy() Policy {
	return Policy{
		MaxTries:         3,
		InitialDelay:     time.Millisecond,
		MaxDelay:         5 * time.Millisecond,
		Multiplier:       2.0,
		Jitter:           0,
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
		BreakerWindow:    time.Minute,
	}
}

type permErr struct{ msg string }

func (e *permErr) Error() string   { return e.msg }
func (e *permErr) Permanent() bool { return true }

var errTransient = errors.New("connection refused")

func TestCallSuccess(t *testing.T) {
	c := NewCaller("test", fastPolicy(), zap.NewNop())

	calls := 0
	err := c.Call(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallRetriesTransient(t *testing.T) {
	c := NewCaller("test", fastPolicy(), zap.NewNop())

	calls := 0
	err := c.Call(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCallExhaustsTryBudget(t *testing.T) {
	c := NewCaller("test", fastPolicy(), zap.NewNop())

	calls := 0
	err := c.Call(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestCallPermanentNoRetry(t *testing.T) {
	c := NewCaller("test", fastPolicy(), zap.NewNop())

	rejection := &permErr{msg: "subject_not_approved"}
	calls := 0
	err := c.Call(context.Background(), func(ctx context.Context) error {
		calls++
		return rejection
	})
	require.Error(t, err)
	var p *permErr
	require.ErrorAs(t, err, &p)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	p := fastPolicy()
	p.BreakerThreshold = 5
	c := NewCaller("test", p, zap.NewNop())

	// Two exhausted calls of three attempts each push the breaker past
	// its five-failure threshold mid-way through the second call.
	for i := 0; i < 2; i++ {
		_ = c.Call(context.Background(), func(ctx context.Context) error {
			return errTransient
		})
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	// With the breaker open the operation is never invoked.
	calls := 0
	err := c.Call(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Zero(t, calls)
}

func TestBreakerIgnoresPermanentErrors(t *testing.T) {
	p := fastPolicy()
	p.BreakerThreshold = 3
	c := NewCaller("test", p, zap.NewNop())

	// Business rejections are healthy endpoint responses and must not
	// open the breaker.
	for i := 0; i < 10; i++ {
		_ = c.Call(context.Background(), func(ctx context.Context) error {
			return &permErr{msg: "no_open_check_in"}
		})
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	p := fastPolicy()
	p.BreakerThreshold = 2
	p.BreakerCooldown = 50 * time.Millisecond
	c := NewCaller("test", p, zap.NewNop())

	_ = c.Call(context.Background(), func(ctx context.Context) error {
		return errTransient
	})
	require.Equal(t, gobreaker.StateOpen, c.State())

	// After the cooldown a single trial is allowed; success closes the
	// breaker again.
	time.Sleep(60 * time.Millisecond)
	err := c.Call(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, c.State())
}
