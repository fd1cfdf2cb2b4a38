// Package resilience wraps outbound submissions in retry with
// exponential backoff plus a per-endpoint circuit breaker.
package resilience

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy tunes one endpoint's retry and breaker behavior.
type Policy struct {
	// MaxTries is the total number of attempts per Call, first try
	// included.
	MaxTries uint

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the randomization factor applied to each delay, e.g.
	// 0.1 for ±10%.
	Jitter float64

	// BreakerThreshold is the consecutive-failure count that opens the
	// breaker.
	BreakerThreshold uint32
	// BreakerCooldown is how long the breaker stays open before
	// allowing a single half-open trial.
	BreakerCooldown time.Duration
	// BreakerWindow is the rolling interval after which closed-state
	// counts reset.
	BreakerWindow time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxTries == 0 {
		p.MaxTries = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2.0
	}
	if p.Jitter < 0 {
		p.Jitter = 0.1
	}
	if p.BreakerThreshold == 0 {
		p.BreakerThreshold = 5
	}
	if p.BreakerCooldown <= 0 {
		p.BreakerCooldown = 60 * time.Second
	}
	if p.BreakerWindow <= 0 {
		p.BreakerWindow = 2 * time.Minute
	}
	return p
}

// StandardPolicy is the default submission policy.
func StandardPolicy() Policy {
	return Policy{
		MaxTries:         3,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         30 * time.Second,
		Multiplier:       2.0,
		Jitter:           0.1,
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
		BreakerWindow:    2 * time.Minute,
	}
}

// CriticalPolicy retries harder before giving an event back to the
// queue; used when losing a sync window is expensive.
func CriticalPolicy() Policy {
	p := StandardPolicy()
	p.MaxTries = 5
	p.InitialDelay = 250 * time.Millisecond
	return p
}

// LenientPolicy fails fast and trips early; used on metered or very
// flaky links where hammering the server helps nobody.
func LenientPolicy() Policy {
	p := StandardPolicy()
	p.MaxTries = 2
	p.BreakerThreshold = 3
	p.BreakerCooldown = 2 * time.Minute
	return p
}

// PolicyFromPreset resolves a configured preset name, falling back to
// the standard policy for unknown values.
func PolicyFromPreset(name string) Policy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "critical":
		return CriticalPolicy()
	case "lenient":
		return LenientPolicy()
	default:
		return StandardPolicy()
	}
}

// NewBackOff builds the per-call backoff schedule: delays start at
// InitialDelay, multiply by Multiplier, carry ±Jitter randomization,
// and never exceed MaxDelay even after jitter.
func NewBackOff(p Policy) backoff.BackOff {
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.RandomizationFactor = p.Jitter
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.Reset()

	return &cappedBackOff{inner: b, max: p.MaxDelay}
}

// cappedBackOff clamps jittered delays to the policy maximum.
// ExponentialBackOff caps the base interval at MaxInterval but still
// applies the randomization factor on top of it.
type cappedBackOff struct {
	inner backoff.BackOff
	max   time.Duration
}

func (c *cappedBackOff) NextBackOff() time.Duration {
	d := c.inner.NextBackOff()
	if d > c.max {
		return c.max
	}
	return d
}

func (c *cappedBackOff) Reset() { c.inner.Reset() }
