package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ottimo/presence/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyIntakeOrg = "intake:org:%s"

// IngestLimiter throttles attendance submissions per organization. A
// nil limiter (no redis configured) allows everything, which is the
// normal single-site deployment.
type IngestLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewIngestLimiter(cfg config.Config) (*IngestLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, nil
	}
	if cfg.IngestRateLimit <= 0 || cfg.IngestBurst <= 0 {
		return nil, fmt.Errorf("intake rate limit must be positive, got rate=%v burst=%d", cfg.IngestRateLimit, cfg.IngestBurst)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &IngestLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.IngestRateLimit,
		burst:   cfg.IngestBurst,
	}, nil
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowOrg reports whether the organization may submit another event
// right now, and how long to wait when it may not.
func (l *IngestLimiter) AllowOrg(ctx context.Context, orgID string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyIntakeOrg, strings.TrimSpace(orgID)), l.rate, l.burst)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}
