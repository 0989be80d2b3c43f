// Package ratelimit admits requests per client key using fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/cruxstack/email-reachability-go/internal/config"
)

// Decision is the outcome of one admission.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Limiter admits or rejects one request for key. Every call counts against
// the key's current window.
type Limiter interface {
	Admit(ctx context.Context, key string) (Decision, error)
}

// New returns the Redis limiter when cfg.RedisURL is set and the in-memory
// one otherwise.
func New(ctx context.Context, cfg *config.Config) (Limiter, error) {
	if cfg.RedisURL != "" {
		l, err := NewRedisFromURL(ctx, cfg.RedisURL, cfg.RateLimitWindow, cfg.RateLimitMax)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limiter: %w", err)
		}
		return l, nil
	}
	return NewMemory(cfg.RateLimitWindow, cfg.RateLimitMax), nil
}

func decide(count, max int, resetAt time.Time) Decision {
	if count > max {
		return Decision{Allowed: false, Remaining: 0, Limit: max, ResetAt: resetAt}
	}
	return Decision{Allowed: true, Remaining: max - count, Limit: max, ResetAt: resetAt}
}
