// Package ratelimit paces outgoing backend calls with one token bucket per
// operation, so a burst of polls cannot starve an operator-initiated call of a
// different kind.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out tokens per key. A nil *Limiter never waits.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	onDelay  func(key string, waited time.Duration)
}

// Config holds rate limiter configuration.
//   - RPS: sustained calls per second per key; <= 0 disables limiting.
//   - Burst: calls allowed back to back (default 1).
//   - OnDelay: optional hook told how long a call was held back.
type Config struct {
	RPS     float64
	Burst   int
	OnDelay func(key string, waited time.Duration)
}

// New creates a Limiter. It returns nil when cfg.RPS disables limiting.
func New(cfg Config) *Limiter {
	if cfg.RPS <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(cfg.RPS),
		burst:    burst,
		onDelay:  cfg.OnDelay,
	}
}

// Wait blocks until a token for key is available or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Sub-millisecond waits are lock and scheduling noise, not throttling.
	if waited := time.Since(start); waited > time.Millisecond && l.onDelay != nil {
		l.onDelay(key, waited)
	}
	return nil
}
