// Package ratelimit implements a token bucket limiter enforcing each
// source's requests-per-second ceiling.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arremate/ingestor/internal/metrics"
)

// Limiter manages per-source rate limits. Requests beyond a source's ceiling
// block until a slot is available.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	rates        map[string]float64
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration.
type Config struct {
	// DefaultRPS applies to sources without an explicit ceiling.
	DefaultRPS float64
	// SourceRPS overrides the ceiling per source name.
	SourceRPS map[string]float64
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Limit(1)
	}
	rates := make(map[string]float64, len(cfg.SourceRPS))
	for name, rps := range cfg.SourceRPS {
		if rps > 0 {
			rates[name] = rps
		}
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		rates:        rates,
		defaultRate:  r,
		defaultBurst: 1,
	}
}

// Wait blocks until a token is available for the given source, respecting
// the context.
func (l *Limiter) Wait(ctx context.Context, source string) error {
	l.mu.Lock()
	limiter, exists := l.limiters[source]
	if !exists {
		limit := l.defaultRate
		if rps, ok := l.rates[source]; ok {
			limit = rate.Limit(rps)
		}
		limiter = rate.NewLimiter(limit, l.defaultBurst)
		l.limiters[source] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(source, waited)
	}
	return nil
}
