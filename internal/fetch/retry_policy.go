// Package fetch implements the rate-limited document fetcher with bounded
// retry and permanent-failure tombstoning.
package fetch

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"
)

// RetryPolicy implements jittered exponential backoff with a fixed attempt
// ceiling. Retry decisions are a pure function of status/error/attempt, so
// the fetch loop stays an explicit state machine rather than recursion.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy builds a policy. Zero values fall back to defaults.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// MaxAttempts exposes the attempt ceiling.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Permanent reports whether the HTTP status permanently removes the
// location. Permanent failures are tombstoned, never retried.
func Permanent(statusCode int) bool {
	return statusCode == http.StatusNotFound || statusCode == http.StatusGone
}

// ShouldRetry decides whether the failure is transient and another attempt
// remains.
func (p *RetryPolicy) ShouldRetry(statusCode int, err error, attempt int) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return netErr.Timeout()
		}
	}
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	case 0:
		// No response at all: connection-level failure.
		return err != nil
	default:
		return false
	}
}

// Backoff returns the wait duration before the next attempt.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
