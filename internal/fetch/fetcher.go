package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arremate/ingestor/internal/metrics"
	"github.com/arremate/ingestor/internal/pipeline"
	"github.com/arremate/ingestor/internal/ratelimit"
)

// Sleeper pauses between retry attempts. Injectable so tests can run with a
// deterministic clock.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// TimerSleeper implements Sleeper with a real timer.
type TimerSleeper struct{}

// Sleep waits for d or until the context finishes.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Fetcher implements pipeline.Fetcher: per-source rate limiting, bounded
// retry with backoff, and permanent-failure tombstoning.
type Fetcher struct {
	client     Client
	limiter    *ratelimit.Limiter
	policy     *RetryPolicy
	tombstones pipeline.TombstoneStore
	hasher     pipeline.Hasher
	clock      pipeline.Clock
	sleeper    Sleeper
	logger     *zap.Logger
}

// New constructs a Fetcher.
func New(
	client Client,
	limiter *ratelimit.Limiter,
	policy *RetryPolicy,
	tombstones pipeline.TombstoneStore,
	hasher pipeline.Hasher,
	clock pipeline.Clock,
	logger *zap.Logger,
) *Fetcher {
	return &Fetcher{
		client:     client,
		limiter:    limiter,
		policy:     policy,
		tombstones: tombstones,
		hasher:     hasher,
		clock:      clock,
		sleeper:    TimerSleeper{},
		logger:     logger,
	}
}

// WithSleeper replaces the retry pause implementation (tests only).
func (f *Fetcher) WithSleeper(s Sleeper) *Fetcher {
	f.sleeper = s
	return f
}

// Fetch retrieves the location. Outcomes:
//   - 2xx: SourceDocument with the content hash computed immediately.
//   - 404/410: the location is tombstoned and ErrTombstoned is returned.
//   - transient failures: retried up to the policy ceiling, then a
//     *pipeline.FetchFailure (retryable on a future run).
func (f *Fetcher) Fetch(ctx context.Context, loc pipeline.Location) (pipeline.SourceDocument, error) {
	if f.tombstones.IsTombstoned(loc.URL) {
		return pipeline.SourceDocument{}, fmt.Errorf("%s: %w", loc.URL, pipeline.ErrTombstoned)
	}

	var (
		lastStatus int
		lastErr    error
		attempts   int
	)
	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx, loc.Source); err != nil {
			return pipeline.SourceDocument{}, err
		}

		resp, err := f.client.Get(ctx, loc.URL)
		lastStatus, lastErr = resp.StatusCode, err
		attempts = attempt + 1

		switch {
		case err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300:
			return f.document(loc, resp)
		case err == nil && Permanent(resp.StatusCode):
			if terr := f.tombstones.Tombstone(loc.URL, resp.StatusCode); terr != nil {
				return pipeline.SourceDocument{}, fmt.Errorf("record tombstone: %w", terr)
			}
			metrics.ObserveTombstone(loc.Source)
			f.logger.Info("location tombstoned",
				zap.String("url", loc.URL),
				zap.Int("status", resp.StatusCode),
			)
			return pipeline.SourceDocument{}, fmt.Errorf("%s: http %d: %w", loc.URL, resp.StatusCode, pipeline.ErrTombstoned)
		}

		if !f.policy.ShouldRetry(resp.StatusCode, err, attempt+1) {
			break
		}
		metrics.ObserveFetchRetry(loc.Source)
		delay := f.policy.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", loc.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		f.sleeper.Sleep(ctx, delay)
		if ctx.Err() != nil {
			return pipeline.SourceDocument{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}
	}

	return pipeline.SourceDocument{}, &pipeline.FetchFailure{
		URL:        loc.URL,
		StatusCode: lastStatus,
		Attempts:   attempts,
		Err:        lastErr,
	}
}

func (f *Fetcher) document(loc pipeline.Location, resp Response) (pipeline.SourceDocument, error) {
	hash, err := f.hasher.Hash(resp.Body)
	if err != nil {
		return pipeline.SourceDocument{}, fmt.Errorf("hash body: %w", err)
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(resp.Body)
	}
	return pipeline.SourceDocument{
		URL:         resp.URL,
		Body:        resp.Body,
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
		FetchedAt:   f.clock.Now(),
		ContentHash: hash,
		Source:      loc.Source,
		Headers:     resp.Headers,
	}, nil
}
