// Package discovery produces the candidate document set for each configured
// source from sitemap XML or HTML listing indices.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arremate/ingestor/internal/pipeline"
)

// Source describes one index to walk.
type Source struct {
	Name       string
	SitemapURL string
	ListingURL string
	Category   string
}

// Discovery implements pipeline.Discoverer for a single source. Output is
// deduplicated and order-stable; tombstoned locations are excluded before
// anything is handed downstream.
type Discovery struct {
	src        Source
	fetcher    pipeline.Fetcher
	tombstones pipeline.TombstoneStore
	window     time.Duration
	clock      pipeline.Clock
	logger     *zap.Logger
}

// New constructs a Discovery for the source.
func New(
	src Source,
	fetcher pipeline.Fetcher,
	tombstones pipeline.TombstoneStore,
	window time.Duration,
	clock pipeline.Clock,
	logger *zap.Logger,
) *Discovery {
	return &Discovery{
		src:        src,
		fetcher:    fetcher,
		tombstones: tombstones,
		window:     window,
		clock:      clock,
		logger:     logger,
	}
}

// Discover walks the source index. An empty or unparsable index logs and
// returns ErrNoCandidates; it never aborts the run.
func (d *Discovery) Discover(ctx context.Context, mode pipeline.RunMode) ([]pipeline.Location, error) {
	indexURL := d.src.SitemapURL
	if indexURL == "" {
		indexURL = d.src.ListingURL
	}
	doc, err := d.fetcher.Fetch(ctx, pipeline.Location{URL: indexURL, Source: d.src.Name})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch index: %w", err)
		}
		d.logger.Warn("index unreachable",
			zap.String("source", d.src.Name),
			zap.String("url", indexURL),
			zap.Error(err),
		)
		return nil, pipeline.ErrNoCandidates
	}

	var entries []indexEntry
	if d.src.SitemapURL != "" {
		entries, err = parseSitemap(doc.Body)
	} else {
		entries, err = parseListing(doc.Body, indexURL)
	}
	if err != nil {
		d.logger.Warn("index unparsable",
			zap.String("source", d.src.Name),
			zap.String("url", indexURL),
			zap.Error(err),
		)
		return nil, pipeline.ErrNoCandidates
	}

	locations := d.filter(entries, mode)
	if len(locations) == 0 {
		d.logger.Warn("index yielded no candidates",
			zap.String("source", d.src.Name),
			zap.String("url", indexURL),
		)
		return nil, pipeline.ErrNoCandidates
	}
	return locations, nil
}

// indexEntry is one raw row of a source index.
type indexEntry struct {
	URL     string
	LastMod time.Time
}

func (d *Discovery) filter(entries []indexEntry, mode pipeline.RunMode) []pipeline.Location {
	cutoff := d.clock.Now().Add(-d.window)
	seen := make(map[string]struct{}, len(entries))
	locations := make([]pipeline.Location, 0, len(entries))
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		if _, dup := seen[e.URL]; dup {
			continue
		}
		seen[e.URL] = struct{}{}
		if d.src.Category != "" && !matchesCategory(e.URL, d.src.Category) {
			continue
		}
		if mode == pipeline.ModeIncremental && !e.LastMod.IsZero() && e.LastMod.Before(cutoff) {
			continue
		}
		if d.tombstones.IsTombstoned(e.URL) {
			continue
		}
		locations = append(locations, pipeline.Location{
			URL:      e.URL,
			Source:   d.src.Name,
			SeenAt:   e.LastMod,
			Category: d.src.Category,
		})
	}
	return locations
}
