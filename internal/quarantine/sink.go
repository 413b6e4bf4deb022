// Package quarantine implements the dead-letter sinks. Entries are
// append-only and never overwritten; each carries the producing extractor or
// normalizer version so superseded entries can be re-processed later.
package quarantine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/arremate/ingestor/internal/metrics"
	"github.com/arremate/ingestor/internal/pipeline"
)

// FileSink appends one JSON object per failure to an NDJSON file.
type FileSink struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileSink creates the sink, ensuring the parent directory exists.
func NewFileSink(path string, logger *zap.Logger) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create quarantine dir: %w", err)
	}
	return &FileSink{path: path, logger: logger}, nil
}

// Quarantine appends the entry. Concurrent producers are serialized through
// the sink's lock so lines never interleave.
func (s *FileSink) Quarantine(ctx context.Context, entry pipeline.QuarantineEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if entry.Resolution == "" {
		entry.Resolution = pipeline.ResolutionPending
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal quarantine entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open quarantine sink: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append quarantine entry: %w", err)
	}

	metrics.ObserveQuarantine(string(entry.Stage), string(entry.Code))
	s.logger.Debug("record quarantined",
		zap.String("stage", string(entry.Stage)),
		zap.String("code", string(entry.Code)),
		zap.String("id", entry.ID),
	)
	return nil
}

// MemorySink collects entries in memory, primarily for tests.
type MemorySink struct {
	mu      sync.Mutex
	Entries []pipeline.QuarantineEntry
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Quarantine appends the entry to the in-memory slice.
func (s *MemorySink) Quarantine(_ context.Context, entry pipeline.QuarantineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Resolution == "" {
		entry.Resolution = pipeline.ResolutionPending
	}
	s.Entries = append(s.Entries, entry)
	return nil
}

// ByCode counts collected entries per error code.
func (s *MemorySink) ByCode() map[pipeline.ErrorCode]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[pipeline.ErrorCode]int)
	for _, e := range s.Entries {
		counts[e.Code]++
	}
	return counts
}
