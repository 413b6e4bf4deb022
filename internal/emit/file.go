// Package emit writes canonical records to the valid sinks, deduplicating
// by id_interno so re-runs never produce duplicate identities.
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/arremate/ingestor/internal/pipeline"
)

// FileSink writes one JSON object per record, newline-delimited. The file is
// rebuilt from scratch each run: idempotency comes from the processed-file
// index upstream, not from diffing historical output.
type FileSink struct {
	mu   sync.Mutex
	path string
	seen map[string]struct{}
}

// NewFileSink truncates (or creates) the output file for this run.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("truncate valid sink: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close valid sink: %w", err)
	}
	return &FileSink{
		path: path,
		seen: make(map[string]struct{}),
	}, nil
}

// Emit appends the record unless its identity was already written this run.
func (s *FileSink) Emit(ctx context.Context, rec pipeline.CanonicalRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if rec.InternalID == "" {
		return fmt.Errorf("record has no identity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[rec.InternalID]; dup {
		return nil
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open valid sink: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	s.seen[rec.InternalID] = struct{}{}
	return nil
}

// MemorySink collects emitted records in memory, primarily for tests.
type MemorySink struct {
	mu      sync.Mutex
	byID    map[string]pipeline.CanonicalRecord
	Records []pipeline.CanonicalRecord
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{byID: make(map[string]pipeline.CanonicalRecord)}
}

// Emit upserts the record by identity.
func (s *MemorySink) Emit(_ context.Context, rec pipeline.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[rec.InternalID]; !exists {
		s.Records = append(s.Records, rec)
	}
	s.byID[rec.InternalID] = rec
	return nil
}

// Len reports how many distinct identities were emitted.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
