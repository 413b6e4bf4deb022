// Package index persists the processed-file index: content hash → outcome.
// Re-processing an unchanged source document becomes a no-op.
package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/arremate/ingestor/internal/pipeline"
)

// FileIndex is an append-only NDJSON index. Each document is processed by
// exactly one worker per run, so writes are read-then-append, never
// read-modify-write.
type FileIndex struct {
	mu      sync.Mutex
	path    string
	entries map[string]pipeline.ProcessedFile
}

// NewFileIndex loads (or creates) the index at path.
func NewFileIndex(path string) (*FileIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	idx := &FileIndex{
		path:    path,
		entries: make(map[string]pipeline.ProcessedFile),
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry pipeline.ProcessedFile
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		// Later lines win: a re-processed hash reflects its newest outcome.
		idx.entries[entry.ContentHash] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan index: %w", err)
	}
	return idx, nil
}

// Lookup returns the recorded outcome for a content hash.
func (i *FileIndex) Lookup(hash string) (pipeline.ProcessedFile, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.entries[hash]
	return entry, ok
}

// Record appends the outcome for a document.
func (i *FileIndex) Record(entry pipeline.ProcessedFile) error {
	if entry.ContentHash == "" {
		return fmt.Errorf("content hash is required")
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	f, err := os.OpenFile(i.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append index entry: %w", err)
	}
	i.entries[entry.ContentHash] = entry
	return nil
}

// MemoryIndex keeps the index in memory, primarily for tests.
type MemoryIndex struct {
	mu      sync.Mutex
	entries map[string]pipeline.ProcessedFile
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]pipeline.ProcessedFile)}
}

// Lookup returns the recorded outcome for a content hash.
func (i *MemoryIndex) Lookup(hash string) (pipeline.ProcessedFile, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.entries[hash]
	return entry, ok
}

// Record stores the outcome for a document.
func (i *MemoryIndex) Record(entry pipeline.ProcessedFile) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[entry.ContentHash] = entry
	return nil
}
