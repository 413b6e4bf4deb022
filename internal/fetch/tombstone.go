package fetch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// tombstone is one permanently-skipped location, persisted as a JSON line.
type tombstone struct {
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileTombstoneStore persists tombstones to an append-only NDJSON file so a
// 404/410 location is never fetched again, within or across runs.
type FileTombstoneStore struct {
	mu   sync.Mutex
	path string
	seen map[string]struct{}
}

// NewFileTombstoneStore loads (or creates) the tombstone file at path.
func NewFileTombstoneStore(path string) (*FileTombstoneStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create tombstone dir: %w", err)
	}
	s := &FileTombstoneStore{
		path: path,
		seen: make(map[string]struct{}),
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open tombstone file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var t tombstone
		if err := json.Unmarshal(scanner.Bytes(), &t); err != nil {
			// A torn trailing line just means the last write was interrupted.
			continue
		}
		s.seen[t.URL] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan tombstone file: %w", err)
	}
	return s, nil
}

// IsTombstoned reports whether the URL was permanently skipped.
func (s *FileTombstoneStore) IsTombstoned(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[url]
	return ok
}

// Tombstone records the URL as permanently skipped.
func (s *FileTombstoneStore) Tombstone(url string, statusCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[url]; ok {
		return nil
	}
	line, err := json.Marshal(tombstone{
		URL:        url,
		StatusCode: statusCode,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal tombstone: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open tombstone file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append tombstone: %w", err)
	}
	s.seen[url] = struct{}{}
	return nil
}

// MemoryTombstoneStore keeps tombstones in memory, primarily for tests.
type MemoryTombstoneStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryTombstoneStore creates an empty in-memory store.
func NewMemoryTombstoneStore() *MemoryTombstoneStore {
	return &MemoryTombstoneStore{seen: make(map[string]struct{})}
}

// IsTombstoned reports whether the URL was tombstoned.
func (s *MemoryTombstoneStore) IsTombstoned(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[url]
	return ok
}

// Tombstone records the URL.
func (s *MemoryTombstoneStore) Tombstone(url string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[url] = struct{}{}
	return nil
}
