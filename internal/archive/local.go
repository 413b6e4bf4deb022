// Package archive persists raw fetched documents keyed by content hash, so
// quarantined documents can be re-extracted later without refetching.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes documents to the local filesystem.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a filesystem-backed store rooted at baseDir.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// PutObject writes the document and returns a file:// URI.
func (s *LocalStore) PutObject(ctx context.Context, path string, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	fullPath := filepath.Join(s.baseDir, path)

	// Reject paths escaping the base directory.
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes archive root: %q", path)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent dirs: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return "file://" + fullPath, nil
}
