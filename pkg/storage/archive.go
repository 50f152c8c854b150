package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Archive keeps generated export files on disk so they survive the
// request that produced them. Files are named by owner and timestamp
// and reaped after a TTL.
type Archive struct {
	baseDir string
}

// NewArchive ensures the base directory exists and returns a handle.
func NewArchive(baseDir string) (*Archive, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Archive{baseDir: baseDir}, nil
}

// Save writes an export for ownerID and returns the stored filename.
// ext is the bare extension, e.g. "csv" or "pdf".
func (a *Archive) Save(ownerID, ext string, data []byte) (string, error) {
	if ownerID == "" || ext == "" {
		return "", fmt.Errorf("ownerID and ext required")
	}
	name := fmt.Sprintf("%s-%s.%s", ownerID, time.Now().UTC().Format("20060102-150405"), ext)
	path := filepath.Join(a.baseDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return name, nil
}

// CleanupOlderThan removes archived files whose modification time predates
// the TTL and returns the removed names.
func (a *Archive) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	var removed []string
	entries, err := os.ReadDir(a.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read archive directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.baseDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove archived file: %w", err)
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}
