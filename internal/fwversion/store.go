package fwversion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MarkerName is the default file name of the persisted version marker.
const MarkerName = ".version"

// Store persists the current firmware version as a single line of text
// at a fixed path. The marker is absent until the first successful
// update; absence reads as version 0.0.0, lower than any real release.
type Store struct {
	path string
}

// NewStore creates a version store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the marker file path.
func (s *Store) Path() string {
	return s.path
}

// Read returns the persisted version. ok is false if the marker was
// never written or could not be read — I/O errors are treated as
// absent, never surfaced to the caller.
func (s *Store) Read() (Version, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Version{}, false
	}

	line := strings.TrimSpace(string(data))
	if line == "" {
		return Version{}, false
	}

	return Parse(line), true
}

// Write persists v, overwriting any prior value. The marker is flushed
// to storage before Write returns so a reboot immediately afterwards
// cannot lose it.
func (s *Store) Write(v Version) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create version marker directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open version marker: %w", err)
	}

	if _, err := f.WriteString(v.String() + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write version marker: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync version marker: %w", err)
	}

	return f.Close()
}

// Clear removes the marker so the current firmware is treated as
// baseline. A missing marker is a no-op.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove version marker: %w", err)
	}
	return nil
}
