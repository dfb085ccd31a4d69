// Package backup snapshots live firmware files before a risky update
// and can roll every file back afterwards.
package backup

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Manager maintains the Backup Set: a transient, at-most-one-at-a-time
// mirror of live firmware files, keyed by the same relative paths and
// stored outside the update-managed tree. A Backup Set exists only
// while an update or rollback attempt is in flight.
type Manager struct {
	firmwareRoot string
	backupDir    string
	exclude      map[string]bool
	log          *slog.Logger
}

// NewManager creates a backup manager for the firmware tree rooted at
// firmwareRoot, storing the Backup Set under backupDir. Files whose
// base name appears in exclude (the secrets file, the version marker)
// are never backed up or restored.
func NewManager(firmwareRoot, backupDir string, exclude []string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[name] = true
	}
	return &Manager{
		firmwareRoot: firmwareRoot,
		backupDir:    backupDir,
		exclude:      ex,
		log:          logger,
	}
}

// BackupDir returns the Backup Set directory path.
func (m *Manager) BackupDir() string {
	return m.backupDir
}

// Exists reports whether a Backup Set is currently present. Finding
// one outside an attempt means a prior attempt was interrupted.
func (m *Manager) Exists() bool {
	info, err := os.Stat(m.backupDir)
	return err == nil && info.IsDir()
}

// Begin snapshots every eligible path that is currently present in the
// live tree. Returns false if the Backup Set cannot be created or any
// copy fails — on false the caller must not proceed to destructive
// writes. Any stale Backup Set is replaced.
func (m *Manager) Begin(paths []string) bool {
	if err := os.RemoveAll(m.backupDir); err != nil {
		m.log.Error("failed to clear stale backup", "dir", m.backupDir, "error", err)
		return false
	}
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		m.log.Error("failed to create backup directory", "dir", m.backupDir, "error", err)
		return false
	}

	count := 0
	for _, rel := range paths {
		if m.excluded(rel) {
			continue
		}

		src := filepath.Join(m.firmwareRoot, filepath.FromSlash(rel))
		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			// Not yet present in the live tree; nothing to snapshot.
			continue
		}

		dst := filepath.Join(m.backupDir, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			m.log.Error("backup copy failed", "file", rel, "error", err)
			m.Cleanup()
			return false
		}
		count++
	}

	m.log.Info("backup created", "files", count)
	return true
}

// Restore copies every entry in the Backup Set back onto its live
// path, overwriting whatever is there. Best-effort: a failed write is
// logged and restoration continues with the remaining files, on the
// grounds that a half-restored tree beats a half-updated one. Returns
// false if there was no Backup Set or any single restore failed.
func (m *Manager) Restore() bool {
	if !m.Exists() {
		m.log.Warn("no backup to restore")
		return false
	}

	ok := true
	count := 0
	err := filepath.WalkDir(m.backupDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(m.backupDir, path)
		if err != nil {
			return err
		}

		dst := filepath.Join(m.firmwareRoot, rel)
		if err := copyFile(path, dst); err != nil {
			m.log.Error("restore failed", "file", filepath.ToSlash(rel), "error", err)
			ok = false
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		m.log.Error("restore walk failed", "error", err)
		return false
	}

	m.log.Info("backup restored", "files", count)
	return ok
}

// Cleanup deletes the Backup Set entirely. Idempotent: a missing
// Backup Set is a no-op, not an error.
func (m *Manager) Cleanup() {
	if err := os.RemoveAll(m.backupDir); err != nil {
		m.log.Error("backup cleanup failed", "dir", m.backupDir, "error", err)
	}
}

// excluded reports whether rel is outside backup scope: an excluded
// file name, a path that would escape the firmware root, or a path
// inside the Backup Set itself. Manifest paths arrive here unfiltered,
// so traversal has to be rejected before any join touches the disk.
func (m *Manager) excluded(rel string) bool {
	clean := path.Clean(filepath.ToSlash(rel))
	if clean == "." || path.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return true
	}

	base := filepath.Base(filepath.FromSlash(clean))
	if m.exclude[base] {
		return true
	}

	abs := filepath.Join(m.firmwareRoot, filepath.FromSlash(rel))
	if abs == m.backupDir || strings.HasPrefix(abs, m.backupDir+string(filepath.Separator)) {
		return true
	}
	return false
}

// copyFile copies src to dst verbatim, creating parent directories.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return out.Close()
}
