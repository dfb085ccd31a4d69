// Package supervisor orchestrates the boot-time self-update sequence:
// probe the configured update sources in priority order, back up the
// live firmware tree, apply the winning manifest file by file, and
// commit with a reboot — or roll every file back and let the boot
// continue on the original firmware.
package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/exploreborders/picobridge/internal/backup"
	"github.com/exploreborders/picobridge/internal/fwversion"
	"github.com/exploreborders/picobridge/internal/source"
)

// Result is the supervisor's public outcome. The caller's only branch
// is Applied: true means the new firmware is committed and a reboot
// was requested; false means the device continues booting on the
// files now live. No error crosses out of the supervisor. Found
// records whether any source offered a newer version this boot, so a
// rolled-back attempt still reports what it saw; To is that offered
// version when Found, otherwise the current one.
type Result struct {
	Applied      bool
	Found        bool
	Source       string
	From         fwversion.Version
	To           fwversion.Version
	FilesApplied int
}

// Supervisor drives one update attempt per boot.
type Supervisor struct {
	store        *fwversion.Store
	backups      *backup.Manager
	sources      []source.Source
	firmwareRoot string
	skip         map[string]bool
	reboot       func() error
	notify       func(pattern string)
	log          *slog.Logger
}

// New creates a supervisor. sources are probed in the given order —
// network before removable storage — and the first one that is both
// reachable and strictly newer binds the whole attempt. skip lists
// file names that must never reach a live write (the secrets file,
// the version marker), even when an adapter fails to filter them.
func New(store *fwversion.Store, backups *backup.Manager, sources []source.Source,
	firmwareRoot string, skip []string, reboot func() error, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	sk := make(map[string]bool, len(skip))
	for _, name := range skip {
		sk[name] = true
	}
	return &Supervisor{
		store:        store,
		backups:      backups,
		sources:      sources,
		firmwareRoot: firmwareRoot,
		skip:         sk,
		reboot:       reboot,
		notify:       func(string) {},
		log:          logger,
	}
}

// WithNotifier installs an LED-style feedback hook. Cosmetic only.
func (s *Supervisor) WithNotifier(notify func(pattern string)) *Supervisor {
	if notify != nil {
		s.notify = notify
	}
	return s
}

// Run executes one full update cycle: orphan sweep, probe, apply,
// commit or rollback. It is invoked once per boot, before any other
// firmware logic, and never panics or returns an error — every
// failure in the taxonomy is absorbed here and logged.
func (s *Supervisor) Run() Result {
	s.sweepOrphan()

	current, _ := s.store.Read() // absent reads as 0.0.0

	for _, src := range s.sources {
		if !src.Available() {
			s.log.Info("update source unavailable", "source", src.Name())
			continue
		}

		latest, ok := src.LatestVersion()
		if !ok {
			s.log.Info("update source has no version", "source", src.Name())
			continue
		}

		if !latest.IsNewerThan(current) {
			s.log.Info("no update needed",
				"source", src.Name(), "current", current, "latest", latest)
			continue
		}

		s.log.Info("update available",
			"source", src.Name(), "current", current, "latest", latest)

		// This source won the probe: the attempt binds to it and no
		// lower-priority source is consulted this boot, succeed or fail.
		return s.apply(src, current, latest)
	}

	return Result{From: current, To: current}
}

// sweepOrphan handles a Backup Set left behind by an interrupted
// attempt (power loss mid-apply): restore it, discard it, and carry
// on probing with the recovered tree.
func (s *Supervisor) sweepOrphan() {
	if !s.backups.Exists() {
		return
	}

	s.log.Warn("found backup from interrupted update, restoring")
	s.notify("010")
	if !s.backups.Restore() {
		s.log.Error("orphan restore incomplete")
	}
	s.backups.Cleanup()
}

// apply runs the Applying state for one bound source and ends in
// either Committed (version persisted, backup discarded, reboot
// requested) or RolledBack (tree restored, backup discarded, boot
// continues).
func (s *Supervisor) apply(src source.Source, current, target fwversion.Version) Result {
	noUpdate := Result{Found: true, Source: src.Name(), From: current, To: target}

	manifest, ok := src.Manifest()
	if !ok || len(manifest) == 0 {
		// A source that claims a new version but offers no files is
		// not trusted enough to proceed.
		s.log.Warn("update source offered no files", "source", src.Name())
		return noUpdate
	}

	paths := make([]string, 0, len(manifest))
	for _, e := range manifest {
		paths = append(paths, e.Path)
	}

	s.notify("11")
	if !s.backups.Begin(paths) {
		// Nothing was touched, so nothing needs restoring.
		s.log.Error("backup failed, aborting update", "source", src.Name())
		s.notify("111")
		return noUpdate
	}

	applied := 0
	for _, e := range manifest {
		if s.skipEntry(e) {
			s.log.Warn("skipping reserved file from manifest", "file", e.Path)
			continue
		}

		data, ok := src.Fetch(e)
		if !ok {
			s.log.Error("download failed, rolling back", "source", src.Name(), "file", e.Path)
			return s.rollback(noUpdate)
		}

		if err := s.writeLive(e.Path, data); err != nil {
			s.log.Error("write failed, rolling back", "file", e.Path, "error", err)
			return s.rollback(noUpdate)
		}

		s.log.Info("updated file", "file", e.Path)
		applied++
	}

	if applied == 0 {
		// Every entry was reserved or hidden; nothing was written, so
		// there is no version to claim.
		s.log.Warn("manifest contained no writable files", "source", src.Name())
		s.backups.Cleanup()
		return noUpdate
	}

	if err := s.store.Write(target); err != nil {
		s.log.Error("failed to persist version, rolling back", "error", err)
		return s.rollback(noUpdate)
	}

	// Commit: the backup is discarded strictly before the reboot is
	// requested, so no Backup Set survives a successful update.
	s.backups.Cleanup()
	s.log.Info("update applied, rebooting",
		"source", src.Name(), "version", target, "files", applied)
	s.notify("11011")

	if err := s.reboot(); err != nil {
		s.log.Error("reboot request failed", "error", err)
	}

	return Result{
		Applied:      true,
		Found:        true,
		Source:       src.Name(),
		From:         current,
		To:           target,
		FilesApplied: applied,
	}
}

// rollback restores the pre-attempt snapshot and discards the Backup
// Set regardless of the restore outcome, so a failed restore cannot
// leave a stale set for the next boot to misread as an interruption.
func (s *Supervisor) rollback(r Result) Result {
	if !s.backups.Restore() {
		s.log.Error("restore incomplete, device may be in a mixed state")
	}
	s.backups.Cleanup()
	s.notify("111")
	return r
}

// skipEntry reports whether a manifest entry must never be written
// live: reserved names, hidden files, and paths that would escape the
// firmware root.
func (s *Supervisor) skipEntry(e source.Entry) bool {
	clean := path.Clean(e.Path)
	if clean == "." || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return true
	}
	base := path.Base(clean)
	return s.skip[base] || strings.HasPrefix(base, ".")
}

// writeLive writes one fetched file onto its live path, creating
// intermediate directories. A failure here is treated identically to
// a fetch failure by the caller.
func (s *Supervisor) writeLive(logical string, data []byte) error {
	dst := filepath.Join(s.firmwareRoot, filepath.FromSlash(logical))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", logical, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", logical, err)
	}
	return nil
}
