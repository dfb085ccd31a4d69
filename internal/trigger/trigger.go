// Package trigger detects the manual rollback gesture: a double press
// of the update button within a bounded window at boot, which forces a
// restore from the Backup Set before anything else runs.
package trigger

import (
	"log/slog"
	"time"

	"github.com/exploreborders/picobridge/internal/backup"
	"github.com/exploreborders/picobridge/internal/fwversion"
)

const (
	// TotalWindow bounds the whole gesture from the first press.
	TotalWindow = 2 * time.Second
	// SecondWindow bounds the wait for the second press after release.
	SecondWindow = 1 * time.Second
	// Debounce settles contact bounce after each edge.
	Debounce = 100 * time.Millisecond
	// ReleaseTimeout caps the final wait for release so a stuck
	// button cannot stall the boot.
	ReleaseTimeout = 3 * time.Second

	pollInterval = 10 * time.Millisecond
)

// Detector watches one digital input for the double-press gesture.
// sample returns true while the button is pressed. now and sleep are
// injectable for tests.
type Detector struct {
	sample func() bool
	now    func() time.Time
	sleep  func(time.Duration)
}

// NewDetector creates a detector over the given press sampler, using
// the wall clock.
func NewDetector(sample func() bool) *Detector {
	return &Detector{
		sample: sample,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// NewDetectorWithClock creates a detector with an injected clock (for
// testing).
func NewDetectorWithClock(sample func() bool, now func() time.Time, sleep func(time.Duration)) *Detector {
	return &Detector{sample: sample, now: now, sleep: sleep}
}

// Detect polls for the double-press gesture. If the button is not
// pressed at the moment of the check, it returns false immediately —
// the common boot path costs one sample. Otherwise it waits for
// release and watches for a second press within SecondWindow, all
// within TotalWindow of the first press.
func (d *Detector) Detect() bool {
	if !d.sample() {
		return false
	}

	d.sleep(Debounce)
	firstPress := d.now()

	for d.now().Sub(firstPress) < TotalWindow {
		if !d.sample() {
			// Released; now watch for the second press.
			d.sleep(Debounce)
			releasedAt := d.now()

			for d.now().Sub(releasedAt) < SecondWindow {
				if d.sample() {
					d.sleep(Debounce)
					d.waitForRelease()
					return true
				}
				d.sleep(pollInterval)
			}
			break
		}
		d.sleep(pollInterval)
	}

	d.waitForRelease()
	return false
}

// waitForRelease blocks until the button reads released, bounded by
// ReleaseTimeout.
func (d *Detector) waitForRelease() {
	deadline := d.now().Add(ReleaseTimeout)
	for d.sample() && d.now().Before(deadline) {
		d.sleep(pollInterval)
	}
}

// Rollback restores the pre-update snapshot in response to the manual
// gesture: restore every backed-up file, discard the Backup Set, and
// delete the persisted version so the restored firmware is treated as
// baseline rather than already updated. Returns false — without
// rebooting — when there is nothing to restore or the restore failed;
// the boot then proceeds normally.
func Rollback(backups *backup.Manager, store *fwversion.Store, reboot func() error, logger *slog.Logger) bool {
	if logger == nil {
		logger = slog.Default()
	}

	if !backups.Exists() {
		logger.Warn("rollback requested but no backup exists")
		return false
	}

	logger.Info("manual rollback triggered, restoring")
	if !backups.Restore() {
		backups.Cleanup()
		logger.Error("rollback restore failed")
		return false
	}

	if err := store.Clear(); err != nil {
		logger.Error("failed to clear version marker", "error", err)
	}
	backups.Cleanup()

	logger.Info("rollback complete, rebooting")
	if err := reboot(); err != nil {
		logger.Error("reboot request failed", "error", err)
	}
	return true
}
