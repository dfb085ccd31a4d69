// Package source provides the update sources the supervisor probes at
// boot: a GitHub release repository reached over the network, and a
// reserved directory on removable storage. Both reduce to the same
// probe/list/fetch surface so the apply and rollback logic is written
// once, source-agnostic.
package source

import (
	"github.com/exploreborders/picobridge/internal/fwversion"
)

// Entry is one file an update source offers. Path is the destination
// relative to the firmware root, forward-slash separated; it doubles
// as the backup key. Locator is adapter-private (a download URL or a
// source-absolute path) and lives only for one update attempt.
type Entry struct {
	Path    string
	Locator string
}

// Source is an interchangeable update source. All I/O failures —
// no network, no media, rate limits, malformed responses — read as
// absent results; a Source never returns an error.
type Source interface {
	// Name identifies the source in logs and results.
	Name() string

	// Available reports whether the source can be probed at all:
	// network reachable, or removable storage present.
	Available() bool

	// LatestVersion returns the newest version the source publishes,
	// or false on any transport error or missing release. "Cannot
	// tell" and "nothing newer" are deliberately indistinguishable
	// at this layer.
	LatestVersion() (fwversion.Version, bool)

	// Manifest lists the files offered for the latest version, or
	// false if the listing failed.
	Manifest() ([]Entry, bool)

	// Fetch returns an entry's full content, or false on any read or
	// transport failure. There is no partial-content handling: a
	// non-success response fails the whole file.
	Fetch(e Entry) ([]byte, bool)
}
