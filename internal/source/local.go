package source

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/exploreborders/picobridge/internal/fwversion"
)

// VersionMarkerName is the version marker file inside the update
// directory on removable storage.
const VersionMarkerName = "version.txt"

// Local serves updates from a reserved directory on removable storage
// (an SD card or USB stick mounted by the OS). The media may be
// mounted read-only; the adapter never writes to it.
type Local struct {
	updateDir string
	exclude   map[string]bool
	log       *slog.Logger
}

// NewLocal creates a removable-storage update source reading from
// updateDir (typically <mount point>/update). Names in exclude are
// dropped from the manifest; the version marker always is.
func NewLocal(updateDir string, exclude []string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	ex := make(map[string]bool, len(exclude)+1)
	for _, name := range exclude {
		ex[name] = true
	}
	ex[VersionMarkerName] = true
	return &Local{
		updateDir: updateDir,
		exclude:   ex,
		log:       logger,
	}
}

// Name implements Source.
func (l *Local) Name() string {
	return "sdcard"
}

// Available reports whether the update directory is present, i.e. the
// removable storage is mounted and carries updates.
func (l *Local) Available() bool {
	info, err := os.Stat(l.updateDir)
	return err == nil && info.IsDir()
}

// LatestVersion reads the version marker from the update directory.
func (l *Local) LatestVersion() (fwversion.Version, bool) {
	data, err := os.ReadFile(filepath.Join(l.updateDir, VersionMarkerName))
	if err != nil {
		l.log.Debug("no version marker on removable storage", "error", err)
		return fwversion.Version{}, false
	}

	line := strings.TrimSpace(string(data))
	if line == "" {
		return fwversion.Version{}, false
	}
	return fwversion.Parse(line), true
}

// Manifest lists the files directly inside the update directory.
// Non-recursive: the media is operator-provided, flat by convention.
func (l *Local) Manifest() ([]Entry, bool) {
	items, err := os.ReadDir(l.updateDir)
	if err != nil {
		l.log.Warn("failed to list update directory", "dir", l.updateDir, "error", err)
		return nil, false
	}

	var entries []Entry
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || strings.HasPrefix(name, ".") || l.exclude[name] {
			continue
		}
		entries = append(entries, Entry{
			Path:    name,
			Locator: filepath.Join(l.updateDir, name),
		})
	}
	return entries, true
}

// Fetch reads one file's content from the media.
func (l *Local) Fetch(e Entry) ([]byte, bool) {
	data, err := os.ReadFile(e.Locator)
	if err != nil {
		l.log.Warn("failed to read update file", "file", e.Path, "error", err)
		return nil, false
	}
	return data, true
}
