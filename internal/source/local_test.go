package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exploreborders/picobridge/internal/fwversion"
)

func newTestLocal(t *testing.T) (*Local, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "update")
	return NewLocal(dir, []string{"secrets.toml"}, nil), dir
}

func populate(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestLocal_AvailableRequiresUpdateDir(t *testing.T) {
	l, dir := newTestLocal(t)

	assert.False(t, l.Available(), "unmounted media must read as unavailable")

	populate(t, dir, nil)
	assert.True(t, l.Available())
}

func TestLocal_LatestVersion(t *testing.T) {
	l, dir := newTestLocal(t)
	populate(t, dir, map[string]string{VersionMarkerName: "v1.1.0\n"})

	v, ok := l.LatestVersion()
	require.True(t, ok)
	assert.Equal(t, fwversion.Version{Major: 1, Minor: 1}, v)
}

func TestLocal_LatestVersionAbsentWithoutMarker(t *testing.T) {
	l, dir := newTestLocal(t)
	populate(t, dir, map[string]string{"main.bin": "fw"})

	_, ok := l.LatestVersion()
	assert.False(t, ok)
}

func TestLocal_ManifestFiltersReservedNames(t *testing.T) {
	l, dir := newTestLocal(t)
	populate(t, dir, map[string]string{
		VersionMarkerName: "1.2.0",
		"main.bin":        "fw",
		"config.toml":     "cfg",
		"secrets.toml":    "credentials",
		".Trashes":        "mac junk",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0755))

	entries, ok := l.Manifest()
	require.True(t, ok)

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"main.bin", "config.toml"}, paths)
}

func TestLocal_Fetch(t *testing.T) {
	l, dir := newTestLocal(t)
	populate(t, dir, map[string]string{"main.bin": "payload"})

	entries, ok := l.Manifest()
	require.True(t, ok)
	require.Len(t, entries, 1)

	data, ok := l.Fetch(entries[0])
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))

	_, ok = l.Fetch(Entry{Path: "gone.bin", Locator: filepath.Join(dir, "gone.bin")})
	assert.False(t, ok)
}
