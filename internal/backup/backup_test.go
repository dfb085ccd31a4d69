package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	m := NewManager(root, filepath.Join(root, ".backup"), []string{"secrets.toml", ".version"}, nil)
	return m, root
}

func writeLive(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readLive(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestManager_RoundTrip(t *testing.T) {
	m, root := newTestManager(t)

	writeLive(t, root, "main.bin", "original main")
	writeLive(t, root, "sensors/ds18b20.conf", "original sensor conf")

	paths := []string{"main.bin", "sensors/ds18b20.conf"}
	require.True(t, m.Begin(paths))
	require.True(t, m.Exists())

	// Clobber the live tree the way a partial update would.
	writeLive(t, root, "main.bin", "new main")
	writeLive(t, root, "sensors/ds18b20.conf", "new sensor conf")

	assert.True(t, m.Restore())
	m.Cleanup()

	assert.Equal(t, "original main", readLive(t, root, "main.bin"))
	assert.Equal(t, "original sensor conf", readLive(t, root, "sensors/ds18b20.conf"))
	assert.False(t, m.Exists(), "no Backup Set may remain after cleanup")
}

func TestManager_BeginSkipsExcludedAndMissing(t *testing.T) {
	m, root := newTestManager(t)

	writeLive(t, root, "app.bin", "app")
	writeLive(t, root, "secrets.toml", "credentials")

	require.True(t, m.Begin([]string{"app.bin", "secrets.toml", "not-yet-present.bin"}))

	assert.FileExists(t, filepath.Join(m.BackupDir(), "app.bin"))
	assert.NoFileExists(t, filepath.Join(m.BackupDir(), "secrets.toml"))
	assert.NoFileExists(t, filepath.Join(m.BackupDir(), "not-yet-present.bin"))
}

func TestManager_BeginReplacesStaleSet(t *testing.T) {
	m, root := newTestManager(t)

	writeLive(t, root, "app.bin", "v1")
	require.True(t, m.Begin([]string{"app.bin"}))

	// Leftover from an interrupted attempt.
	writeLive(t, root, ".backup/orphan.bin", "stale")

	writeLive(t, root, "app.bin", "v2")
	require.True(t, m.Begin([]string{"app.bin"}))

	assert.NoFileExists(t, filepath.Join(m.BackupDir(), "orphan.bin"))
	data, err := os.ReadFile(filepath.Join(m.BackupDir(), "app.bin"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestManager_RestoreWithoutBackup(t *testing.T) {
	m, _ := newTestManager(t)

	assert.False(t, m.Restore())
}

func TestManager_RestoreBestEffort(t *testing.T) {
	m, root := newTestManager(t)

	writeLive(t, root, "a.bin", "a original")
	writeLive(t, root, "b.bin", "b original")
	require.True(t, m.Begin([]string{"a.bin", "b.bin"}))

	// Make one live destination unwritable by replacing it with a
	// directory, so that file's restore fails.
	require.NoError(t, os.Remove(filepath.Join(root, "a.bin")))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a.bin", "block"), 0755))
	writeLive(t, root, "b.bin", "b clobbered")

	assert.False(t, m.Restore(), "a failed entry must report failure")
	assert.Equal(t, "b original", readLive(t, root, "b.bin"), "remaining files are still restored")
}

func TestManager_CleanupIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	m.Cleanup()
	m.Cleanup()
	assert.False(t, m.Exists())
}

func TestManager_BeginRejectsEscapingPaths(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "firmware")
	require.NoError(t, os.MkdirAll(root, 0755))
	m := NewManager(root, filepath.Join(root, ".backup"), []string{"secrets.toml", ".version"}, nil)

	// A file outside the firmware root, reachable via traversal.
	require.NoError(t, os.WriteFile(filepath.Join(parent, "escape.bin"), []byte("outside"), 0644))
	writeLive(t, root, "app.bin", "app")

	require.True(t, m.Begin([]string{"../escape.bin", "/etc/passwd", "nested/../../escape.bin", "app.bin"}))

	assert.NoFileExists(t, filepath.Join(root, "escape.bin"),
		"a traversal path must never materialize inside the live tree")
	assert.NoFileExists(t, filepath.Join(m.BackupDir(), "escape.bin"))
	assert.FileExists(t, filepath.Join(m.BackupDir(), "app.bin"))
}

func TestManager_BackupDirNeverBacksItself(t *testing.T) {
	m, root := newTestManager(t)

	writeLive(t, root, ".backup/inner.bin", "inner")
	writeLive(t, root, "app.bin", "app")

	require.True(t, m.Begin([]string{".backup/inner.bin", "app.bin"}))
	assert.NoFileExists(t, filepath.Join(m.BackupDir(), ".backup", "inner.bin"))
}
