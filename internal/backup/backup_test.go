package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateRestoreDirectory(t *testing.T) {
	local := filepath.Join(t.TempDir(), "custom_components", "example")
	require.NoError(t, os.MkdirAll(filepath.Join(local, "translations"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(local, "__init__.py"), []byte("PLATFORMS = []\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(local, "translations", "en.json"), []byte("{}"), 0o644))

	b := NewWithRoot(local, filepath.Join(t.TempDir(), "backup"), nil)
	require.NoError(t, b.Create())
	require.True(t, b.Created())

	// The live path is gone until restore.
	_, err := os.Stat(local)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, b.Restore())

	data, err := os.ReadFile(filepath.Join(local, "__init__.py"))
	require.NoError(t, err)
	require.Equal(t, "PLATFORMS = []\n", string(data))

	data, err = os.ReadFile(filepath.Join(local, "translations", "en.json"))
	require.NoError(t, err)
	require.Equal(t, "{}", string(data))

	require.NoError(t, b.Cleanup())
}

func TestCreateRestoreSingleFile(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "python_scripts", "example.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(local), 0o755))
	require.NoError(t, os.WriteFile(local, []byte("value = 1\n"), 0o644))

	b := NewWithRoot(local, filepath.Join(t.TempDir(), "backup"), nil)
	require.NoError(t, b.Create())

	_, err := os.Stat(local)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, b.Restore())

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	require.Equal(t, "value = 1\n", string(data))
}

func TestRestoreReplacesPartialContent(t *testing.T) {
	local := filepath.Join(t.TempDir(), "www", "community", "example-card")
	require.NoError(t, os.MkdirAll(local, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(local, "example-card.js"), []byte("old"), 0o644))

	b := NewWithRoot(local, filepath.Join(t.TempDir(), "backup"), nil)
	require.NoError(t, b.Create())

	// Simulate a half finished download.
	require.NoError(t, os.MkdirAll(local, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(local, "example-card.js"), []byte("truncat"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(local, "leftover.js"), []byte("junk"), 0o644))

	require.NoError(t, b.Restore())

	data, err := os.ReadFile(filepath.Join(local, "example-card.js"))
	require.NoError(t, err)
	require.Equal(t, "old", string(data))

	_, err = os.Stat(filepath.Join(local, "leftover.js"))
	require.True(t, os.IsNotExist(err))
}

func TestCreateMissingPathIsNoop(t *testing.T) {
	b := NewWithRoot(filepath.Join(t.TempDir(), "does-not-exist"), filepath.Join(t.TempDir(), "backup"), nil)
	require.NoError(t, b.Create())
	require.False(t, b.Created())
	require.NoError(t, b.Restore())
	require.NoError(t, b.Cleanup())
}
