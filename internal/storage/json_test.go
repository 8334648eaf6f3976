package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hacs-community/hacs-agent/models"
)

func TestJSONStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSON(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	// Empty store reads back as zero values.
	settings, err := store.LoadSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, Settings{}, settings)

	records, err := store.LoadRepositories(ctx)
	require.NoError(t, err)
	require.Empty(t, records)

	want := []RepositoryRecord{{
		ID:               1337,
		FullName:         "user/my-card",
		Category:         models.CategoryPlugin,
		DefaultBranch:    "main",
		Installed:        true,
		VersionInstalled: "1.2.0",
		LastReleaseTag:   "1.3.0",
		FileName:         "my-card.js",
		PushedAt:         time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}}
	require.NoError(t, store.SaveRepositories(ctx, want))

	got, err := store.LoadRepositories(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, store.SaveSettings(ctx, Settings{Onboard: true, View: "grid"}))
	settings, err = store.LoadSettings(ctx)
	require.NoError(t, err)
	require.True(t, settings.Onboard)
	require.Equal(t, "grid", settings.View)
}

func TestJSONStoreEnvelope(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSON(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.SaveRepositories(ctx, []RepositoryRecord{{FullName: "a/b"}}))

	raw, err := os.ReadFile(filepath.Join(dir, ".storage", "hacs.repositories"))
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, schemaVersion, env.Version)
	require.Equal(t, "hacs.repositories", env.Key)
}

func TestJSONStoreLegacyMigration(t *testing.T) {
	dir := t.TempDir()
	storageDir := filepath.Join(dir, ".storage")
	require.NoError(t, os.MkdirAll(storageDir, 0o755))

	legacy := `{
		"Custom-Components/Sensor.Plex": {"version_installed": "1.1.0", "category": "integration"},
		"user/My-Card": {"version_installed": "2.0.0", "category": "plugin"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(storageDir, "hacs.installed"), []byte(legacy), 0o644))

	store, err := NewJSON(dir)
	require.NoError(t, err)

	records, err := store.LoadRepositories(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	byName := map[string]RepositoryRecord{}
	for _, r := range records {
		byName[r.FullName] = r
	}

	// Legacy names are lower-cased, installs are preserved.
	plex := byName["custom-components/sensor.plex"]
	require.True(t, plex.Installed)
	require.Equal(t, "1.1.0", plex.VersionInstalled)
	require.Equal(t, models.CategoryIntegration, plex.Category)

	card := byName["user/my-card"]
	require.Equal(t, models.CategoryPlugin, card.Category)
	require.Equal(t, "2.0.0", card.VersionInstalled)
}

func TestJSONStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	storageDir := filepath.Join(dir, ".storage")
	require.NoError(t, os.MkdirAll(storageDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(storageDir, "hacs.hacs"), []byte("{nope"), 0o644))

	store, err := NewJSON(dir)
	require.NoError(t, err)

	_, err = store.LoadSettings(context.Background())
	require.Error(t, err)
}
