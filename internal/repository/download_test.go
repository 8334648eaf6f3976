package repository

import (
	"archive/zip"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hacs-community/hacs-agent/internal/github"
	"github.com/hacs-community/hacs-agent/models"
)

func TestInstallPluginFromReleaseAsset(t *testing.T) {
	gh := newFakeClient()
	gh.info = &models.RepositoryInfo{
		ID:            1337,
		FullName:      "user/test-repo",
		DefaultBranch: "master",
		PushedAt:      time.Now(),
	}
	gh.tree = []models.TreeFile{fileEntry("README.md")}
	gh.releases = []models.Release{{
		TagName:     "3",
		PublishedAt: time.Now(),
		Assets: []models.ReleaseAsset{{
			Name:        "test.js",
			DownloadURL: "https://example.test/download/test.js",
		}},
	}}
	gh.files["https://example.test/download/test.js"] = []byte("console.info('hi');\n")

	r, err := New(gh, testConfig(t), "user/test-repo", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	require.NoError(t, r.Install(context.Background(), ""))

	require.Equal(t, "3", r.Versions.Installed)
	require.Equal(t, "tags/3", r.Ref)
	require.True(t, r.Status.Installed)
	require.False(t, r.Status.New)

	installed := filepath.Join(r.cfg.Paths.Config, "www", "community", "test-repo", "test.js")
	data, err := os.ReadFile(installed)
	require.NoError(t, err)
	require.Equal(t, "console.info('hi');\n", string(data))

	// Javascript gets a pre-compressed sibling.
	_, err = os.Stat(installed + ".gz")
	require.NoError(t, err)
}

func TestInstallIntegrationStripsContentRoot(t *testing.T) {
	gh := newFakeClient()
	gh.info = &models.RepositoryInfo{
		ID:            7,
		FullName:      "user/ha-thing",
		DefaultBranch: "main",
		PushedAt:      time.Now(),
	}
	gh.tree = []models.TreeFile{
		dirEntry("custom_components"),
		dirEntry("custom_components/thing"),
		fileEntry("custom_components/thing/__init__.py"),
		fileEntry("custom_components/thing/manifest.json"),
	}
	manifest := `{"domain":"thing","name":"Thing"}`
	gh.contents["custom_components/thing/manifest.json"] = []byte(manifest)
	gh.files[github.RawContentURL("user/ha-thing", "main", "custom_components/thing/__init__.py")] = []byte("")
	gh.files[github.RawContentURL("user/ha-thing", "main", "custom_components/thing/manifest.json")] = []byte(manifest)

	r, err := New(gh, testConfig(t), "user/ha-thing", models.CategoryIntegration, slog.Default())
	require.NoError(t, err)

	require.NoError(t, r.Install(context.Background(), ""))

	// Files land under custom_components/<domain>, without the remote prefix.
	base := filepath.Join(r.cfg.Paths.Config, "custom_components", "thing")
	_, err = os.Stat(filepath.Join(base, "manifest.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "__init__.py"))
	require.NoError(t, err)

	// Branch installs leave the installed version empty.
	require.Empty(t, r.Versions.Installed)
	require.True(t, r.Status.PendingRestart)
}

func TestInstallRestoresBackupOnFailure(t *testing.T) {
	gh := newFakeClient()
	gh.info = &models.RepositoryInfo{
		ID:            7,
		FullName:      "user/ha-thing",
		DefaultBranch: "main",
		PushedAt:      time.Now(),
	}
	gh.tree = []models.TreeFile{
		dirEntry("custom_components"),
		dirEntry("custom_components/thing"),
		fileEntry("custom_components/thing/__init__.py"),
		fileEntry("custom_components/thing/manifest.json"),
	}
	gh.contents["custom_components/thing/manifest.json"] = []byte(`{"domain":"thing","name":"Thing"}`)
	// No download URLs registered, every file fetch fails.

	r, err := New(gh, testConfig(t), "user/ha-thing", models.CategoryIntegration, slog.Default())
	require.NoError(t, err)

	existing := filepath.Join(r.cfg.Paths.Config, "custom_components", "thing")
	require.NoError(t, os.MkdirAll(existing, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(existing, "manifest.json"), []byte("old"), 0o644))
	r.Status.Installed = true
	r.Status.FirstInstall = false

	require.Error(t, r.Install(context.Background(), ""))

	data, err := os.ReadFile(filepath.Join(existing, "manifest.json"))
	require.NoError(t, err)
	require.Equal(t, "old", string(data))
}

func TestInstallKeepsPersistentDirectoryOnFailure(t *testing.T) {
	gh := newFakeClient()
	gh.info = &models.RepositoryInfo{
		ID:            8,
		FullName:      "user/ha-thing",
		DefaultBranch: "main",
		PushedAt:      time.Now(),
	}
	gh.tree = []models.TreeFile{
		fileEntry("hacs.json"),
		dirEntry("custom_components"),
		dirEntry("custom_components/thing"),
		fileEntry("custom_components/thing/__init__.py"),
		fileEntry("custom_components/thing/manifest.json"),
	}
	gh.contents["hacs.json"] = []byte(`{"persistent_directory":"userdata"}`)
	gh.contents["custom_components/thing/manifest.json"] = []byte(`{"domain":"thing","name":"Thing"}`)
	// No download URLs registered, every file fetch fails.

	r, err := New(gh, testConfig(t), "user/ha-thing", models.CategoryIntegration, slog.Default())
	require.NoError(t, err)

	existing := filepath.Join(r.cfg.Paths.Config, "custom_components", "thing")
	require.NoError(t, os.MkdirAll(filepath.Join(existing, "userdata"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(existing, "userdata", "state.json"), []byte(`{"count":3}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(existing, "manifest.json"), []byte("old"), 0o644))
	r.Status.Installed = true
	r.Status.FirstInstall = false

	require.Error(t, r.Install(context.Background(), ""))

	// The failed upgrade restored the install and the persistent data.
	data, err := os.ReadFile(filepath.Join(existing, "manifest.json"))
	require.NoError(t, err)
	require.Equal(t, "old", string(data))

	state, err := os.ReadFile(filepath.Join(existing, "userdata", "state.json"))
	require.NoError(t, err)
	require.Equal(t, `{"count":3}`, string(state))
}

func TestShouldTryReleases(t *testing.T) {
	r := &Repository{}
	r.Data.Category = models.CategoryPlugin
	r.Data.DefaultBranch = "main"
	r.Releases.HasReleases = true

	r.Ref = "tags/1.0.0"
	require.True(t, r.shouldTryReleases())

	// Installing the default branch never uses releases.
	r.Ref = "main"
	require.False(t, r.shouldTryReleases())

	// Non frontend categories download from the tree.
	r.Ref = "tags/1.0.0"
	r.Data.Category = models.CategoryIntegration
	require.False(t, r.shouldTryReleases())

	// Except explicit zip releases.
	r.Manifest.ZipRelease = true
	r.Manifest.Filename = "bundle.zip"
	require.True(t, r.shouldTryReleases())

	r.Manifest.ZipRelease = false
	r.Data.Category = models.CategoryTheme
	r.Releases.HasReleases = false
	require.False(t, r.shouldTryReleases())
}

func TestGatherFilesToDownloadThemeContentInRoot(t *testing.T) {
	r := newTestRepository(t, nil, "user/noctis", models.CategoryTheme)
	r.Data.DefaultBranch = "main"
	r.Ref = "main"
	r.Manifest.ContentInRoot = true
	r.Content = models.Content{RemotePath: "", Resolved: true}
	r.Tree = []models.TreeFile{
		fileEntry("noctis.yaml"),
		fileEntry("README.md"),
	}

	files := r.GatherFilesToDownload()
	require.Len(t, files, 1)
	require.Equal(t, "noctis.yaml", files[0].Name)
}

func zipWith(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	err := extractZip(zipWith(t, "../evil.txt", "boom"), dir)
	require.Error(t, err)
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, extractZip(zipWith(t, "sub/file.txt", "ok"), dir))
	data, err := os.ReadFile(filepath.Join(dir, "sub", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "ok", string(data))
}
