package repository

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hacs-community/hacs-agent/internal/github"
	"github.com/hacs-community/hacs-agent/models"
)

type staticBlocklist map[string]bool

func (b staticBlocklist) Contains(fullName string) bool { return b[fullName] }

type recordingEvents struct {
	events []map[string]any
}

func (e *recordingEvents) Dispatch(eventType string, payload map[string]any) {
	e.events = append(e.events, payload)
}

func pluginFake(pushedAt time.Time) *fakeClient {
	gh := newFakeClient()
	gh.info = &models.RepositoryInfo{
		ID:            42,
		FullName:      "user/my-card",
		DefaultBranch: "main",
		PushedAt:      pushedAt,
	}
	gh.tree = []models.TreeFile{
		dirEntry("dist"),
		fileEntry("dist/my-card.js"),
		fileEntry("info.md"),
	}
	gh.contents["info.md"] = []byte("# My card")
	return gh
}

func TestUpdateSkipsUnchangedRepository(t *testing.T) {
	gh := pluginFake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	changed, err := r.Update(context.Background(), false)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 1, gh.callCount("RenderMarkdown"))
	require.Contains(t, r.AdditionalInfo, "My card")

	// Upstream unchanged, the expensive work is skipped.
	changed, err = r.Update(context.Background(), false)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 1, gh.callCount("RenderMarkdown"))

	// A push makes the next cycle process it again.
	gh.info.PushedAt = gh.info.PushedAt.Add(time.Hour)
	changed, err = r.Update(context.Background(), false)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 2, gh.callCount("RenderMarkdown"))
}

func TestUpdateForceIgnoresPushedAt(t *testing.T) {
	gh := pluginFake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	_, err = r.Update(context.Background(), false)
	require.NoError(t, err)

	changed, err := r.Update(context.Background(), true)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestUpdateSurfacesNonCompliantStructure(t *testing.T) {
	gh := pluginFake(time.Now())
	gh.tree = []models.TreeFile{fileEntry("README.md")}

	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	_, err = r.Update(context.Background(), true)
	require.ErrorIs(t, err, ErrNotCompliant)
	require.Len(t, r.Validation.Errors(), 1)

	// Errors do not pile up across cycles.
	_, err = r.Update(context.Background(), true)
	require.ErrorIs(t, err, ErrNotCompliant)
	require.Len(t, r.Validation.Errors(), 1)
}

func TestValidateRejectsArchived(t *testing.T) {
	gh := pluginFake(time.Now())
	gh.info.Archived = true

	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	err = r.Validate(context.Background())
	require.ErrorIs(t, err, ErrArchived)
	require.Contains(t, r.Validation.Errors(), "Repository is archived.")
}

func TestValidateRejectsBlacklisted(t *testing.T) {
	gh := pluginFake(time.Now())
	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)
	r.SetBlocklist(staticBlocklist{"user/my-card": true})

	err = r.Validate(context.Background())
	require.ErrorIs(t, err, ErrBlacklisted)
}

func TestRegisterPinsSelectedTag(t *testing.T) {
	gh := pluginFake(time.Now())
	gh.releases = []models.Release{
		{TagName: "2.0.0", PublishedAt: time.Now()},
		{TagName: "1.0.0", PublishedAt: time.Now().Add(-time.Hour)},
	}

	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	events := &recordingEvents{}
	r.SetEvents(events)

	require.NoError(t, r.Register(context.Background(), "1.0.0"))
	require.Equal(t, "1.0.0", r.Status.SelectedTag)
	require.Equal(t, "tags/1.0.0", r.Ref)
	require.True(t, r.Status.Tracked)
	require.Len(t, events.events, 1)
	require.Equal(t, "registration", events.events[0]["action"])
}

func TestRegisterWithoutRefFollowsLatestRelease(t *testing.T) {
	gh := pluginFake(time.Now())
	gh.releases = []models.Release{{TagName: "2.0.0", PublishedAt: time.Now()}}

	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	require.NoError(t, r.Register(context.Background(), ""))
	require.Equal(t, "2.0.0", r.Versions.Available)
	require.Equal(t, "tags/2.0.0", r.Ref)
}

func TestPrereleasesHiddenWithoutShowBeta(t *testing.T) {
	gh := pluginFake(time.Now())
	gh.releases = []models.Release{
		{TagName: "3.0.0-beta.1", Prerelease: true, PublishedAt: time.Now()},
		{TagName: "2.0.0", PublishedAt: time.Now().Add(-time.Hour)},
	}

	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	require.NoError(t, r.fetchReleases(context.Background()))
	require.Equal(t, "2.0.0", r.Versions.Available)

	r.Status.ShowBeta = true
	require.NoError(t, r.fetchReleases(context.Background()))
	require.Equal(t, "3.0.0-beta.1", r.Versions.Available)
}

func TestDeletedSelectedTagFallsBack(t *testing.T) {
	gh := pluginFake(time.Now())
	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	// Pinned to a tag that no longer resolves; GetTree fails once, then
	// the repository retries against the default branch.
	r.Data.DefaultBranch = "main"
	r.Status.SelectedTag = "gone"
	r.forceBranch = true
	r.Ref = "tags/gone"
	failOnce := &failFirstTree{fakeClient: gh}
	r.gh = failOnce

	require.NoError(t, r.fetchTree(context.Background(), false))
	require.Empty(t, r.Status.SelectedTag)
	require.Equal(t, "main", r.Ref)
}

type failFirstTree struct {
	*fakeClient
	failed bool
}

func (f *failFirstTree) GetTree(ctx context.Context, fullName, ref string) ([]models.TreeFile, error) {
	if !f.failed && ref == "gone" {
		f.failed = true
		return nil, github.ErrNotFound
	}
	return f.fakeClient.GetTree(ctx, fullName, ref)
}

func TestValidationAccumulates(t *testing.T) {
	v := &Validation{}
	require.True(t, v.Success())
	v.Append("first problem")
	v.Append("second problem with %s", "detail")
	require.False(t, v.Success())
	require.Len(t, v.Errors(), 2)
	v.Reset()
	require.True(t, v.Success())
}

func TestUninstallClearsState(t *testing.T) {
	gh := pluginFake(time.Now())
	r, err := New(gh, testConfig(t), "user/my-card", models.CategoryPlugin, slog.Default())
	require.NoError(t, err)

	events := &recordingEvents{}
	r.SetEvents(events)

	r.Status.Installed = true
	r.Versions.Installed = "1.0.0"
	r.Versions.InstalledCommit = "abc1234"

	require.NoError(t, r.Uninstall(context.Background()))
	require.False(t, r.Status.Installed)
	require.Empty(t, r.Versions.Installed)
	require.Empty(t, r.Versions.InstalledCommit)
	require.True(t, r.Status.FirstInstall)
	require.Equal(t, "uninstall", events.events[len(events.events)-1]["action"])
}
