package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveVersion(t *testing.T) {
	tests := []struct {
		name          string
		selectedTag   string
		available     string
		defaultBranch string
		publishedTags []string
		want          string
		wantClear     bool
	}{
		{
			name:          "release available",
			available:     "1.2.0",
			defaultBranch: "main",
			publishedTags: []string{"1.2.0", "1.1.0"},
			want:          "1.2.0",
		},
		{
			name:          "selected tag equals available clears selection",
			selectedTag:   "1.2.0",
			available:     "1.2.0",
			defaultBranch: "main",
			publishedTags: []string{"1.2.0"},
			want:          "1.2.0",
			wantClear:     true,
		},
		{
			name:          "older selected tag wins over available",
			selectedTag:   "1.1.0",
			available:     "1.2.0",
			defaultBranch: "main",
			publishedTags: []string{"1.2.0", "1.1.0"},
			want:          "1.1.0",
		},
		{
			name:          "selected default branch without releases",
			selectedTag:   "main",
			defaultBranch: "main",
			want:          "main",
		},
		{
			name:          "selected published tag without current release",
			selectedTag:   "0.9.0",
			defaultBranch: "main",
			publishedTags: []string{"0.9.0"},
			want:          "0.9.0",
		},
		{
			name:          "unknown selected tag falls back to branch",
			selectedTag:   "nope",
			defaultBranch: "main",
			want:          "main",
		},
		{
			name: "no branch and no releases falls back to master",
			want: "master",
		},
		{
			name:          "default branch only",
			defaultBranch: "dev",
			want:          "dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clear := resolveVersion(tt.selectedTag, tt.available, tt.defaultBranch, tt.publishedTags)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantClear, clear)
		})
	}
}

func TestRefForAndRefName(t *testing.T) {
	r := &Repository{}
	r.Data.DefaultBranch = "main"

	r.Ref = r.refFor("1.2.0")
	assert.Equal(t, "tags/1.2.0", r.Ref)
	assert.Equal(t, "1.2.0", r.RefName())

	r.Ref = r.refFor("main")
	assert.Equal(t, "main", r.Ref)
	assert.Equal(t, "main", r.RefName())
}

func TestPendingUpdate(t *testing.T) {
	r := &Repository{}
	r.Status.Installed = true
	r.Releases.HasReleases = true
	r.Versions.Installed = "1.0.0"
	r.Versions.Available = "1.1.0"
	assert.True(t, r.PendingUpdate())

	r.Versions.Available = "1.0.0"
	assert.False(t, r.PendingUpdate())

	// Commit tracking when following a branch.
	r.Releases.HasReleases = false
	r.Versions.InstalledCommit = "aaa1111"
	r.Versions.AvailableCommit = "bbb2222"
	assert.True(t, r.PendingUpdate())

	r.Versions.AvailableCommit = "aaa1111"
	assert.False(t, r.PendingUpdate())

	r.Status.Installed = false
	assert.False(t, r.PendingUpdate())
}

func TestPendingUpdateNonSemverTags(t *testing.T) {
	r := &Repository{}
	r.Status.Installed = true
	r.Releases.HasReleases = true
	r.Versions.Installed = "rolling-2024"
	r.Versions.Available = "rolling-2025"
	assert.True(t, r.PendingUpdate())
}

func TestCanInstall(t *testing.T) {
	r := &Repository{cfg: testConfig(t)}
	r.cfg.Host.Version = "2024.6.0"
	r.Releases.HasReleases = true

	r.Manifest.Homeassistant = "2024.1.0"
	assert.True(t, r.CanInstall())

	r.Manifest.Homeassistant = "2025.1.0"
	assert.False(t, r.CanInstall())

	// No requirement or no releases always passes.
	r.Manifest.Homeassistant = ""
	assert.True(t, r.CanInstall())

	r.Manifest.Homeassistant = "2025.1.0"
	r.Releases.HasReleases = false
	assert.True(t, r.CanInstall())
}
