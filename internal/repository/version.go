package repository

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// VersionToInstall resolves which version Install will fetch, applying the
// selected tag clearing side effect on Status.
func (r *Repository) VersionToInstall() string {
	version, clearSelected := resolveVersion(
		r.Status.SelectedTag,
		r.Versions.Available,
		r.Data.DefaultBranch,
		r.Releases.PublishedTags,
	)
	if clearSelected {
		r.Status.SelectedTag = ""
	}
	return version
}

// resolveVersion implements the version precedence: an available release wins
// unless a different tag was explicitly selected; a selected tag is honoured
// when it names the default branch or a published tag; otherwise the default
// branch, with "master" as the historical fallback when the branch is
// unknown.
func resolveVersion(selectedTag, available, defaultBranch string, publishedTags []string) (version string, clearSelected bool) {
	if available != "" {
		if selectedTag == available {
			return available, true
		}
		if selectedTag != "" {
			return selectedTag, false
		}
		return available, false
	}

	if selectedTag != "" {
		if selectedTag == defaultBranch {
			return selectedTag, false
		}
		for _, tag := range publishedTags {
			if tag == selectedTag {
				return selectedTag, false
			}
		}
	}

	if defaultBranch == "" {
		return "master", false
	}
	return defaultBranch, false
}

// refFor returns the git reference for a resolved version: branches are used
// as-is, tags get the "tags/" prefix.
func (r *Repository) refFor(version string) string {
	if version == "" {
		return ""
	}
	if version == r.Data.DefaultBranch {
		return version
	}
	return "tags/" + version
}

// RefName is the ref with any "tags/" prefix stripped, suitable for tree and
// content lookups.
func (r *Repository) RefName() string {
	return strings.TrimPrefix(r.Ref, "tags/")
}

// PendingUpdate reports whether a newer version than the installed one is
// available.
func (r *Repository) PendingUpdate() bool {
	if !r.Status.Installed {
		return false
	}

	if r.Status.SelectedTag == r.Data.DefaultBranch && r.Status.SelectedTag != "" || !r.Releases.HasReleases {
		if r.Versions.InstalledCommit == "" || r.Versions.AvailableCommit == "" {
			return false
		}
		return r.Versions.InstalledCommit != r.Versions.AvailableCommit
	}

	if r.Versions.Installed == "" || r.Versions.Available == "" {
		return false
	}
	return versionHigher(r.Versions.Available, r.Versions.Installed)
}

// versionHigher reports whether a is a higher version than b. Falls back to
// plain inequality when either side does not parse as semver.
func versionHigher(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return a != b
	}
	return va.GreaterThan(vb)
}

// CanInstall reports whether the host version satisfies the repository's
// declared minimum. Repositories without a requirement, or without releases,
// always pass. Unparseable constraints are treated permissively.
func (r *Repository) CanInstall() bool {
	required := r.Manifest.Homeassistant
	if required == "" || !r.Releases.HasReleases {
		return true
	}
	if r.cfg == nil || r.cfg.Host.Version == "" {
		return true
	}

	host, err := semver.NewVersion(r.cfg.Host.Version)
	if err != nil {
		return true
	}
	min, err := semver.NewVersion(required)
	if err != nil {
		return true
	}
	return !host.LessThan(min)
}
