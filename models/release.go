package models

import "time"

// ReleaseAsset is a file attached to a GitHub release.
type ReleaseAsset struct {
	Name          string `json:"name"`
	DownloadURL   string `json:"download_url"`
	DownloadCount int    `json:"download_count"`
}

// Release is a published GitHub release.
type Release struct {
	TagName     string         `json:"tag_name"`
	Name        string         `json:"name"`
	Draft       bool           `json:"draft"`
	Prerelease  bool           `json:"prerelease"`
	PublishedAt time.Time      `json:"published_at"`
	Assets      []ReleaseAsset `json:"assets"`
}

// TreeFile is one entry of a repository's recursive git tree.
type TreeFile struct {
	// Path is the full path within the repository.
	Path string `json:"path"`
	Dir  bool   `json:"dir"`
}

// Name returns the base name of the entry.
func (f TreeFile) Name() string {
	for i := len(f.Path) - 1; i >= 0; i-- {
		if f.Path[i] == '/' {
			return f.Path[i+1:]
		}
	}
	return f.Path
}

// Parent returns the directory part of the path, "" for root entries.
func (f TreeFile) Parent() string {
	for i := len(f.Path) - 1; i >= 0; i-- {
		if f.Path[i] == '/' {
			return f.Path[:i]
		}
	}
	return ""
}
