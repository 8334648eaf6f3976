package models

import (
	"strings"
	"time"
)

// RepositoryInfo is the subset of GitHub repository metadata the agent cares
// about. It is returned by the GitHub client wrapper and merged into
// RepositoryData on every update.
type RepositoryInfo struct {
	ID            int64     `json:"id"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	DefaultBranch string    `json:"default_branch"`
	Topics        []string  `json:"topics"`
	Archived      bool      `json:"archived"`
	Stars         int       `json:"stars"`
	PushedAt      time.Time `json:"pushed_at"`
}

// RepositoryData holds the persisted per-repository attributes.
type RepositoryData struct {
	ID            int64     `json:"id"`
	FullName      string    `json:"full_name"`
	Category      Category  `json:"category"`
	DefaultBranch string    `json:"default_branch"`
	Description   string    `json:"description"`
	Topics        []string  `json:"topics"`
	Archived      bool      `json:"archived"`
	Stars         int       `json:"stars"`
	Downloads     int       `json:"downloads"`
	PushedAt      time.Time `json:"pushed_at"`
	LastCommit    string    `json:"last_commit"`

	// Fields below come from the integration's manifest.json.
	Domain       string   `json:"domain,omitempty"`
	ManifestName string   `json:"manifest_name,omitempty"`
	ConfigFlow   bool     `json:"config_flow,omitempty"`
	Authors      []string `json:"authors,omitempty"`

	// FileName is the resolved artifact filename for single-file categories.
	FileName string `json:"file_name,omitempty"`
}

// Owner returns the "owner" part of full_name.
func (d *RepositoryData) Owner() string {
	owner, _, _ := strings.Cut(d.FullName, "/")
	return owner
}

// Name returns the short name used for local paths. Integrations use the
// manifest domain, everything else the repository name.
func (d *RepositoryData) Name() string {
	if d.Category == CategoryIntegration && d.Domain != "" {
		return d.Domain
	}
	if idx := strings.LastIndex(d.FullName, "/"); idx >= 0 {
		return d.FullName[idx+1:]
	}
	return d.FullName
}

// ApplyInfo merges freshly fetched GitHub metadata into the repository data.
func (d *RepositoryData) ApplyInfo(info *RepositoryInfo) {
	d.ID = info.ID
	if info.FullName != "" {
		d.FullName = info.FullName
	}
	d.Description = info.Description
	d.DefaultBranch = info.DefaultBranch
	d.Topics = info.Topics
	d.Archived = info.Archived
	d.Stars = info.Stars
	d.PushedAt = info.PushedAt
}

// Versions tracks installed vs. available versions. Tag based categories use
// Installed/Available, commit based ones the commit pair.
type Versions struct {
	Installed       string `json:"installed"`
	InstalledCommit string `json:"installed_commit"`
	Available       string `json:"available"`
	AvailableCommit string `json:"available_commit"`
}

// Status tracks the lifecycle flags of a repository.
type Status struct {
	Installed      bool   `json:"installed"`
	New            bool   `json:"new"`
	Hidden         bool   `json:"hidden"`
	Tracked        bool   `json:"tracked"`
	SelectedTag    string `json:"selected_tag,omitempty"`
	ShowBeta       bool   `json:"show_beta"`
	FirstInstall   bool   `json:"first_install"`
	PendingRestart bool   `json:"pending_restart"`
}

// Content describes where the installable content lives, remotely and locally.
type Content struct {
	// RemotePath is the path inside the upstream tree ("" means repo root,
	// "release" means release assets). Only meaningful when Resolved is true.
	RemotePath string `json:"remote_path"`
	Resolved   bool   `json:"resolved"`
	LocalPath  string `json:"local_path"`
	SingleFile bool   `json:"single_file"`
}

// FileInfo is one downloadable leaf file.
type FileInfo struct {
	Name        string
	Path        string
	DownloadURL string
}
