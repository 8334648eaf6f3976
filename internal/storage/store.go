// Package storage persists agent settings and the repository registry.
// Implementations exist for versioned JSON files (default) and SQLite.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hacs-community/hacs-agent/internal/config"
	"github.com/hacs-community/hacs-agent/models"
)

// Store is the persistence interface used by the agent.
type Store interface {
	// LoadSettings reads the persisted agent settings. A missing store
	// returns zero settings and no error.
	LoadSettings(ctx context.Context) (Settings, error)

	// SaveSettings writes the agent settings.
	SaveSettings(ctx context.Context, s Settings) error

	// LoadRepositories reads all persisted repository records.
	LoadRepositories(ctx context.Context) ([]RepositoryRecord, error)

	// SaveRepositories writes the full repository registry.
	SaveRepositories(ctx context.Context, records []RepositoryRecord) error

	// Close releases any held resources.
	Close() error

	// Driver returns the backend name: "json" or "sqlite".
	Driver() string
}

// Settings holds the persisted agent level state.
type Settings struct {
	View     string   `json:"view" db:"view"`
	Onboard  bool     `json:"onboarding_done" db:"onboarding_done"`
	Archived []string `json:"archived_repositories" db:"-"`
}

// RepositoryRecord is the flattened persisted form of one repository.
type RepositoryRecord struct {
	ID               int64           `json:"id" db:"id"`
	FullName         string          `json:"full_name" db:"full_name"`
	Category         models.Category `json:"category" db:"category"`
	Description      string          `json:"description" db:"description"`
	DefaultBranch    string          `json:"default_branch" db:"default_branch"`
	Domain           string          `json:"domain,omitempty" db:"domain"`
	FileName         string          `json:"file_name,omitempty" db:"file_name"`
	Stars            int             `json:"stargazers_count" db:"stars"`
	Downloads        int             `json:"downloads" db:"downloads"`
	PushedAt         time.Time       `json:"pushed_at" db:"pushed_at"`
	LastCommit       string          `json:"last_commit" db:"last_commit"`
	Installed        bool            `json:"installed" db:"installed"`
	New              bool            `json:"new" db:"is_new"`
	Hidden           bool            `json:"hide" db:"hidden"`
	SelectedTag      string          `json:"selected_tag,omitempty" db:"selected_tag"`
	ShowBeta         bool            `json:"show_beta" db:"show_beta"`
	FirstInstall     bool            `json:"first_install" db:"first_install"`
	VersionInstalled string          `json:"version_installed,omitempty" db:"version_installed"`
	InstalledCommit  string          `json:"installed_commit,omitempty" db:"installed_commit"`
	LastReleaseTag   string          `json:"last_release_tag,omitempty" db:"last_release_tag"`
}

// New returns a Store implementation matching cfg.Storage.Driver.
// JSON files are the default when the driver is empty or unrecognised.
func New(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite", "sqlite3":
		return NewSQLite(cfg.Storage)
	case "json", "":
		return NewJSON(cfg.Paths.Config)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q (supported: json, sqlite)", cfg.Storage.Driver)
	}
}
