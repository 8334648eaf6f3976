package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hacs-community/hacs-agent/internal/config"
	"github.com/hacs-community/hacs-agent/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using SQLite via mattn/go-sqlite3.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the SQLite database at cfg.Path and applies
// pending migrations.
func NewSQLite(cfg config.StorageConfig) (*SQLiteStore, error) {
	path := cfg.Path
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, config.DefaultDBFile)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Driver() string { return "sqlite" }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// migrate applies all *.sql files from migrations/ in sorted order, using a
// migrations table to track what has been applied.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		filename    TEXT    NOT NULL UNIQUE,
		applied_at  TEXT    NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var count int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		slog.Info("applied migration", "file", name)
	}
	return nil
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (Settings, error) {
	var (
		settings Settings
		archived string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT view, onboarding_done, archived FROM settings WHERE id = 1`)
	err := row.Scan(&settings.View, &settings.Onboard, &archived)
	if err == sql.ErrNoRows {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	if err := json.Unmarshal([]byte(archived), &settings.Archived); err != nil {
		return Settings{}, fmt.Errorf("parsing archived list: %w", err)
	}
	return settings, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, settings Settings) error {
	archived, err := json.Marshal(settings.Archived)
	if err != nil {
		return fmt.Errorf("encoding archived list: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, view, onboarding_done, archived)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			view = excluded.view,
			onboarding_done = excluded.onboarding_done,
			archived = excluded.archived`,
		settings.View, settings.Onboard, string(archived))
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

const repositoryColumns = `id, full_name, category, description, default_branch,
	domain, file_name, stars, downloads, pushed_at, last_commit, installed,
	is_new, hidden, selected_tag, show_beta, first_install, version_installed,
	installed_commit, last_release_tag`

func (s *SQLiteStore) LoadRepositories(ctx context.Context) ([]RepositoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+repositoryColumns+` FROM repositories ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("loading repositories: %w", err)
	}
	defer rows.Close()

	var records []RepositoryRecord
	for rows.Next() {
		var (
			r        RepositoryRecord
			category string
			pushedAt string
		)
		err := rows.Scan(&r.ID, &r.FullName, &category, &r.Description,
			&r.DefaultBranch, &r.Domain, &r.FileName, &r.Stars, &r.Downloads,
			&pushedAt, &r.LastCommit, &r.Installed, &r.New, &r.Hidden,
			&r.SelectedTag, &r.ShowBeta, &r.FirstInstall, &r.VersionInstalled,
			&r.InstalledCommit, &r.LastReleaseTag)
		if err != nil {
			return nil, fmt.Errorf("scanning repository row: %w", err)
		}
		r.Category = models.Category(category)
		if pushedAt != "" {
			if ts, err := time.Parse(time.RFC3339, pushedAt); err == nil {
				r.PushedAt = ts
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SaveRepositories replaces the registry in one transaction.
func (s *SQLiteStore) SaveRepositories(ctx context.Context, records []RepositoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM repositories`); err != nil {
		return fmt.Errorf("clearing repositories: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO repositories (`+repositoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		pushedAt := ""
		if !r.PushedAt.IsZero() {
			pushedAt = r.PushedAt.UTC().Format(time.RFC3339)
		}
		_, err := stmt.ExecContext(ctx, r.ID, r.FullName, string(r.Category),
			r.Description, r.DefaultBranch, r.Domain, r.FileName, r.Stars,
			r.Downloads, pushedAt, r.LastCommit, r.Installed, r.New, r.Hidden,
			r.SelectedTag, r.ShowBeta, r.FirstInstall, r.VersionInstalled,
			r.InstalledCommit, r.LastReleaseTag)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", r.FullName, err)
		}
	}

	return tx.Commit()
}
