package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hacs-community/hacs-agent/models"
)

const (
	storageDir      = ".storage"
	settingsKey     = "hacs.hacs"
	repositoriesKey = "hacs.repositories"
	legacyFile      = "hacs.installed"

	schemaVersion = 6
)

// envelope is the on-disk wrapper of every storage file.
type envelope struct {
	Version int             `json:"version"`
	Key     string          `json:"key"`
	Data    json.RawMessage `json:"data"`
}

// JSONStore persists settings and the registry as versioned JSON files under
// <config>/.storage/.
type JSONStore struct {
	dir string
}

// NewJSON creates a JSON store rooted at the given config directory.
func NewJSON(configPath string) (*JSONStore, error) {
	if configPath == "" {
		return nil, fmt.Errorf("storage: config path is empty")
	}
	dir := filepath.Join(configPath, storageDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) Driver() string { return "json" }

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) LoadSettings(ctx context.Context) (Settings, error) {
	var settings Settings
	ok, err := s.read(settingsKey, &settings)
	if err != nil || !ok {
		return Settings{}, err
	}
	return settings, nil
}

func (s *JSONStore) SaveSettings(ctx context.Context, settings Settings) error {
	return s.write(settingsKey, settings)
}

func (s *JSONStore) LoadRepositories(ctx context.Context) ([]RepositoryRecord, error) {
	var records []RepositoryRecord
	ok, err := s.read(repositoriesKey, &records)
	if err != nil {
		return nil, err
	}
	if ok {
		return records, nil
	}
	return s.loadLegacy()
}

func (s *JSONStore) SaveRepositories(ctx context.Context, records []RepositoryRecord) error {
	return s.write(repositoriesKey, records)
}

// loadLegacy migrates the flat pre-schema file, which held a plain map of
// full_name to installed version.
func (s *JSONStore) loadLegacy() ([]RepositoryRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, legacyFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading legacy storage: %w", err)
	}

	var legacy map[string]struct {
		Version  string `json:"version_installed"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parsing legacy storage: %w", err)
	}

	records := make([]RepositoryRecord, 0, len(legacy))
	for fullName, entry := range legacy {
		category, err := models.ParseCategory(entry.Category)
		if err != nil {
			category = models.CategoryIntegration
		}
		records = append(records, RepositoryRecord{
			FullName:         strings.ToLower(fullName),
			Category:         category,
			Installed:        true,
			VersionInstalled: entry.Version,
		})
	}
	return records, nil
}

// read unmarshals the data section of a storage file into dest. Returns
// false when the file does not exist.
func (s *JSONStore) read(key string, dest any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return false, fmt.Errorf("parsing %s data: %w", key, err)
	}
	return true, nil
}

// write marshals value into a versioned envelope and writes it atomically,
// via a temp file in the same directory.
func (s *JSONStore) write(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	env := envelope{Version: schemaVersion, Key: key, Data: data}
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", key, err)
	}

	path := filepath.Join(s.dir, key)
	tmp, err := os.CreateTemp(s.dir, key+".tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", key, err)
	}
	return nil
}

