package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/hacs-community/hacs-agent/models"
)

const (
	DefaultConfigDir  = ".hacs-agent"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".hacs-agent/hacs.db"
)

// Load reads the config file (creating defaults if absent) and returns a
// populated Config. The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("hacs")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config yet, defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	return &cfg, nil
}

// ConfigPath returns the effective config file location.
func ConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

// Categories returns the enabled repository categories.
func (c *Config) Categories() []models.Category {
	categories := []models.Category{
		models.CategoryIntegration,
		models.CategoryPlugin,
		models.CategoryTheme,
		models.CategoryPythonScript,
	}
	if c.Options.AppDaemon {
		categories = append(categories, models.CategoryAppDaemon)
	}
	if c.Options.NetDaemon {
		categories = append(categories, models.CategoryNetDaemon)
	}
	return categories
}

// CategoryEnabled reports whether a category is enabled.
func (c *Config) CategoryEnabled(category models.Category) bool {
	for _, enabled := range c.Categories() {
		if enabled == category {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("github.token", "")
	v.SetDefault("github.host", "")

	v.SetDefault("paths.config", ".")
	v.SetDefault("paths.theme", "themes")

	v.SetDefault("options.country", "all")
	v.SetDefault("options.release_limit", 5)
	v.SetDefault("options.appdaemon", false)
	v.SetDefault("options.netdaemon", false)
	v.SetDefault("options.debug", false)

	v.SetDefault("storage.driver", "json")
	v.SetDefault("storage.path", filepath.Join(home, DefaultDBFile))

	v.SetDefault("host.version", "")
}

func expandPaths(cfg *Config, home string) {
	cfg.Paths.Config = expandHome(cfg.Paths.Config, home)
	cfg.Storage.Path = expandHome(cfg.Storage.Path, home)
	if cfg.Paths.Config == "." || cfg.Paths.Config == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.Paths.Config = cwd
		}
	}
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
