package config

// Config is the root configuration structure for the agent.
// Serialised to ~/.hacs-agent/config.json.
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"  json:"github"`
	Paths   PathsConfig   `mapstructure:"paths"   json:"paths"`
	Options OptionsConfig `mapstructure:"options" json:"options"`
	Storage StorageConfig `mapstructure:"storage" json:"storage"`
	Host    HostConfig    `mapstructure:"host"    json:"host"`
}

// GitHubConfig holds the credential used for all GitHub API calls.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host"  json:"host"`
}

// PathsConfig describes the Home Assistant configuration directory layout
// the agent installs content into.
type PathsConfig struct {
	// Config is the Home Assistant configuration directory.
	Config string `mapstructure:"config" json:"config"`
	// Theme is the themes directory relative to Config.
	Theme string `mapstructure:"theme"  json:"theme"`
}

// OptionsConfig controls discovery and update behaviour.
type OptionsConfig struct {
	// Country filters default repositories by the hacs.json country list.
	// "all" disables the filter.
	Country string `mapstructure:"country" json:"country"`
	// ReleaseLimit is how many releases to fetch per repository.
	ReleaseLimit int `mapstructure:"release_limit" json:"release_limit"`
	// AppDaemon and NetDaemon enable the optional categories.
	AppDaemon bool `mapstructure:"appdaemon" json:"appdaemon"`
	NetDaemon bool `mapstructure:"netdaemon" json:"netdaemon"`
	// Debug enables verbose logging regardless of the --verbose flag.
	Debug bool `mapstructure:"debug" json:"debug"`
}

// StorageConfig controls the persistence backend.
type StorageConfig struct {
	// Driver is "json" (default) or "sqlite".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (used when Driver == "sqlite").
	Path string `mapstructure:"path"   json:"path"`
}

// HostConfig describes the Home Assistant instance the content targets.
type HostConfig struct {
	// Version is the running Home Assistant version, used for the
	// hacs.json "homeassistant" minimum version check.
	Version string `mapstructure:"version" json:"version"`
}
