package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hacs-community/hacs-agent/internal/agent"
	"github.com/hacs-community/hacs-agent/internal/config"
	"github.com/hacs-community/hacs-agent/internal/events"
	"github.com/hacs-community/hacs-agent/internal/github"
	"github.com/hacs-community/hacs-agent/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hacs-agent",
	Short: "Discover, install and update Home Assistant community repositories",
	Long: `hacs-agent manages community provided integrations, plugins, themes,
python scripts, AppDaemon apps and NetDaemon apps from GitHub.

Get started:
  hacs-agent register   Track a repository
  hacs-agent install    Install a tracked repository
  hacs-agent upgrade    Update repositories to their latest versions
  hacs-agent list       Show tracked repositories
  hacs-agent daemon     Run the periodic update daemon`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.hacs-agent/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		registerCmd,
		installCmd,
		upgradeCmd,
		uninstallCmd,
		removeCmd,
		listCmd,
		daemonCmd,
		configCmd,
	)
}

func initLogging() {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}

// newOrchestrator wires up a ready-to-use orchestrator from the persisted
// configuration. The caller owns the returned store and must Close it.
func newOrchestrator() (*agent.Orchestrator, storage.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Options.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	gh, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Host,
		github.DefaultRetryPolicy(), slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("creating GitHub client: %w", err)
	}

	store, err := storage.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	return agent.New(cfg, gh, store, events.New(slog.Default()), slog.Default()), store, nil
}
