package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hacs-community/hacs-agent/models"
)

var (
	installCategory string
	installVersion  string
)

var installCmd = &cobra.Command{
	Use:   "install <owner/repo>",
	Short: "Install a repository",
	Long: `Downloads and installs a repository's content into the configured
Home Assistant configuration directory. Untracked repositories are
registered first.

Examples:
  hacs-agent install kalkih/mini-media-player --category plugin
  hacs-agent install kalkih/mini-media-player --category plugin --release 1.16.0`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installCategory, "category", "integration",
		"repository category when registering on the fly")
	installCmd.Flags().StringVar(&installVersion, "release", "",
		"version to install (default: latest release or default branch)")
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	category, err := models.ParseCategory(installCategory)
	if err != nil {
		return err
	}

	o, store, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := o.Restore(ctx); err != nil {
		return err
	}

	r, err := o.Install(ctx, args[0], category, installVersion)
	if err != nil {
		return err
	}

	version := r.Versions.Installed
	if version == "" {
		version = r.Data.DefaultBranch
	}
	fmt.Printf("Installed %s (%s) to %s\n", r.String(), version, r.Content.LocalPath)
	if r.Status.PendingRestart {
		fmt.Println("Restart Home Assistant to load the new content.")
	}
	return nil
}
