package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hacs-community/hacs-agent/models"
)

var (
	registerCategory string
	registerRef      string
)

var registerCmd = &cobra.Command{
	Use:   "register <owner/repo | org>",
	Short: "Track a community repository",
	Long: `Validates and tracks a repository so it can be installed and updated.
A bare organisation name tracks every repository of that organisation.

Examples:
  hacs-agent register kalkih/mini-media-player --category plugin
  hacs-agent register pnbruckner/ha-sun2 --category integration --ref 3.0.1
  hacs-agent register custom-cards --category plugin`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerCategory, "category", "integration",
		"repository category (integration, plugin, theme, python_script, appdaemon, netdaemon)")
	registerCmd.Flags().StringVar(&registerRef, "ref", "",
		"pin to a specific tag or branch")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	category, err := models.ParseCategory(registerCategory)
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

	fullName := strings.TrimSuffix(args[0], "/")
	if !strings.Contains(fullName, "/") {
		if registerRef != "" {
			return fmt.Errorf("--ref cannot be combined with an organisation name")
		}
		count, err := o.RegisterOrg(ctx, fullName, category)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %d repositories from %s\n", count, fullName)
		return nil
	}

	r, err := o.Register(ctx, fullName, category, registerRef)
	if err != nil {
		return err
	}

	fmt.Printf("Registered %s\n", r.String())
	if r.Versions.Available != "" {
		fmt.Printf("Latest release: %s\n", r.Versions.Available)
	}
	return nil
}
