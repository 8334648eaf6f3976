package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var upgradeAll bool

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [owner/repo...]",
	Short: "Update installed repositories to their latest versions",
	Long: `Refreshes upstream state and reinstalls every named repository that has
a pending update. With --all, every installed repository is checked.`,
	RunE: runUpgrade,
}

func init() {
	upgradeCmd.Flags().BoolVar(&upgradeAll, "all", false,
		"upgrade every installed repository")
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	if !upgradeAll && len(args) == 0 {
		return fmt.Errorf("name repositories to upgrade or pass --all")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	o, store, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := o.Restore(ctx); err != nil {
		return err
	}

	targets := args
	if upgradeAll {
		targets = nil
		for _, r := range o.List() {
			if r.Status.Installed {
				targets = append(targets, r.Data.FullName)
			}
		}
	}

	upgraded := 0
	for _, name := range targets {
		r := o.Get(name)
		if r == nil {
			fmt.Printf("Skipping %s: not tracked\n", name)
			continue
		}
		if !r.Status.Installed {
			fmt.Printf("Skipping %s: not installed\n", name)
			continue
		}

		if _, err := r.Update(ctx, true); err != nil {
			fmt.Printf("Could not refresh %s: %v\n", name, err)
			continue
		}
		if !r.PendingUpdate() {
			fmt.Printf("%s is up to date\n", r.String())
			continue
		}

		if err := r.Install(ctx, ""); err != nil {
			fmt.Printf("Upgrade of %s failed: %v\n", name, err)
			continue
		}
		fmt.Printf("Upgraded %s to %s\n", r.String(), r.Versions.Installed)
		upgraded++
	}

	if err := o.Save(ctx); err != nil {
		return err
	}
	fmt.Printf("Done, %d repositories upgraded\n", upgraded)
	return nil
}
