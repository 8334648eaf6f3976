package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <owner/repo>",
	Short: "Remove a repository's installed content",
	Args:  cobra.ExactArgs(1),
	RunE:  runUninstall,
}

var removeCmd = &cobra.Command{
	Use:   "remove <owner/repo>",
	Short: "Uninstall and stop tracking a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func runUninstall(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	o, store, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := o.Restore(ctx); err != nil {
		return err
	}
	if err := o.Uninstall(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Uninstalled %s\n", args[0])
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	o, store, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := o.Restore(ctx); err != nil {
		return err
	}
	if err := o.Remove(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}
