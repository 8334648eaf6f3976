package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the periodic update daemon",
	Long: `Restores the registry, loads the curated default lists and keeps all
tracked repositories up to date on a schedule: installed repositories are
refreshed every 30 minutes, the full registry roughly every 8 hours.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	o, store, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Startup(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer o.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	fmt.Printf("Received %s, shutting down\n", sig)
	return o.Save(context.Background())
}
