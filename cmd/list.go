package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var listInstalled bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show tracked repositories",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listInstalled, "installed", false,
		"only show installed repositories")
}

func runList(cmd *cobra.Command, args []string) error {
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

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tCATEGORY\tINSTALLED\tAVAILABLE\tSTATE")
	for _, r := range o.List() {
		if listInstalled && !r.Status.Installed {
			continue
		}

		installed := r.Versions.Installed
		if installed == "" && r.Status.Installed {
			installed = r.Versions.InstalledCommit
		}
		if installed == "" {
			installed = "-"
		}

		available := r.Versions.Available
		if available == "" {
			available = r.Data.DefaultBranch
		}

		state := "tracked"
		switch {
		case r.Status.Installed && r.PendingUpdate():
			state = "update available"
		case r.Status.Installed:
			state = "installed"
		case r.Status.New:
			state = "new"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Data.FullName, r.Data.Category, installed, available, state)
	}
	return w.Flush()
}
