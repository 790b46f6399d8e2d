package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/reconcile"
)

var (
	runsRegion string
	runsKind   string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent runs and their health for a scope",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsRegion, "region", "", "region of the scope")
	runsCmd.Flags().StringVar(&runsKind, "kind", "buy", "listing kind: buy or rent")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	if runsRegion == "" {
		return errors.NewConfigError("runs", "--region is required", nil)
	}
	kind, err := listing.ParseKind(runsKind)
	if err != nil {
		return errors.NewConfigError("runs", "invalid --kind", err)
	}
	scope := listing.Scope{Region: listing.NormalizeRegion(runsRegion), Kind: kind}

	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	runs, err := store.RecentRuns(cmd.Context(), scope, runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("no runs recorded for %s\n", scope)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tFOUND\tNEW\tUPDATED\tDELISTED\tERRORS\tSOURCE\tHEALTH")
	for i := range runs {
		run := &runs[i]
		report := reconcile.AssessRun(run)
		status := string(report.Level)
		if !run.Finished() {
			status = "in flight"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.ListingsFound, run.ListingsNew, run.ListingsUpdated,
			run.DelistedCount, run.Errors, run.SourceUsed, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nwindow: %.0f%% successful, %.1f%% listing error rate over %d run(s)\n",
		reconcile.SuccessRate(runs)*100, reconcile.WindowErrorRate(runs)*100, len(runs))
	return nil
}
