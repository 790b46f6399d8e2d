package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <source-id>",
	Short: "Show a listing's recorded price history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	rec, err := store.FindBySourceID(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s, %s)\n", rec.Address, rec.Region, rec.Status)
	fmt.Printf("first seen %s, last seen %s\n",
		rec.FirstSeenAt.Local().Format(time.DateOnly),
		rec.LastSeenAt.Local().Format(time.DateOnly))

	history, err := store.PriceHistory(cmd.Context(), rec.ID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no price observations recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OBSERVED\tPRICE")
	for _, obs := range history {
		fmt.Fprintf(w, "%s\t€ %d\n", obs.ObservedAt.Local().Format(time.DateTime), obs.Price)
	}
	return w.Flush()
}
