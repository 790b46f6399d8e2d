// Package cmd implements the fundatrack command tree.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fundatrack/fundatrack/internal/config"
	"github.com/fundatrack/fundatrack/pkg/logging"
)

var (
	configFile string
	verbose    bool

	cfg *config.Config

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fundatrack",
	Short: "Dutch property listing tracker",
	Long: `Fundatrack extracts property listings from funda.nl, reconciles them
into a local store, and tracks price history and delisting over time.

Extraction prefers the structured search API and falls back to parsing
the public search pages when the API is unavailable.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the command tree with signal-based cancellation.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./.fundatrack.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setup loads configuration and configures the global logger before any
// subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logging.Configure(&logging.Config{Level: level, Format: cfg.LogFormat})

	cmd.SetContext(logging.WithLogger(cmd.Context(), logging.Default()))
	return nil
}
