package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fundatrack/fundatrack/internal/config"
	"github.com/fundatrack/fundatrack/internal/runner"
	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/logging"
	"github.com/fundatrack/fundatrack/pkg/reconcile"
	"github.com/fundatrack/fundatrack/pkg/sources"
)

var (
	scrapeRegion     string
	scrapeKind       string
	scrapeMinPrice   int
	scrapeMaxPrice   int
	scrapeMaxResults int
	scrapePlan       string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one extract-and-reconcile pass",
	Long: `Scrape runs a full extraction over one scope (or every scope in a
plan file) and reconciles the batch into the store: new listings are
created, known listings are updated, price changes are recorded, and
listings missing from the batch are delisted.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeRegion, "region", "", "region to scrape, e.g. amsterdam")
	scrapeCmd.Flags().StringVar(&scrapeKind, "kind", "buy", "listing kind: buy or rent")
	scrapeCmd.Flags().IntVar(&scrapeMinPrice, "min-price", 0, "minimum price filter")
	scrapeCmd.Flags().IntVar(&scrapeMaxPrice, "max-price", 0, "maximum price filter")
	scrapeCmd.Flags().IntVar(&scrapeMaxResults, "max-results", 0, "stop after this many listings (0 = no limit)")
	scrapeCmd.Flags().StringVar(&scrapePlan, "plan", "", "plan file naming multiple scopes")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	filters, err := scrapeFilters()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	primary := sources.NewAPISource(cfg.APIConfig())
	secondary := sources.NewHTMLSource(cfg.HTMLConfig())
	composite := sources.NewComposite(primary, secondary, cfg.RetryPolicy(), cfg.FallbackEnabled)

	r := runner.New(composite, store, reconcile.LogSink{Log: logging.Default()})

	runs, errs := r.RunPlan(ctx, filters)

	var failed int
	for i, run := range runs {
		if errs[i] != nil && run == nil {
			failed++
			fmt.Printf("%s: %v\n", filters[i].Scope(), errs[i])
			continue
		}
		printRun(run)
		if errs[i] != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scopes failed", failed, len(filters))
	}
	return nil
}

// scrapeFilters resolves the flags into one or more scope filter sets.
func scrapeFilters() ([]listing.Filters, error) {
	if scrapePlan != "" {
		if scrapeRegion != "" {
			return nil, errors.NewConfigError("scrape", "--plan and --region are mutually exclusive", nil)
		}
		plan, err := config.LoadPlan(scrapePlan)
		if err != nil {
			return nil, err
		}
		filters := make([]listing.Filters, 0, len(plan.Scopes))
		for _, s := range plan.Scopes {
			f, err := s.Filters()
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
		return filters, nil
	}

	if scrapeRegion == "" {
		return nil, errors.NewConfigError("scrape", "either --region or --plan is required", nil)
	}
	kind, err := listing.ParseKind(scrapeKind)
	if err != nil {
		return nil, errors.NewConfigError("scrape", "invalid --kind", err)
	}
	return []listing.Filters{{
		Region:     listing.NormalizeRegion(scrapeRegion),
		Kind:       kind,
		MinPrice:   scrapeMinPrice,
		MaxPrice:   scrapeMaxPrice,
		MaxResults: scrapeMaxResults,
	}}, nil
}

// printRun writes one finalized run summary to stdout.
func printRun(run *reconcile.RunMetadata) {
	report := reconcile.AssessRun(run)
	fmt.Printf("%s: %d found, %d new, %d updated, %d delisted, %d errors (source: %s, health: %s, took %s)\n",
		run.Scope, run.ListingsFound, run.ListingsNew, run.ListingsUpdated,
		run.DelistedCount, run.Errors, run.SourceUsed, report.Level,
		run.Duration().Round(time.Millisecond))
}
