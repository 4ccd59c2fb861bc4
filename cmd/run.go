// =============================================================================
// Freight PO Editor - Run Command
// =============================================================================
//
// This file defines the 'run' command, the automatic sweep.
//
// COMMAND USAGE:
//   editor-po run [flags]
//
// FLAGS:
//   --category : Sweep only one category (FREIGHT, TRANSFER, COST)
//   --report   : Also write an XLSX report of the run to this path
//   --progress : Show a progress bar instead of one line per item
//
// PROCESSING PIPELINE:
//   1. Load configuration (root command)
//   2. Sweep each category's intake folder in order
//   3. Stamp, relocate and record every item (internal/pipeline)
//   4. Print the summary and, if asked, write the report
//
// Ctrl+C stops the sweep between items; the item in flight is finished.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SideneiSilva/editor-po-barry/internal/config"
	"github.com/SideneiSilva/editor-po-barry/internal/pipeline"
	"github.com/SideneiSilva/editor-po-barry/internal/report"
	"github.com/SideneiSilva/editor-po-barry/internal/rules"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

var (
	runCategory string
	runReport   string
	runProgress bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stamp PO codes into every item waiting in the intake folders",
	Long: `The run command sweeps the intake folders in the order FREIGHT, TRANSFER,
COST. Each CT-e gets the PO code that its category, payer and region call
for, and is moved to the category's output folder together with its
companion files (PDF by default).

Errors in one item do not affect the others. A failed item stays in the
intake folder and its reason is written to the error ledger.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runCategory, "category", "", "Sweep only this category (FREIGHT, TRANSFER or COST)")
	runCmd.Flags().StringVar(&runReport, "report", "", "Write an XLSX report of the run to this path")
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "Show a progress bar")
}

func runSweep(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	categories := types.AllCategories
	if runCategory != "" {
		c, err := types.ParseCategory(runCategory)
		if err != nil {
			return err
		}
		categories = []types.Category{c}
	}

	fmt.Fprintln(out, headerStyle.Render("=== Freight PO Editor ==="))

	observer := func(o types.Outcome) { printOutcome(out, o) }
	if runProgress {
		total, err := pendingItems(categories)
		if err != nil {
			return err
		}
		if total > 0 {
			bar := newProgressBar(out, total, "Stamping PO codes...")
			observer = func(types.Outcome) {
				if err := bar.Add(1); err != nil {
					logger.Warn("Failed to update progress bar", zap.Error(err))
				}
			}
		}
	}

	p, err := newPipeline(pipeline.WithObserver(observer))
	if err != nil {
		return err
	}

	summary := p.Run(ctx, categories...)
	if len(summary.Outcomes) == 0 && !summary.Interrupted {
		fmt.Fprintln(out, "No items found in the intake folders.")
		return nil
	}
	printSummary(out, summary, p.Ledger())

	if runReport != "" {
		path := config.ExpandPath(runReport)
		if err := report.Write(path, summary.Outcomes, rules.Default().Entries()); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
	}

	return nil
}

// pendingItems counts the items waiting in the intake folders.
func pendingItems(categories []types.Category) (int, error) {
	total := 0
	for _, c := range categories {
		dir, err := appConfig.InputDir(c)
		if err != nil {
			return 0, err
		}
		n, err := pipeline.Pending(dir)
		if err != nil {
			return 0, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		total += n
	}
	return total, nil
}
