package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SideneiSilva/editor-po-barry/internal/pipeline"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
	"github.com/SideneiSilva/editor-po-barry/internal/watch"
)

var watchSettle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sweep the intake folders again whenever new items arrive",
	Long: `The watch command sweeps once, then keeps watching the intake folders and
sweeps again after new .xml or .zip files have stopped changing for the
settle duration. Press Ctrl+C to stop.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		p, err := newPipeline(pipeline.WithObserver(func(o types.Outcome) { printOutcome(out, o) }))
		if err != nil {
			return err
		}

		var dirs []string
		for _, c := range types.AllCategories {
			dir, err := appConfig.InputDir(c)
			if err != nil {
				return err
			}
			dirs = append(dirs, dir)
		}

		w := watch.New(dirs, pipeline.ItemExtensions, watchSettle, func(ctx context.Context) {
			if s := p.Run(ctx); len(s.Outcomes) > 0 {
				printSummary(out, s, p.Ledger())
			}
		}, logger)

		fmt.Fprintln(out, headerStyle.Render("=== Freight PO Editor - Watching ==="))
		fmt.Fprintln(out, mutedStyle.Render("Press Ctrl+C to stop."))
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "Quiet time before a sweep starts")
}
