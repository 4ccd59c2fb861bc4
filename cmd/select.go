// =============================================================================
// Freight PO Editor - Select Command
// =============================================================================
//
// This file defines the 'select' command, the operator-selection mode.
//
// COMMAND USAGE:
//   editor-po select --input DIR --output DIR [--choice N]
//
// FLOW:
//   1. Survey the input folder: dominant region and payer
//   2. List the PO codes that apply to that payer and region
//   3. Let the operator choose one (or take --choice N)
//   4. Stamp the chosen code into every document of the dominant region
//
// Documents of another region fail with a region mismatch and stay in the
// input folder.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SideneiSilva/editor-po-barry/internal/config"
	"github.com/SideneiSilva/editor-po-barry/internal/picker"
	"github.com/SideneiSilva/editor-po-barry/internal/pipeline"
	"github.com/SideneiSilva/editor-po-barry/internal/rules"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
	"github.com/SideneiSilva/editor-po-barry/pkg/utils"
)

var (
	selectInput  string
	selectOutput string
	selectChoice int
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Choose a PO code by hand and stamp it into a folder of CT-e",
	Long: `The select command reads every document in --input, finds the most
frequent region and payer, and offers the PO codes that apply to them.
The chosen code is written into every document of that region and the
results are moved to --output.

Use --choice N to pick the N-th candidate without the interactive chooser.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelect(cmd)
	},
}

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().StringVar(&selectInput, "input", "", "Folder with the documents to stamp")
	selectCmd.Flags().StringVar(&selectOutput, "output", "", "Folder the stamped documents are moved to")
	selectCmd.Flags().IntVar(&selectChoice, "choice", 0, "Pick the N-th candidate code (1-based) without prompting")
	_ = selectCmd.MarkFlagRequired("input")
	_ = selectCmd.MarkFlagRequired("output")
}

func runSelect(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	in := config.ExpandPath(selectInput)
	dest := config.ExpandPath(selectOutput)

	if utils.FileExists(dest) {
		same, err := utils.SameDir(in, dest)
		if err != nil {
			return fmt.Errorf("failed to compare folders: %w", err)
		}
		if same {
			return fmt.Errorf("%s: %w", dest, pipeline.ErrSameFolder)
		}
	}

	p, err := newPipeline(pipeline.WithObserver(func(o types.Outcome) { printOutcome(out, o) }))
	if err != nil {
		return err
	}

	survey, err := p.Survey(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to survey %s: %w", in, err)
	}

	fmt.Fprintln(out, headerStyle.Render("=== Freight PO Editor - Selection ==="))
	fmt.Fprintf(out, "Documents:  %d", survey.Documents)
	if survey.Unreadable > 0 {
		fmt.Fprintf(out, " (%d unreadable)", survey.Unreadable)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Regions:    %s\n", survey.Regions)
	fmt.Fprintf(out, "Payer:      %s (%s)\n", survey.Payer, survey.TaxID)

	candidates := rules.Default().Candidates(survey.Payer, survey.Region)
	if len(candidates) == 0 {
		return fmt.Errorf("no PO codes for %s / %s", survey.Payer, survey.Region)
	}

	var choice rules.Rule
	if selectChoice > 0 {
		choice, err = picker.Pick(candidates, selectChoice)
	} else {
		title := fmt.Sprintf("%s / %s", survey.Payer, survey.Region)
		choice, err = picker.Run(title, candidates, cmd.InOrStdin(), out)
	}
	if errors.Is(err, picker.ErrCancelled) {
		fmt.Fprintln(out, "Nothing was changed.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Applying %s (%s) to %s documents\n", choice.Code, choice.Label, survey.Region)

	summary := pipeline.Summary{RunID: uuid.NewString(), Started: time.Now()}
	outcomes, err := p.RunSelected(ctx, in, dest, pipeline.FixedResolver{Code: choice.Code, Region: survey.Region})
	if err != nil {
		return err
	}
	summary.Outcomes = outcomes
	summary.Finished = time.Now()
	summary.Interrupted = ctx.Err() != nil

	printSummary(out, summary, p.Ledger())
	return nil
}
