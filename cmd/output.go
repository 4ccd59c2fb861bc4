package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/SideneiSilva/editor-po-barry/internal/ledger"
	"github.com/SideneiSilva/editor-po-barry/internal/pipeline"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printOutcome writes one line per finished item.
func printOutcome(w io.Writer, o types.Outcome) {
	if !o.Success {
		fmt.Fprintf(w, "  %s %s [%s]: %s\n", failStyle.Render("✗"), o.Item, o.Stage, o.Message())
		return
	}
	if o.Kind == types.KindArchive {
		fmt.Fprintf(w, "  %s %s -> %s (%d documents)\n", okStyle.Render("✓"), o.Item, o.New, o.Documents)
		return
	}
	fmt.Fprintf(w, "  %s %s -> %s\n", okStyle.Render("✓"), o.Item, o.NewPO)
}

// printSummary writes the end-of-run block.
func printSummary(w io.Writer, s pipeline.Summary, l *ledger.Ledger) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("=== Processing Complete ==="))

	for _, c := range s.ByCategory() {
		fmt.Fprintf(w, "%-10s %s  %s\n", c.Category,
			okStyle.Render(fmt.Sprintf("%d ok", c.Succeeded)),
			failStyle.Render(fmt.Sprintf("%d failed", c.Failed)))
	}

	fmt.Fprintf(w, "Total items:     %d\n", len(s.Outcomes))
	fmt.Fprintf(w, "Documents:       %d\n", s.Documents())
	fmt.Fprintf(w, "Successful:      %d\n", s.Succeeded())
	fmt.Fprintf(w, "Errors:          %d\n", s.Failed())
	if !s.Started.IsZero() {
		fmt.Fprintf(w, "Time elapsed:    %s\n", s.Finished.Sub(s.Started).Round(time.Millisecond))
	}

	if s.Interrupted {
		fmt.Fprintln(w, failStyle.Render("Interrupted: unvisited items were left in place."))
	}
	if s.Failed() > 0 {
		fmt.Fprintln(w, mutedStyle.Render("Failures were recorded in "+filepath.Base(l.ErrorPath())))
	}
	if s.Succeeded() > 0 {
		fmt.Fprintln(w, mutedStyle.Render("PO changes were recorded in "+filepath.Base(l.SuccessPath())))
	}
}

// newProgressBar returns a bar that advances once per finished item.
func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
