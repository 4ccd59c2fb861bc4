package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/SideneiSilva/editor-po-barry/internal/rules"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

var rulesCategory string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the PO rule table",
	Annotations: map[string]string{
		skipConfig: "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var category types.Category
		if rulesCategory != "" {
			c, err := types.ParseCategory(rulesCategory)
			if err != nil {
				return err
			}
			category = c
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(mutedStyle).
			Headers("CATEGORY", "PAYER", "REGION", "PO", "LABEL")

		for _, r := range rules.Default().Entries() {
			if category != "" && r.Category != category {
				continue
			}
			t.Row(string(r.Category), string(r.Payer), r.Region, r.Code.String(), r.Label)
		}

		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.Flags().StringVar(&rulesCategory, "category", "", "Show only this category")
}
