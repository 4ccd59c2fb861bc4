// =============================================================================
// Freight PO Editor - XLSX Run Report
// =============================================================================
//
// This module writes the outcomes of a run to a spreadsheet for the
// operators who reconcile POs against the ERP.
//
// WORKBOOK STRUCTURE:
//
//   Sheet "Outcomes" (one row per item):
//   | Category | Item | Kind | CT Number | Status | Stage | Previous PO | New PO | Documents | Output | Error | Duration (ms) |
//
//   Sheet "Totals" (one row per category):
//   | Category | Succeeded | Failed | Documents |
//
//   Sheet "Rules" (the rule table in force):
//   | Category | Payer | Region | PO | Label |
//
//   For archives, Previous PO and New PO hold the tallies
//   ("2x 4504820481/00010, 1x NOT_FOUND").
//
// =============================================================================

package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/SideneiSilva/editor-po-barry/internal/rules"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

// Sheet names.
const (
	SheetOutcomes = "Outcomes"
	SheetTotals   = "Totals"
	SheetRules    = "Rules"
)

const (
	statusOK     = "OK"
	statusFailed = "FAILED"
)

var (
	outcomeHeader = []interface{}{
		"Category", "Item", "Kind", "CT Number", "Status", "Stage",
		"Previous PO", "New PO", "Documents", "Output", "Error", "Duration (ms)",
	}
	totalsHeader = []interface{}{"Category", "Succeeded", "Failed", "Documents"}
	rulesHeader  = []interface{}{"Category", "Payer", "Region", "PO", "Label"}
)

// =============================================================================
// WRITER
// =============================================================================

// Write saves a workbook describing outcomes and the rule table at path.
//
// PARAMETERS:
//   - path: The .xlsx file to create or overwrite.
//   - outcomes: The outcomes of the run, in processing order.
//   - ruleList: The rule table entries, usually rules.Table.Entries().
func Write(path string, outcomes []types.Outcome, ruleList []rules.Rule) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetOutcomes); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetTotals, SheetRules} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	if err := writeSheet(f, SheetOutcomes, outcomeHeader, outcomeRows(outcomes), header); err != nil {
		return err
	}
	if err := writeSheet(f, SheetTotals, totalsHeader, totalRows(outcomes), header); err != nil {
		return err
	}
	if err := writeSheet(f, SheetRules, rulesHeader, ruleRows(ruleList), header); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, headerStyle int) error {
	all := append([][]interface{}{header}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 20); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}
	return nil
}

// =============================================================================
// ROW BUILDERS
// =============================================================================

func outcomeRows(outcomes []types.Outcome) [][]interface{} {
	rows := make([][]interface{}, 0, len(outcomes))
	for _, o := range outcomes {
		status := statusOK
		if !o.Success {
			status = statusFailed
		}

		previous, next := o.PreviousPO, string(o.NewPO)
		var documents interface{} = ""
		if o.Kind == types.KindArchive {
			previous, next = o.Previous.String(), o.New.String()
			documents = o.Documents
		}

		rows = append(rows, []interface{}{
			string(o.Category), o.Item, string(o.Kind), o.CTNumber, status, string(o.Stage),
			previous, next, documents, o.OutputPath, o.Message(), o.Duration.Milliseconds(),
		})
	}
	return rows
}

func totalRows(outcomes []types.Outcome) [][]interface{} {
	type totals struct{ ok, failed, documents int }
	var order []types.Category
	byCategory := make(map[types.Category]*totals)

	for _, o := range outcomes {
		t, seen := byCategory[o.Category]
		if !seen {
			t = &totals{}
			byCategory[o.Category] = t
			order = append(order, o.Category)
		}
		if !o.Success {
			t.failed++
			continue
		}
		t.ok++
		if o.Kind == types.KindArchive {
			t.documents += o.Documents
		} else {
			t.documents++
		}
	}

	rows := make([][]interface{}, 0, len(order))
	for _, c := range order {
		t := byCategory[c]
		rows = append(rows, []interface{}{string(c), t.ok, t.failed, t.documents})
	}
	return rows
}

func ruleRows(ruleList []rules.Rule) [][]interface{} {
	rows := make([][]interface{}, 0, len(ruleList))
	for _, r := range ruleList {
		rows = append(rows, []interface{}{string(r.Category), string(r.Payer), r.Region, string(r.Code), r.Label})
	}
	return rows
}
