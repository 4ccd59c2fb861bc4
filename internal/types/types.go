// =============================================================================
// Freight PO Editor - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - rules     (Category, Payer, POCode)
//   - cte       (POCode, NotFound)
//   - archive   (Tally)
//   - ledger    (Outcome)
//   - pipeline  (Outcome, Stage, Kind)
//   - report    (Outcome)
//
// =============================================================================

package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// CATEGORY
// =============================================================================

// Category is the intake classification of an item. It is decided only by
// the folder the item was dropped in, never by the document content.
type Category string

const (
	CategoryFreight  Category = "FREIGHT"
	CategoryTransfer Category = "TRANSFER"
	CategoryCost     Category = "COST"

	// CategorySelected labels outcomes of the operator-selection mode. It is
	// not a rule category and has no entries in the rule table.
	CategorySelected Category = "SELECTED"
)

// AllCategories lists the rule categories in sweep order.
var AllCategories = []Category{CategoryFreight, CategoryTransfer, CategoryCost}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllCategories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q (want one of FREIGHT, TRANSFER, COST)", s)
}

// =============================================================================
// PAYER
// =============================================================================

// Payer is the business entity responsible for the shipment.
type Payer string

const (
	PayerCacau     Payer = "CACAU"
	PayerChocolate Payer = "CHOCOLATE"
)

// =============================================================================
// PO CODE
// =============================================================================

// NotFound is reported as the previous PO of a document that carried none.
const NotFound = "NOT_FOUND"

// POPattern matches a PO token anywhere in raw content: the 4504 prefix with
// at least six more digits, a slash, and a five digit item suffix.
var POPattern = regexp.MustCompile(`4504\d{6,}/\d{5}`)

var poExact = regexp.MustCompile(`^4504\d{6,}/\d{5}$`)

// POCode is a purchase-order reference such as 4504819456/00010.
type POCode string

// Valid reports whether the code matches the PO lexical pattern exactly.
func (c POCode) Valid() bool {
	return poExact.MatchString(string(c))
}

func (c POCode) String() string { return string(c) }

// =============================================================================
// TALLY
// =============================================================================

// Tally is a multiset of PO codes that remembers first-seen order, so that
// archive summaries list codes in the order the documents produced them.
// The zero value is ready to use.
type Tally struct {
	order  []string
	counts map[string]int
}

// Add counts one occurrence of code.
func (t *Tally) Add(code string) {
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	if _, seen := t.counts[code]; !seen {
		t.order = append(t.order, code)
	}
	t.counts[code]++
}

// Count returns how many times code was added.
func (t Tally) Count(code string) int {
	return t.counts[code]
}

// Total returns the number of occurrences across all codes.
func (t Tally) Total() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Keys returns the distinct codes in first-seen order.
func (t Tally) Keys() []string {
	return append([]string(nil), t.order...)
}

// String renders the tally as "2x A, 1x B".
func (t Tally) String() string {
	parts := make([]string, 0, len(t.order))
	for _, code := range t.order {
		parts = append(parts, fmt.Sprintf("%dx %s", t.counts[code], code))
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// OUTCOME
// =============================================================================

// Kind tells a loose document apart from an archive.
type Kind string

const (
	KindDocument Kind = "document"
	KindArchive  Kind = "archive"
)

// Stage is a step of the per-item state machine.
//
//	Discovered -> Extracting -> Resolving -> Mutating -> Relocating -> Completed
//	                \____________\____________\____________\-> Failed
type Stage string

const (
	StageDiscovered Stage = "discovered"
	StageExtracting Stage = "extracting"
	StageResolving  Stage = "resolving"
	StageMutating   Stage = "mutating"
	StageRelocating Stage = "relocating"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Outcome is the immutable result of processing one input item.
type Outcome struct {
	// Category is the folder category the item was taken from.
	Category Category

	// Item is the base name of the input file.
	Item string

	// Path is the full input path of the item.
	Path string

	// Kind is document or archive.
	Kind Kind

	// Success is true when the item was fully relocated with its mutation.
	Success bool

	// Stage is StageCompleted on success, otherwise the stage that failed.
	Stage Stage

	// Err is the failure reason. Nil on success.
	Err error

	// CTNumber is the document sequence number, for labeling only.
	CTNumber string

	// PreviousPO and NewPO are set for documents.
	PreviousPO string
	NewPO      POCode

	// Documents, Previous and New are set for archives.
	Documents int
	Previous  Tally
	New       Tally

	// OutputPath is where the processed item ended up.
	OutputPath string

	// Duration is the wall time spent on the item.
	Duration time.Duration
}

// Message returns the failure reason, or an empty string on success.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
