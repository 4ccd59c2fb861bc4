package pipeline

import (
	"github.com/SideneiSilva/editor-po-barry/internal/cte"
	"github.com/SideneiSilva/editor-po-barry/internal/rules"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

// Resolver decides the PO to stamp into a document.
type Resolver interface {
	Resolve(attrs cte.Attributes) (types.POCode, error)
}

// RuleResolver applies the rule table for one intake category.
type RuleResolver struct {
	Category types.Category
	Table    *rules.Table
	Registry *rules.Registry
}

// Resolve identifies the payer and looks up (category, payer, region).
func (r RuleResolver) Resolve(attrs cte.Attributes) (types.POCode, error) {
	payer, err := r.Registry.Identify(attrs.TaxID)
	if err != nil {
		return "", err
	}
	return r.Table.Resolve(r.Category, payer, attrs.Region)
}

// FixedResolver stamps an operator-chosen code into documents of a single
// region.
type FixedResolver struct {
	Code   types.POCode
	Region string
}

// Resolve returns the chosen code, or a *RegionMismatchError.
func (r FixedResolver) Resolve(attrs cte.Attributes) (types.POCode, error) {
	want := rules.NormalizeRegion(r.Region)
	if got := rules.NormalizeRegion(attrs.Region); got != want {
		return "", &RegionMismatchError{Want: want, Got: got}
	}
	return r.Code, nil
}
