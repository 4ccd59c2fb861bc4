package rules

import (
	"errors"
	"fmt"

	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

var (
	ErrUnknownPayer = errors.New("unknown payer")
	ErrMissingRule  = errors.New("missing PO rule")
)

// UnknownPayerError indicates a tax ID that is not in the payer registry.
type UnknownPayerError struct {
	TaxID string
}

func (e *UnknownPayerError) Error() string {
	if e.TaxID == "" {
		return "unknown payer: empty tax ID"
	}
	return fmt.Sprintf("unknown payer tax ID %s", e.TaxID)
}

func (e *UnknownPayerError) Is(target error) bool {
	return target == ErrUnknownPayer
}

// MissingRuleError indicates a (category, payer, region) triple with no PO.
type MissingRuleError struct {
	Category types.Category
	Payer    types.Payer
	Region   string
}

func (e *MissingRuleError) Error() string {
	return fmt.Sprintf("no PO rule for category=%s payer=%s region=%s", e.Category, e.Payer, e.Region)
}

func (e *MissingRuleError) Is(target error) bool {
	return target == ErrMissingRule
}
