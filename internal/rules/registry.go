package rules

import (
	"fmt"
	"strings"

	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

// Registry maps a normalized tax ID (CNPJ digits) to a payer. It is built
// once and never modified.
type Registry struct {
	byTaxID map[string]types.Payer
}

// RegistryEntry is one tax ID to payer binding.
type RegistryEntry struct {
	TaxID string
	Payer types.Payer
}

// DefaultRegistry returns the two known payers.
func DefaultRegistry() *Registry {
	r, err := NewRegistry([]RegistryEntry{
		{TaxID: "33163908010561", Payer: types.PayerCacau},
		{TaxID: "33163908008583", Payer: types.PayerChocolate},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistry builds a registry, normalizing every tax ID.
func NewRegistry(entries []RegistryEntry) (*Registry, error) {
	r := &Registry{byTaxID: make(map[string]types.Payer, len(entries))}
	for _, e := range entries {
		id := NormalizeTaxID(e.TaxID)
		if id == "" {
			return nil, fmt.Errorf("registry entry for %s has no digits", e.Payer)
		}
		if prev, dup := r.byTaxID[id]; dup {
			return nil, fmt.Errorf("tax ID %s registered for both %s and %s", id, prev, e.Payer)
		}
		r.byTaxID[id] = e.Payer
	}
	return r, nil
}

// Identify resolves a tax ID in any punctuation ("33.163.908/0105-61") to
// its payer.
func (r *Registry) Identify(taxID string) (types.Payer, error) {
	id := NormalizeTaxID(taxID)
	payer, ok := r.byTaxID[id]
	if !ok {
		return "", &UnknownPayerError{TaxID: id}
	}
	return payer, nil
}

// Len returns the number of registered payers.
func (r *Registry) Len() int {
	return len(r.byTaxID)
}

// NormalizeTaxID strips every non-digit character.
func NormalizeTaxID(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
