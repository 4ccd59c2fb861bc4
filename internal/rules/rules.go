// =============================================================================
// Freight PO Editor - PO Rule Table
// =============================================================================
//
// The rule table decides the PO stamped into every document:
//
//   PO = table[category][payer][region]
//
// where category comes from the intake folder, payer from the sender's CNPJ
// and region from the UFEnv element. The table is fixed at build time;
// changing business rules means shipping a new table, not editing a config
// file.
//
// DEFAULT TABLE:
//
//   | Category | Payer     | SP               | MG               |
//   |----------|-----------|------------------|------------------|
//   | FREIGHT  | CACAU     | 4504819456/00010 | 4504819472/00010 |
//   | FREIGHT  | CHOCOLATE | 4504820478/00010 | 4504820480/00010 |
//   | TRANSFER | CACAU     | 4504819466/00010 | 4504819478/00010 |
//   | TRANSFER | CHOCOLATE | 4504820481/00010 | 4504820481/00010 |
//   | COST     | CACAU     | 4504819456/00020 | 4504819478/00020 |
//   | COST     | CHOCOLATE | 4504820597/00010 | 4504820600/00010 |
//
// =============================================================================

package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

// =============================================================================
// RULE STRUCTURES
// =============================================================================

// Rule is one entry of the table.
type Rule struct {
	Category types.Category
	Payer    types.Payer
	Region   string
	Code     types.POCode

	// Label is the business description shown to operators choosing a PO
	// by hand, e.g. "FRETE DE VENDAS".
	Label string
}

type ruleKey struct {
	category types.Category
	payer    types.Payer
	region   string
}

// Table is an immutable rule table. Build it with NewTable or Default and
// pass it to every component that resolves POs.
type Table struct {
	byKey   map[ruleKey]Rule
	entries []Rule
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

const (
	labelFreight       = "FRETE DE VENDAS"
	labelTransferCacau = "Transferencia Cacau - Omegax CROSS/ARMAZ."
	labelTransferPA    = "Transferencia PA - Omega X Cross/Armazenagem"
	labelCost          = "FRETE CUSTO EXT - HOSP PERN"
)

// Default returns the production rule table.
func Default() *Table {
	t, err := NewTable([]Rule{
		{types.CategoryFreight, types.PayerCacau, "SP", "4504819456/00010", labelFreight},
		{types.CategoryFreight, types.PayerCacau, "MG", "4504819472/00010", labelFreight},
		{types.CategoryFreight, types.PayerChocolate, "SP", "4504820478/00010", labelFreight},
		{types.CategoryFreight, types.PayerChocolate, "MG", "4504820480/00010", labelFreight},

		{types.CategoryTransfer, types.PayerCacau, "SP", "4504819466/00010", labelTransferCacau},
		{types.CategoryTransfer, types.PayerCacau, "MG", "4504819478/00010", labelTransferCacau},
		{types.CategoryTransfer, types.PayerChocolate, "SP", "4504820481/00010", labelTransferPA},
		{types.CategoryTransfer, types.PayerChocolate, "MG", "4504820481/00010", labelTransferPA},

		{types.CategoryCost, types.PayerCacau, "SP", "4504819456/00020", labelCost},
		{types.CategoryCost, types.PayerCacau, "MG", "4504819478/00020", labelCost},
		{types.CategoryCost, types.PayerChocolate, "SP", "4504820597/00010", labelCost},
		{types.CategoryCost, types.PayerChocolate, "MG", "4504820600/00010", labelCost},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable validates and indexes a list of rules.
//
// RETURNS:
//   - The table.
//   - An error if a code does not match the PO pattern, a field is empty,
//     or the same triple appears twice.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{byKey: make(map[ruleKey]Rule, len(rules))}

	for _, r := range rules {
		r.Region = NormalizeRegion(r.Region)
		if r.Category == "" || r.Payer == "" || r.Region == "" {
			return nil, fmt.Errorf("rule %+v has an empty key field", r)
		}
		if !r.Code.Valid() {
			return nil, fmt.Errorf("rule %s/%s/%s: %q is not a valid PO code", r.Category, r.Payer, r.Region, r.Code)
		}
		key := ruleKey{r.Category, r.Payer, r.Region}
		if _, dup := t.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate rule for %s/%s/%s", r.Category, r.Payer, r.Region)
		}
		t.byKey[key] = r
		t.entries = append(t.entries, r)
	}

	sort.SliceStable(t.entries, func(i, j int) bool {
		a, b := t.entries[i], t.entries[j]
		if a.Category != b.Category {
			return categoryRank(a.Category) < categoryRank(b.Category)
		}
		if a.Payer != b.Payer {
			return a.Payer < b.Payer
		}
		return a.Region < b.Region
	})

	return t, nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Resolve returns the PO for a triple or a *MissingRuleError.
func (t *Table) Resolve(category types.Category, payer types.Payer, region string) (types.POCode, error) {
	region = NormalizeRegion(region)
	r, ok := t.byKey[ruleKey{category, payer, region}]
	if !ok {
		return "", &MissingRuleError{Category: category, Payer: payer, Region: region}
	}
	return r.Code, nil
}

// Entries returns every rule ordered by category, payer and region.
func (t *Table) Entries() []Rule {
	return append([]Rule(nil), t.entries...)
}

// Candidates returns the rules that apply to a payer in a region, one per
// category, in category order. Codes shared by several categories are
// listed once.
func (t *Table) Candidates(payer types.Payer, region string) []Rule {
	region = NormalizeRegion(region)
	var out []Rule
	seen := make(map[types.POCode]bool)
	for _, r := range t.entries {
		if r.Payer != payer || r.Region != region || seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		out = append(out, r)
	}
	return out
}

// NormalizeRegion trims and upper-cases a region code.
func NormalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

func categoryRank(c types.Category) int {
	for i, known := range types.AllCategories {
		if c == known {
			return i
		}
	}
	return len(types.AllCategories)
}
