package pipeline

import (
	"time"

	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

// Summary collects the outcomes of a full sweep.
type Summary struct {
	// RunID identifies the sweep in operational logs.
	RunID string

	Started  time.Time
	Finished time.Time

	// Outcomes are in processing order.
	Outcomes []types.Outcome

	// Interrupted is true when the context was cancelled before every
	// category was swept.
	Interrupted bool
}

// CategoryCount holds the totals of one category.
type CategoryCount struct {
	Category  types.Category
	Succeeded int
	Failed    int
}

// Succeeded returns the number of successful items.
func (s Summary) Succeeded() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed items.
func (s Summary) Failed() int {
	return len(s.Outcomes) - s.Succeeded()
}

// Documents returns the number of documents stamped, counting archive
// members individually.
func (s Summary) Documents() int {
	n := 0
	for _, o := range s.Outcomes {
		switch {
		case !o.Success:
		case o.Kind == types.KindArchive:
			n += o.New.Total()
		default:
			n++
		}
	}
	return n
}

// ByCategory returns the totals per category in sweep order. Categories
// without outcomes are included with zero counts.
func (s Summary) ByCategory() []CategoryCount {
	counts := make([]CategoryCount, len(types.AllCategories))
	index := make(map[types.Category]int, len(types.AllCategories))
	for i, c := range types.AllCategories {
		counts[i].Category = c
		index[c] = i
	}
	for _, o := range s.Outcomes {
		i, ok := index[o.Category]
		if !ok {
			continue
		}
		if o.Success {
			counts[i].Succeeded++
		} else {
			counts[i].Failed++
		}
	}
	return counts
}
