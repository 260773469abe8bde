package analysis

import "fmt"

// CategoryShare is one named category's share of a range.
type CategoryShare struct {
	Name string `json:"name"`

	// Combos is the weighted combination count in the category;
	// Percent is its share of the live range.
	Combos  float64 `json:"combos"`
	Percent float64 `json:"percent"`
}

// Composition summarizes a range by the solver's hand categories, in
// the order the solver names them. Categories with no weight are
// omitted.
type Composition struct {
	Categories []CategoryShare `json:"categories"`
}

// BuildComposition buckets range weights by each combination's
// category index on the current board. Weights of zero contribute
// nothing, so board-blocked combinations fall out naturally.
func BuildComposition(names []string, indices []int, weights []float64) (*Composition, error) {
	if len(indices) != len(weights) {
		return nil, fmt.Errorf("analysis: %d category indices for %d weights", len(indices), len(weights))
	}

	totals := make([]float64, len(names))
	sum := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		idx := indices[i]
		if idx < 0 || idx >= len(names) {
			return nil, fmt.Errorf("analysis: category index %d outside %d names", idx, len(names))
		}
		totals[idx] += w
		sum += w
	}

	comp := &Composition{}
	for i, name := range names {
		if totals[i] <= 0 {
			continue
		}
		pct := 0.0
		if sum > 0 {
			pct = totals[i] / sum * 100
		}
		comp.Categories = append(comp.Categories, CategoryShare{
			Name:    name,
			Combos:  totals[i],
			Percent: pct,
		})
	}
	return comp, nil
}
