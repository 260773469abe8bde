// Package analysis turns the solver's per-combination vectors into
// the views shown alongside play: a 13x13 grid of hand-class action
// frequencies and a named breakdown of range composition.
package analysis

import (
	"fmt"

	"gtotrainer/internal/deck"
	"gtotrainer/internal/upi"
)

// GridSize is the rank dimension of the strategy grid.
const GridSize = 13

// Cell is one hand class: pairs on the diagonal, suited combinations
// above it, offsuit below. Actions is nil when every combination in
// the class is blocked by known cards.
type Cell struct {
	Label   string             `json:"label"`
	Combos  int                `json:"combos"`
	Actions map[string]float64 `json:"actions,omitempty"`
}

// Grid is the 13x13 strategy view, rows and columns running ace down
// to deuce.
type Grid struct {
	Cells [GridSize][GridSize]Cell `json:"cells"`
}

// BuildGrid aggregates a per-combination strategy into hand classes.
// Each cell's action frequency is the range-weighted mean across the
// class's live combinations; combinations containing a dead card (the
// board plus any known hole cards) are excluded from both the sums and
// the live count.
func BuildGrid(order upi.HandOrder, children []upi.Child, strategy [][]float64, weights []float64, dead []deck.Card) (*Grid, error) {
	if order.Len() != len(weights) {
		return nil, fmt.Errorf("analysis: %d weights for %d combos", len(weights), order.Len())
	}
	if len(strategy) != len(children) {
		return nil, fmt.Errorf("analysis: %d strategy rows for %d children", len(strategy), len(children))
	}
	for i, row := range strategy {
		if len(row) != order.Len() {
			return nil, fmt.Errorf("analysis: strategy row %d has %d columns, want %d", i, len(row), order.Len())
		}
	}

	deadSet := make(map[deck.Card]bool, len(dead))
	for _, c := range dead {
		deadSet[c] = true
	}

	labels := make([]string, len(children))
	for i, ch := range children {
		labels[i] = ch.Token.Label()
	}

	type cellAcc struct {
		live int
		sums []float64
	}
	var acc [GridSize][GridSize]cellAcc

	for i := 0; i < order.Len(); i++ {
		a, b, err := upi.ParseCombo(order.Name(i))
		if err != nil {
			return nil, fmt.Errorf("analysis: combo %d: %w", i, err)
		}
		if deadSet[a] || deadSet[b] {
			continue
		}

		row, col := cellIndex(a, b)
		cell := &acc[row][col]
		cell.live++
		if cell.sums == nil {
			cell.sums = make([]float64, len(children))
		}
		for j := range children {
			cell.sums[j] += weights[i] * strategy[j][i]
		}
	}

	grid := &Grid{}
	for row := 0; row < GridSize; row++ {
		for col := 0; col < GridSize; col++ {
			out := &grid.Cells[row][col]
			out.Label = cellLabel(row, col)
			out.Combos = acc[row][col].live
			if acc[row][col].live == 0 {
				continue
			}
			actions := make(map[string]float64, len(labels))
			for j, label := range labels {
				actions[label] = acc[row][col].sums[j] / float64(acc[row][col].live)
			}
			out.Actions = actions
		}
	}
	return grid, nil
}

// cellIndex maps two hole cards to grid coordinates, index 0 being the
// ace. Suited combinations sit above the diagonal (row = higher rank),
// offsuit below it.
func cellIndex(a, b deck.Card) (row, col int) {
	hi, lo := a, b
	if lo.Rank > hi.Rank {
		hi, lo = lo, hi
	}
	hiIdx := int(deck.Ace - hi.Rank)
	loIdx := int(deck.Ace - lo.Rank)

	switch {
	case hi.Rank == lo.Rank:
		return hiIdx, hiIdx
	case hi.Suit == lo.Suit:
		return hiIdx, loIdx
	default:
		return loIdx, hiIdx
	}
}

// cellLabel names a cell in standard notation: "AA", "AKs", "AKo".
func cellLabel(row, col int) string {
	rankAt := func(i int) string { return (deck.Ace - deck.Rank(i)).String() }
	switch {
	case row == col:
		return rankAt(row) + rankAt(row)
	case row < col:
		return rankAt(row) + rankAt(col) + "s"
	default:
		return rankAt(col) + rankAt(row) + "o"
	}
}
