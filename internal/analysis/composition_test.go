package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildComposition(t *testing.T) {
	t.Parallel()

	names := []string{"High Card", "Pair", "Two Pair", "Set"}
	indices := []int{1, 1, 0, 3, 2, 1}
	weights := []float64{1, 0.5, 1, 0, 0.5, 0.25}

	comp, err := BuildComposition(names, indices, weights)
	require.NoError(t, err)

	// "Set" carries zero weight and is dropped; the rest keep the
	// solver's naming order.
	require.Len(t, comp.Categories, 3)
	require.Equal(t, "High Card", comp.Categories[0].Name)
	require.Equal(t, "Pair", comp.Categories[1].Name)
	require.Equal(t, "Two Pair", comp.Categories[2].Name)

	require.InDelta(t, 1.0, comp.Categories[0].Combos, 1e-9)
	require.InDelta(t, 1.75, comp.Categories[1].Combos, 1e-9)
	require.InDelta(t, 0.5, comp.Categories[2].Combos, 1e-9)

	require.InDelta(t, 100.0/3.25, comp.Categories[0].Percent, 1e-9)
	require.InDelta(t, 175.0/3.25, comp.Categories[1].Percent, 1e-9)
	require.InDelta(t, 50.0/3.25, comp.Categories[2].Percent, 1e-9)
}

func TestBuildCompositionEmptyRange(t *testing.T) {
	t.Parallel()

	comp, err := BuildComposition([]string{"Pair"}, []int{0, 0}, []float64{0, 0})
	require.NoError(t, err)
	require.Empty(t, comp.Categories)
}

func TestBuildCompositionErrors(t *testing.T) {
	t.Parallel()

	_, err := BuildComposition([]string{"Pair"}, []int{0, 0}, []float64{1})
	require.Error(t, err, "index/weight length mismatch")

	_, err = BuildComposition([]string{"Pair"}, []int{5}, []float64{1})
	require.Error(t, err, "category index out of range")

	_, err = BuildComposition([]string{"Pair"}, []int{-1}, []float64{1})
	require.Error(t, err, "negative category index")
}
