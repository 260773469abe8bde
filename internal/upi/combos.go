package upi

import (
	"fmt"

	"gtotrainer/internal/deck"
)

// ComboCount is the number of two-card starting combinations.
const ComboCount = 1326

// HandOrder is the solver's canonical ordering of the 1,326 starting
// combinations. Every range and strategy vector the solver returns is
// indexed by this order, so it is fetched once at startup and shared
// with everything that interprets those vectors.
type HandOrder struct {
	names []string
	index map[string]int
}

// NewHandOrder validates and indexes a combination ordering.
func NewHandOrder(names []string) (HandOrder, error) {
	if len(names) != ComboCount {
		return HandOrder{}, fmt.Errorf("hand order has %d combos, want %d", len(names), ComboCount)
	}
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	if len(index) != ComboCount {
		return HandOrder{}, fmt.Errorf("hand order contains duplicate combos")
	}
	return HandOrder{names: names, index: index}, nil
}

// CanonicalHandOrder builds the conventional solver ordering: cards
// numbered 2c 2d 2h 2s 3c ... As, with combination (i, j), i > j,
// named higher-index card first ("2d2c", "2h2c", "2h2d", ...). Live
// code always takes the order the solver reports; this exists for
// offline tooling and fixtures.
func CanonicalHandOrder() HandOrder {
	var cards [52]deck.Card
	for i := range cards {
		cards[i] = deck.NewCard(deck.Rank(i/4), deck.Suit(i%4))
	}
	names := make([]string, 0, ComboCount)
	for i := 1; i < len(cards); i++ {
		for j := 0; j < i; j++ {
			names = append(names, cards[i].String()+cards[j].String())
		}
	}
	order, err := NewHandOrder(names)
	if err != nil {
		panic(err)
	}
	return order
}

// Len returns the number of combinations, zero for an unpopulated
// order.
func (o HandOrder) Len() int {
	return len(o.names)
}

// Name returns the combination name at index i.
func (o HandOrder) Name(i int) string {
	return o.names[i]
}

// Index finds the vector index of a specific pair of hole cards,
// trying both card orderings.
func (o HandOrder) Index(a, b deck.Card) (int, bool) {
	if i, ok := o.index[a.String()+b.String()]; ok {
		return i, true
	}
	i, ok := o.index[b.String()+a.String()]
	return i, ok
}

// ParseCombo splits a combination name such as "AhKs" into its cards.
func ParseCombo(name string) (deck.Card, deck.Card, error) {
	cards, err := deck.ParseCards(name)
	if err != nil {
		return deck.Card{}, deck.Card{}, err
	}
	if len(cards) != 2 {
		return deck.Card{}, deck.Card{}, fmt.Errorf("combo %q has %d cards, want 2", name, len(cards))
	}
	return cards[0], cards[1], nil
}
