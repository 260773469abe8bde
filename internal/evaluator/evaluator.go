// Package evaluator scores 5-7 card sets to the best 5-card Hold'em
// hand. Evaluation enumerates every 5-card subset (21 for a full 7-card
// hand) and keeps the strongest under HandValue ordering, so kicker
// resolution falls out of the per-subset classification.
package evaluator

import (
	"errors"
	"slices"

	"gtotrainer/internal/deck"
)

// ErrTooFewCards is returned when fewer than 5 cards are supplied.
var ErrTooFewCards = errors.New("evaluator: need at least 5 cards")

// Evaluate returns the strongest 5-card hand value within cards.
func Evaluate(cards []deck.Card) (HandValue, error) {
	if len(cards) < 5 {
		return HandValue{}, ErrTooFewCards
	}

	n := len(cards)
	var best HandValue
	haveBest := false
	var five [5]deck.Card

	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						five[0], five[1], five[2], five[3], five[4] =
							cards[a], cards[b], cards[c], cards[d], cards[e]
						v := evaluateFive(five)
						if !haveBest || v.Compare(best) > 0 {
							best = v
							haveBest = true
						}
					}
				}
			}
		}
	}

	return best, nil
}

// MustEvaluate is Evaluate for card sets known to be large enough.
func MustEvaluate(cards []deck.Card) HandValue {
	v, err := Evaluate(cards)
	if err != nil {
		panic(err)
	}
	return v
}

func evaluateFive(cards [5]deck.Card) HandValue {
	ranks := make([]deck.Rank, 5)
	for i, c := range cards {
		ranks[i] = c.Rank
	}
	slices.SortFunc(ranks, func(a, b deck.Rank) int { return int(b) - int(a) })

	isFlush := true
	for _, c := range cards[1:] {
		if c.Suit != cards[0].Suit {
			isFlush = false
			break
		}
	}

	isStraight, straightHigh := straightHigh(ranks)

	if isStraight && isFlush {
		if straightHigh == deck.Ace {
			return HandValue{Category: RoyalFlush, TieBreaks: []deck.Rank{straightHigh}}
		}
		return HandValue{Category: StraightFlush, TieBreaks: []deck.Rank{straightHigh}}
	}

	// Multiplicity groups, ordered by count then rank descending.
	groups := groupRanks(ranks)

	switch {
	case groups[0].count == 4:
		return HandValue{Category: FourOfAKind, TieBreaks: []deck.Rank{groups[0].rank, groups[1].rank}}
	case groups[0].count == 3 && groups[1].count == 2:
		return HandValue{Category: FullHouse, TieBreaks: []deck.Rank{groups[0].rank, groups[1].rank}}
	case isFlush:
		return HandValue{Category: Flush, TieBreaks: ranks}
	case isStraight:
		return HandValue{Category: Straight, TieBreaks: []deck.Rank{straightHigh}}
	case groups[0].count == 3:
		return HandValue{Category: ThreeOfAKind, TieBreaks: []deck.Rank{groups[0].rank, groups[1].rank, groups[2].rank}}
	case groups[0].count == 2 && groups[1].count == 2:
		return HandValue{Category: TwoPair, TieBreaks: []deck.Rank{groups[0].rank, groups[1].rank, groups[2].rank}}
	case groups[0].count == 2:
		return HandValue{Category: Pair, TieBreaks: []deck.Rank{groups[0].rank, groups[1].rank, groups[2].rank, groups[3].rank}}
	default:
		return HandValue{Category: HighCard, TieBreaks: ranks}
	}
}

type rankGroup struct {
	rank  deck.Rank
	count int
}

// groupRanks collapses a descending rank list into (rank, count) groups
// sorted by count descending, then rank descending. With the input
// already rank-sorted, equal-count groups keep rank order.
func groupRanks(ranks []deck.Rank) []rankGroup {
	groups := make([]rankGroup, 0, 5)
	for _, r := range ranks {
		if len(groups) > 0 && groups[len(groups)-1].rank == r {
			groups[len(groups)-1].count++
			continue
		}
		groups = append(groups, rankGroup{rank: r, count: 1})
	}
	slices.SortStableFunc(groups, func(a, b rankGroup) int { return b.count - a.count })
	return groups
}

// straightHigh reports whether the descending ranks form a straight and
// the straight's high rank. The wheel A-2-3-4-5 counts as a 5-high
// straight.
func straightHigh(ranks []deck.Rank) (bool, deck.Rank) {
	for i := 1; i < len(ranks); i++ {
		if ranks[i-1] == ranks[i] {
			return false, 0
		}
	}
	if ranks[0]-ranks[4] == 4 {
		return true, ranks[0]
	}
	// Wheel: A 5 4 3 2 in descending order.
	if ranks[0] == deck.Ace && ranks[1] == deck.Five && ranks[4] == deck.Two {
		return true, deck.Five
	}
	return false, 0
}
