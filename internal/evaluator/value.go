package evaluator

import "gtotrainer/internal/deck"

// Category enumerates hand categories from weakest to strongest.
type Category uint8

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the display name of the category.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// HandValue is a totally ordered hand strength: the category decides
// first, then the tie-break ranks compare element-wise. Tie-break
// layout depends on the category (quad rank then kicker, trip rank
// then kickers, and so on); two values in the same category always
// carry the same number of tie-breaks.
type HandValue struct {
	Category  Category
	TieBreaks []deck.Rank
}

// Compare returns 1 if v is the stronger hand, -1 if other is, 0 on an
// exact tie (same category, identical tie-break ranks).
func (v HandValue) Compare(other HandValue) int {
	if v.Category != other.Category {
		if v.Category > other.Category {
			return 1
		}
		return -1
	}
	for i := range v.TieBreaks {
		if i >= len(other.TieBreaks) {
			break
		}
		if v.TieBreaks[i] != other.TieBreaks[i] {
			if v.TieBreaks[i] > other.TieBreaks[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// String returns the category display name.
func (v HandValue) String() string {
	return v.Category.String()
}
