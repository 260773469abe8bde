package deck

import (
	"fmt"
	"strings"
)

// Suit is one of the four card suits. Suits carry no ordering.
type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// String returns the lowercase suit letter used in card notation.
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "c"
	case Diamonds:
		return "d"
	case Hearts:
		return "h"
	case Spades:
		return "s"
	default:
		return "?"
	}
}

// Rank is a card rank, totally ordered Two < Three < ... < Ace.
// The numeric value runs 0 (Two) through 12 (Ace).
type Rank uint8

const (
	Two Rank = iota
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the single-character rank used in card notation.
func (r Rank) String() string {
	switch r {
	case Two:
		return "2"
	case Three:
		return "3"
	case Four:
		return "4"
	case Five:
		return "5"
	case Six:
		return "6"
	case Seven:
		return "7"
	case Eight:
		return "8"
	case Nine:
		return "9"
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return "?"
	}
}

// Card is an immutable playing card.
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a card from a rank and suit.
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String renders the card in two-character notation, e.g. "Ah" or "2c".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Value returns the numeric rank value (0-12) used for hand comparison.
func (c Card) Value() int {
	return int(c.Rank)
}

// ParseCard parses two-character card notation such as "As" or "td".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q: must be two characters", s)
	}

	rank, err := parseRank(s[0])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}
	suit, err := parseSuit(s[1])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}

	return Card{Rank: rank, Suit: suit}, nil
}

// ParseCards parses concatenated card notation like "AsKsQsJsTs".
// Spaces are ignored, so board strings such as "Jh 9d 2s" also parse.
func ParseCards(s string) ([]Card, error) {
	s = strings.ReplaceAll(s, " ", "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("invalid card string length %d: must be even", len(s))
	}

	cards := make([]Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		card, err := ParseCard(s[i : i+2])
		if err != nil {
			return nil, fmt.Errorf("at position %d: %w", i, err)
		}
		cards = append(cards, card)
	}

	return cards, nil
}

// MustParseCards parses cards and panics on error. Intended for tests
// and compile-time-known card strings.
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(fmt.Sprintf("failed to parse cards %q: %v", s, err))
	}
	return cards
}

// FormatCards renders cards as space-separated notation, e.g. "Jh 9d 2s".
func FormatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func parseRank(b byte) (Rank, error) {
	switch b {
	case '2':
		return Two, nil
	case '3':
		return Three, nil
	case '4':
		return Four, nil
	case '5':
		return Five, nil
	case '6':
		return Six, nil
	case '7':
		return Seven, nil
	case '8':
		return Eight, nil
	case '9':
		return Nine, nil
	case 'T', 't':
		return Ten, nil
	case 'J', 'j':
		return Jack, nil
	case 'Q', 'q':
		return Queen, nil
	case 'K', 'k':
		return King, nil
	case 'A', 'a':
		return Ace, nil
	default:
		return 0, fmt.Errorf("unknown rank %q", string(b))
	}
}

func parseSuit(b byte) (Suit, error) {
	switch b {
	case 'c', 'C':
		return Clubs, nil
	case 'd', 'D':
		return Diamonds, nil
	case 'h', 'H':
		return Hearts, nil
	case 's', 'S':
		return Spades, nil
	default:
		return 0, fmt.Errorf("unknown suit %q", string(b))
	}
}
