package deck

import (
	"fmt"
	rand "math/rand/v2"
)

// Deck is a standard 52-card deck that deals without replacement.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New creates a shuffled deck using the provided random source.
// Injecting the source keeps shuffles reproducible under test.
func New(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, 52),
		rng:   rng,
	}
	d.Reset()
	return d
}

// Reset restores all 52 cards and reshuffles.
func (d *Deck) Reset() {
	d.cards = d.cards[:0]
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(rank, suit))
		}
	}
	d.Shuffle()
}

// Shuffle randomizes the remaining cards in place using Fisher-Yates.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the top n cards. Dealing more cards than
// remain is an invariant violation and panics; a full hand consumes at
// most 17 of 52 cards.
func (d *Deck) Deal(n int) []Card {
	if n > len(d.cards) {
		panic(fmt.Sprintf("deck: cannot deal %d cards, %d remaining", n, len(d.cards)))
	}
	dealt := make([]Card, n)
	copy(dealt, d.cards[:n])
	d.cards = d.cards[n:]
	return dealt
}

// DealOne removes and returns the top card.
func (d *Deck) DealOne() Card {
	return d.Deal(1)[0]
}

// Remove deletes specific cards from the deck, for reconstructing a
// deck state around known hole or board cards.
func (d *Deck) Remove(cards []Card) {
	for _, card := range cards {
		for i, c := range d.cards {
			if c == card {
				d.cards = append(d.cards[:i], d.cards[i+1:]...)
				break
			}
		}
	}
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards)
}
