package game

import "gtotrainer/internal/deck"

// Player is one seat's state within a hand.
type Player struct {
	Seat  Seat
	Label string // "OOP"/"IP" for the live pair, the seat name otherwise
	Human bool

	// Active marks the two seats that actually play the hand. The
	// other four post blinds when owed and fold to any action.
	Active bool

	Stack      int
	HoleCards  []deck.Card
	CurrentBet int // chips committed this street, swept at street end
	Folded     bool
	AllIn      bool
	Acted      bool // acted since the last bet-size change this street
}

// CanAct reports whether the player may still take voluntary actions.
func (p *Player) CanAct() bool {
	return !p.Folded && !p.AllIn
}

// resetForStreet clears per-street betting state.
func (p *Player) resetForStreet() {
	p.CurrentBet = 0
	p.Acted = false
}
