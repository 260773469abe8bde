package game

import (
	"fmt"
	"math"

	"gtotrainer/internal/deck"
)

// PlayerState is one seat in a snapshot.
type PlayerState struct {
	Position   string   `json:"position"`
	Label      string   `json:"label"`
	IsHuman    bool     `json:"is_human"`
	IsActive   bool     `json:"is_active"`
	Stack      int      `json:"stack"`
	HoleCards  []string `json:"hole_cards,omitempty"`
	CurrentBet int      `json:"current_bet"`
	Folded     bool     `json:"folded"`
	AllIn      bool     `json:"all_in"`
}

// SeatState summarizes a seat for table rendering.
type SeatState struct {
	Active bool `json:"active"`
	Folded bool `json:"folded"`
}

// Stats are the derived numbers for the seat to act.
type Stats struct {
	ToCall         int     `json:"to_call"`
	EffectivePot   int     `json:"effective_pot"`
	PotOdds        string  `json:"pot_odds"`
	SPR            float64 `json:"spr"`
	CallPercentPot float64 `json:"call_percent_pot"`
}

// State is a full snapshot for hosting layers. Pot includes
// outstanding street bets, the pot as a player sees it on the table.
type State struct {
	HandID           string                 `json:"hand_id"`
	Street           string                 `json:"street"`
	Pot              int                    `json:"pot"`
	CommunityCards   []string               `json:"community_cards"`
	Players          map[string]PlayerState `json:"players"`
	Seats            map[string]SeatState   `json:"seats"`
	ActionOn         string                 `json:"action_on,omitempty"`
	HumanPosition    string                 `json:"human_position"`
	AvailableActions []string               `json:"available_actions,omitempty"`
	MinRaise         int                    `json:"min_raise"`
	MaxRaise         int                    `json:"max_raise"`
	CurrentBet       int                    `json:"current_bet"`
	Stats            *Stats                 `json:"stats,omitempty"`
	HandComplete     bool                   `json:"hand_complete"`
	Winner           string                 `json:"winner,omitempty"`
	PotAwarded       int                    `json:"pot_awarded,omitempty"`
}

// Snapshot renders the hand for a hosting layer. Computer hole cards
// stay masked as "??" until showdown or hand completion.
func (h *Hand) Snapshot() *State {
	players := make(map[string]PlayerState, NumSeats)
	seats := make(map[string]SeatState, NumSeats)
	displayPot := h.Pot

	reveal := h.Street == Showdown || h.complete
	for _, p := range h.players {
		displayPot += p.CurrentBet
		players[p.Seat.String()] = PlayerState{
			Position:   p.Seat.String(),
			Label:      p.Label,
			IsHuman:    p.Human,
			IsActive:   p.Active,
			Stack:      p.Stack,
			HoleCards:  holeCardStrings(p, reveal),
			CurrentBet: p.CurrentBet,
			Folded:     p.Folded,
			AllIn:      p.AllIn,
		}
		seats[p.Seat.String()] = SeatState{Active: true, Folded: p.Folded}
	}

	minRaise, maxRaise := h.RaiseBounds()
	st := &State{
		HandID:         h.ID,
		Street:         h.Street.String(),
		Pot:            displayPot,
		CommunityCards: cardStrings(h.Community),
		Players:        players,
		Seats:          seats,
		HumanPosition:  h.heroSeat.String(),
		MinRaise:       minRaise,
		MaxRaise:       maxRaise,
		CurrentBet:     h.currentBet,
		Stats:          h.stats(),
		HandComplete:   h.complete,
		PotAwarded:     h.awardedPot,
	}
	if h.actionOn != NoSeat {
		st.ActionOn = h.actionOn.String()
	}
	if h.winner != NoSeat {
		st.Winner = h.winner.String()
	}
	for _, a := range h.AvailableActions() {
		st.AvailableActions = append(st.AvailableActions, a.String())
	}
	return st
}

// stats computes derived numbers for the seat to act, nil when none.
// Effective pot counts outstanding bets; SPR uses the shortest
// unfolded stack.
func (h *Hand) stats() *Stats {
	p := h.PlayerToAct()
	if p == nil {
		return nil
	}

	toCall := h.currentBet - p.CurrentBet
	effective := h.Pot
	for _, pl := range h.players {
		effective += pl.CurrentBet
	}

	potOdds := "N/A"
	if toCall > 0 && effective > 0 {
		potOdds = fmt.Sprintf("%.1f:1", float64(effective)/float64(toCall))
	}

	effStack := 0
	for i, pl := range h.unfolded() {
		if i == 0 || pl.Stack < effStack {
			effStack = pl.Stack
		}
	}

	var spr, callPct float64
	if effective > 0 {
		spr = round1(float64(effStack) / float64(effective))
		callPct = round1(float64(toCall) / float64(effective) * 100)
	}

	return &Stats{
		ToCall:         toCall,
		EffectivePot:   effective,
		PotOdds:        potOdds,
		SPR:            spr,
		CallPercentPot: callPct,
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func cardStrings(cards []deck.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func holeCardStrings(p *Player, reveal bool) []string {
	if len(p.HoleCards) == 0 {
		return nil
	}
	if !p.Human && !reveal {
		return []string{"??", "??"}
	}
	return cardStrings(p.HoleCards)
}
