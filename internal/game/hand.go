// Package game implements the training table: a six-seat No-Limit
// Hold'em hand where exactly two seats play and the rest fold to any
// action. The hand mirrors its postflop betting into a solver node
// path so the table and a loaded tree stay aligned street by street.
package game

import (
	"fmt"
	rand "math/rand/v2"
	"slices"
	"strings"

	"github.com/google/uuid"

	"gtotrainer/internal/deck"
	"gtotrainer/internal/evaluator"
	"gtotrainer/internal/upi"
)

// Street is a betting round.
type Street uint8

const (
	Preflop Street = iota
	Flop
	Turn
	River
	Showdown
)

func (s Street) String() string {
	switch s {
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	case Showdown:
		return "showdown"
	default:
		return "unknown"
	}
}

// ActionKind is a voluntary player action.
type ActionKind uint8

const (
	Fold ActionKind = iota
	Check
	Call
	Raise
)

func (a ActionKind) String() string {
	switch a {
	case Fold:
		return "fold"
	case Check:
		return "check"
	case Call:
		return "call"
	case Raise:
		return "raise"
	default:
		return "unknown"
	}
}

// ParseActionKind maps an action name (case-insensitive) to its kind.
// "bet" is accepted as a synonym for raise.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise", "bet":
		return Raise, nil
	default:
		return Fold, fmt.Errorf("unknown action %q", s)
	}
}

// Stakes configures the blinds and starting stack.
type Stakes struct {
	SmallBlind    int
	BigBlind      int
	StartingStack int
}

// DefaultStakes is the 5/10 game with 100 big blind stacks.
func DefaultStakes() Stakes {
	return Stakes{SmallBlind: 5, BigBlind: 10, StartingStack: 1000}
}

// ActionRecord is one applied action, kept in order for hand review
// and archiving.
type ActionRecord struct {
	Seq    int
	Street Street
	Seat   Seat
	Action ActionKind
	Amount int // raise: new street total; call: chips added
}

// Hand is the authoritative state of a single hand. It is not safe
// for concurrent use; the session layer serializes access.
type Hand struct {
	ID     string
	Stakes Stakes

	Street    Street
	Pot       int // chips swept from completed streets
	Community []deck.Card

	players [NumSeats]*Player
	deck    *deck.Deck

	actionOn      Seat
	currentBet    int // highest street-cumulative bet outstanding
	minRaise      int // current raise increment
	lastAggressor Seat

	complete   bool
	winner     Seat
	awardedPot int

	heroSeat    Seat
	villainSeat Seat
	forcedFlop  []deck.Card

	// nodePath addresses the current decision point in a flop-rooted
	// solver tree; treeInvested counts each seat's chips committed
	// from the flop on, the frame bet tokens are denominated in.
	nodePath     string
	treeInvested [NumSeats]int

	actions []ActionRecord
}

// Option customizes hand construction.
type Option func(*Hand)

// WithFlop fixes the flop to the given three cards, removing them from
// the deck before any hole cards are dealt. Used when play follows a
// solver tree rooted at a specific board.
func WithFlop(cards []deck.Card) Option {
	return func(h *Hand) {
		h.forcedFlop = slices.Clone(cards)
	}
}

// NewHand shuffles, seats six players with hero and villain as the
// live pair, posts the blinds and deals hole cards. Action starts
// under the gun with the big blind as the bet to match.
func NewHand(rng *rand.Rand, stakes Stakes, hero, villain Seat, opts ...Option) (*Hand, error) {
	if !hero.Valid() || !villain.Valid() {
		return nil, fmt.Errorf("invalid seat assignment %v/%v", hero, villain)
	}
	if hero == villain {
		return nil, fmt.Errorf("hero and villain cannot share seat %s", hero)
	}

	h := &Hand{
		ID:            uuid.NewString(),
		Stakes:        stakes,
		Street:        Preflop,
		actionOn:      UTG,
		currentBet:    stakes.BigBlind,
		minRaise:      stakes.BigBlind,
		lastAggressor: BB,
		winner:        NoSeat,
		heroSeat:      hero,
		villainSeat:   villain,
		deck:          deck.New(rng),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.forcedFlop != nil {
		if len(h.forcedFlop) != 3 {
			return nil, fmt.Errorf("forced flop needs 3 cards, got %d", len(h.forcedFlop))
		}
		h.deck.Remove(h.forcedFlop)
	}

	// The earlier postflop position of the live pair is out of
	// position; labels follow the solver's side naming.
	oopSeat, ipSeat := hero, villain
	if postflopIndex(villain) < postflopIndex(hero) {
		oopSeat, ipSeat = villain, hero
	}

	for _, seat := range Seats() {
		p := &Player{
			Seat:   seat,
			Label:  seat.String(),
			Human:  seat == hero,
			Active: seat == hero || seat == villain,
			Stack:  stakes.StartingStack,
		}
		switch seat {
		case oopSeat:
			p.Label = "OOP"
		case ipSeat:
			p.Label = "IP"
		}
		h.players[seat] = p
	}

	h.postBlind(SB, stakes.SmallBlind)
	h.postBlind(BB, stakes.BigBlind)

	for _, seat := range Seats() {
		h.players[seat].HoleCards = h.deck.Deal(2)
	}

	return h, nil
}

func (h *Hand) postBlind(seat Seat, amount int) {
	p := h.players[seat]
	blind := min(amount, p.Stack)
	p.Stack -= blind
	p.CurrentBet = blind
	if p.Stack == 0 {
		p.AllIn = true
	}
}

// Player returns the seat's state, nil for NoSeat.
func (h *Hand) Player(seat Seat) *Player {
	if !seat.Valid() {
		return nil
	}
	return h.players[seat]
}

// PlayerToAct returns the player whose action it is, nil when none.
func (h *Hand) PlayerToAct() *Player {
	if h.complete || h.actionOn == NoSeat {
		return nil
	}
	return h.players[h.actionOn]
}

// ActionOn returns the seat to act, NoSeat when none.
func (h *Hand) ActionOn() Seat { return h.actionOn }

// Complete reports whether the hand has ended.
func (h *Hand) Complete() bool { return h.complete }

// Winner returns the seat awarded the pot, NoSeat while the hand runs.
func (h *Hand) Winner() Seat { return h.winner }

// AwardedPot returns the chips paid to the winner, for display and
// archiving after the live pot is zeroed.
func (h *Hand) AwardedPot() int { return h.awardedPot }

// CurrentBet returns the highest street-cumulative bet outstanding.
func (h *Hand) CurrentBet() int { return h.currentBet }

// MinRaise returns the current raise increment.
func (h *Hand) MinRaise() int { return h.minRaise }

// LastAggressor returns the seat that last bet or raised.
func (h *Hand) LastAggressor() Seat { return h.lastAggressor }

// HeroSeat returns the human seat.
func (h *Hand) HeroSeat() Seat { return h.heroSeat }

// VillainSeat returns the live computer seat.
func (h *Hand) VillainSeat() Seat { return h.villainSeat }

// CommunityCards returns a copy of the dealt board.
func (h *Hand) CommunityCards() []deck.Card {
	return slices.Clone(h.Community)
}

// NodePath returns the solver-tree address of the current decision
// point, empty before the flop.
func (h *Hand) NodePath() string { return h.nodePath }

// TreeInvested returns seat's chips committed from the flop on.
func (h *Hand) TreeInvested(seat Seat) int {
	if !seat.Valid() {
		return 0
	}
	return h.treeInvested[seat]
}

// Actions returns the applied-action log in order.
func (h *Hand) Actions() []ActionRecord {
	return slices.Clone(h.actions)
}

// Apply validates and applies one action by the seat to act, then
// advances the turn or the street. State is untouched when the action
// is rejected.
func (h *Hand) Apply(kind ActionKind, amount int) error {
	if h.complete {
		return ErrHandComplete
	}
	p := h.PlayerToAct()
	if p == nil {
		return ErrHandComplete
	}

	available := h.AvailableActions()
	if !slices.Contains(available, kind) {
		return &InvalidActionError{Action: kind, Available: available}
	}

	switch kind {
	case Fold:
		h.applyFold(p)
	case Check:
		p.Acted = true
		h.record(p.Seat, Check, 0)
		h.mirrorAction(upi.ActionToken{Kind: upi.TokenCheckCall})
	case Call:
		h.applyCall(p)
	case Raise:
		h.applyRaise(p, amount)
	}

	if h.complete {
		return nil
	}
	if h.bettingComplete() {
		h.advanceStreet()
	} else {
		h.advanceAction()
	}
	return nil
}

func (h *Hand) applyFold(p *Player) {
	p.Folded = true
	p.Acted = true
	h.record(p.Seat, Fold, 0)
	h.mirrorAction(upi.ActionToken{Kind: upi.TokenFold})

	if live := h.unfolded(); len(live) == 1 {
		// Sweep outstanding bets before awarding so the winner
		// collects the entire pot, including this street's chips.
		h.sweepBets()
		h.awardPot(live[0].Seat)
	}
}

func (h *Hand) applyCall(p *Player) {
	owed := min(h.currentBet-p.CurrentBet, p.Stack)
	p.Stack -= owed
	p.CurrentBet += owed
	p.Acted = true
	if p.Stack == 0 {
		p.AllIn = true
	}
	h.investTree(p.Seat, owed)
	h.record(p.Seat, Call, owed)
	h.mirrorAction(upi.ActionToken{Kind: upi.TokenCheckCall})
}

// applyRaise treats amount as the requested street-cumulative total
// and clamps it into the legal window: up to the minimum raise, down
// to all-in. An all-in below the minimum raise is legal.
func (h *Hand) applyRaise(p *Player, amount int) {
	if amount < h.currentBet+h.minRaise {
		amount = h.currentBet + h.minRaise
	}
	if amount >= p.Stack+p.CurrentBet {
		amount = p.Stack + p.CurrentBet
		p.AllIn = true
	}

	added := amount - p.CurrentBet
	p.Stack -= added
	h.minRaise = amount - h.currentBet
	h.currentBet = amount
	p.CurrentBet = amount
	p.Acted = true
	h.lastAggressor = p.Seat

	// A raise reopens action for everyone still able to act.
	for _, other := range h.players {
		if other.Seat != p.Seat && other.CanAct() {
			other.Acted = false
		}
	}

	h.investTree(p.Seat, added)
	h.record(p.Seat, Raise, amount)
	h.mirrorAction(upi.ActionToken{Kind: upi.TokenBet, Total: h.treeInvested[p.Seat]})
}

// investTree accumulates chips into the flop-rooted accounting used
// for bet tokens. Preflop chips are part of the tree's starting pot,
// not of any side's investment.
func (h *Hand) investTree(seat Seat, chips int) {
	if h.Street > Preflop {
		h.treeInvested[seat] += chips
	}
}

// mirrorAction appends the action to the solver node path. The tree is
// rooted at the flop, so nothing is mirrored before it.
func (h *Hand) mirrorAction(tok upi.ActionToken) {
	if h.nodePath == "" {
		return
	}
	h.nodePath = upi.ChildNode(h.nodePath, tok.String())
}

func (h *Hand) record(seat Seat, kind ActionKind, amount int) {
	h.actions = append(h.actions, ActionRecord{
		Seq:    len(h.actions),
		Street: h.Street,
		Seat:   seat,
		Action: kind,
		Amount: amount,
	})
}

// bettingComplete reports whether the street's betting has closed:
// every unfolded player is all-in or has acted since the last raise,
// and every unfolded player not all-in matches the table bet.
func (h *Hand) bettingComplete() bool {
	live := h.unfolded()
	if len(live) <= 1 {
		return true
	}
	for _, p := range live {
		if !p.Acted && !p.AllIn {
			return false
		}
	}
	bet := -1
	for _, p := range live {
		if p.AllIn {
			continue
		}
		if bet == -1 {
			bet = p.CurrentBet
		} else if p.CurrentBet != bet {
			return false
		}
	}
	return true
}

// advanceAction moves action to the next seat able to act in the
// street's rotation.
func (h *Hand) advanceAction() {
	order := postflopOrder
	if h.Street == Preflop {
		order = preflopOrder
	}

	cur := slices.Index(order[:], h.actionOn)
	for i := 1; i <= NumSeats; i++ {
		next := h.players[order[(cur+i)%NumSeats]]
		if next.CanAct() {
			h.actionOn = next.Seat
			return
		}
	}

	// Nobody left to act this street.
	if h.bettingComplete() {
		h.advanceStreet()
	}
}

// advanceStreet sweeps bets, deals the next street and hands action to
// the first seat able to act. When stacks are all-in it recurses,
// running the board out to showdown.
func (h *Hand) advanceStreet() {
	h.sweepBets()
	h.currentBet = 0
	h.minRaise = h.Stakes.BigBlind

	if h.Street < Showdown {
		h.Street++
	}

	switch h.Street {
	case Flop:
		h.dealFlop()
	case Turn, River:
		card := h.deck.DealOne()
		h.Community = append(h.Community, card)
		h.mirrorCard(card)
	case Showdown:
		h.resolveShowdown()
		return
	}

	for _, seat := range postflopOrder {
		if h.players[seat].CanAct() {
			h.actionOn = seat
			return
		}
	}
	h.actionOn = NoSeat
	h.advanceStreet()
}

func (h *Hand) dealFlop() {
	if h.forcedFlop != nil {
		h.Community = append(h.Community, h.forcedFlop...)
	} else {
		h.Community = append(h.Community, h.deck.Deal(3)...)
	}
	// Solver trees are rooted at the flop; mirroring starts here.
	h.nodePath = upi.RootNode
}

// mirrorCard appends a street-transition card token to the node path.
func (h *Hand) mirrorCard(card deck.Card) {
	if h.nodePath == "" {
		return
	}
	h.nodePath = upi.ChildNode(h.nodePath, card.String())
}

func (h *Hand) sweepBets() {
	for _, p := range h.players {
		h.Pot += p.CurrentBet
		p.resetForStreet()
	}
}

// resolveShowdown evaluates every unfolded hand against the board and
// awards the whole pot to the strict maximum. On an exact rank tie the
// first hand evaluated keeps it; split pots are not modeled.
func (h *Hand) resolveShowdown() {
	live := h.unfolded()

	winner := live[0]
	if len(live) > 1 {
		best := evaluator.MustEvaluate(append(slices.Clone(winner.HoleCards), h.Community...))
		for _, p := range live[1:] {
			v := evaluator.MustEvaluate(append(slices.Clone(p.HoleCards), h.Community...))
			if v.Compare(best) > 0 {
				best = v
				winner = p
			}
		}
	}
	h.awardPot(winner.Seat)
}

// awardPot pays the pot out and finishes the hand. The live pot drops
// to zero so chips on the table always sum to the buy-ins.
func (h *Hand) awardPot(seat Seat) {
	h.players[seat].Stack += h.Pot
	h.awardedPot = h.Pot
	h.Pot = 0
	h.winner = seat
	h.complete = true
	h.actionOn = NoSeat
}

func (h *Hand) unfolded() []*Player {
	live := make([]*Player, 0, NumSeats)
	for _, p := range h.players {
		if !p.Folded {
			live = append(live, p)
		}
	}
	return live
}
