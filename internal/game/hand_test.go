package game

import (
	"fmt"
	"testing"

	"gtotrainer/internal/deck"
	"gtotrainer/internal/randutil"
	"gtotrainer/internal/upi"
)

func newTestHand(t *testing.T, seed int64, hero, villain Seat, opts ...Option) *Hand {
	t.Helper()
	h, err := NewHand(randutil.New(seed), DefaultStakes(), hero, villain, opts...)
	if err != nil {
		t.Fatalf("NewHand: %v", err)
	}
	return h
}

// foldToActive folds non-live seats until action reaches the live
// pair, the way the opponent policy does during play.
func foldToActive(t *testing.T, h *Hand) {
	t.Helper()
	for !h.Complete() {
		p := h.PlayerToAct()
		if p == nil || p.Active {
			return
		}
		if err := h.Apply(Fold, 0); err != nil {
			t.Fatalf("auto-fold %s: %v", p.Seat, err)
		}
	}
}

func mustApply(t *testing.T, h *Hand, kind ActionKind, amount int) {
	t.Helper()
	p := h.PlayerToAct()
	if err := h.Apply(kind, amount); err != nil {
		t.Fatalf("%s %s %d: %v", p.Seat, kind, amount, err)
	}
}

// chipSum totals every chip on the table: stacks, street bets and the
// live pot.
func chipSum(h *Hand) int {
	total := h.Pot
	for _, seat := range Seats() {
		p := h.Player(seat)
		total += p.Stack + p.CurrentBet
	}
	return total
}

func TestNewHandSetup(t *testing.T) {
	t.Parallel()

	h := newTestHand(t, 1, BTN, BB)

	if got := h.Player(SB).CurrentBet; got != 5 {
		t.Errorf("small blind posted %d, want 5", got)
	}
	if got := h.Player(BB).CurrentBet; got != 10 {
		t.Errorf("big blind posted %d, want 10", got)
	}
	if got := h.Player(SB).Stack; got != 995 {
		t.Errorf("SB stack = %d, want 995", got)
	}
	if h.ActionOn() != UTG {
		t.Errorf("action starts on %s, want UTG", h.ActionOn())
	}
	if h.CurrentBet() != 10 {
		t.Errorf("bet to match = %d, want 10", h.CurrentBet())
	}

	seen := make(map[deck.Card]bool)
	for _, seat := range Seats() {
		p := h.Player(seat)
		if len(p.HoleCards) != 2 {
			t.Fatalf("%s has %d hole cards", seat, len(p.HoleCards))
		}
		for _, c := range p.HoleCards {
			if seen[c] {
				t.Errorf("card %s dealt twice", c)
			}
			seen[c] = true
		}
	}

	// BB acts earlier postflop, so the villain in the big blind is
	// the out-of-position side.
	if got := h.Player(BB).Label; got != "OOP" {
		t.Errorf("BB label = %q, want OOP", got)
	}
	if got := h.Player(BTN).Label; got != "IP" {
		t.Errorf("BTN label = %q, want IP", got)
	}
	if got := h.Player(MP).Label; got != "MP" {
		t.Errorf("MP label = %q, want MP", got)
	}
	if !h.Player(BTN).Human {
		t.Error("hero seat not marked human")
	}
	if h.Player(UTG).Active {
		t.Error("UTG marked active")
	}
	if h.NodePath() != "" {
		t.Errorf("node path %q before the flop, want empty", h.NodePath())
	}
}

func TestNewHandRejectsBadSeats(t *testing.T) {
	t.Parallel()

	rng := randutil.New(1)
	if _, err := NewHand(rng, DefaultStakes(), BTN, BTN); err == nil {
		t.Error("shared seat accepted")
	}
	if _, err := NewHand(rng, DefaultStakes(), NoSeat, BB); err == nil {
		t.Error("NoSeat hero accepted")
	}
}

func TestCheckedDownHandReachesShowdown(t *testing.T) {
	t.Parallel()

	stakes := Stakes{SmallBlind: 2, BigBlind: 5, StartingStack: 500}
	h, err := NewHand(randutil.New(7), stakes, BB, BTN)
	if err != nil {
		t.Fatalf("NewHand: %v", err)
	}

	foldToActive(t, h) // UTG, MP, CO fold
	mustApply(t, h, Call, 0)
	foldToActive(t, h) // SB folds
	mustApply(t, h, Check, 0)

	if h.Street != Flop {
		t.Fatalf("street = %s after limped preflop, want flop", h.Street)
	}
	if len(h.Community) != 3 {
		t.Fatalf("flop dealt %d cards", len(h.Community))
	}
	// BB acts first postflop.
	if h.ActionOn() != BB {
		t.Fatalf("postflop action on %s, want BB", h.ActionOn())
	}

	for _, wantLen := range []int{4, 5} {
		mustApply(t, h, Check, 0)
		mustApply(t, h, Check, 0)
		if !h.Complete() && len(h.Community) != wantLen {
			t.Fatalf("community has %d cards, want %d", len(h.Community), wantLen)
		}
	}
	mustApply(t, h, Check, 0)
	mustApply(t, h, Check, 0)

	if !h.Complete() {
		t.Fatal("checked-down hand not complete")
	}
	if h.Street != Showdown {
		t.Errorf("final street = %s, want showdown", h.Street)
	}
	if h.AwardedPot() != 12 {
		t.Errorf("awarded pot = %d, want 12 (two limps and the dead small blind)", h.AwardedPot())
	}

	winner := h.Winner()
	if winner != BB && winner != BTN {
		t.Fatalf("winner = %s, want BB or BTN", winner)
	}
	if got := h.Player(winner).Stack; got != 507 {
		t.Errorf("winner stack = %d, want 507", got)
	}
	if got := chipSum(h); got != 6*stakes.StartingStack {
		t.Errorf("chips sum to %d, want %d", got, 6*stakes.StartingStack)
	}
}

func TestFoldOutAwardsSweptBets(t *testing.T) {
	t.Parallel()

	h := newTestHand(t, 3, BTN, BB)
	foldToActive(t, h)
	mustApply(t, h, Raise, 30)
	foldToActive(t, h) // SB folds
	mustApply(t, h, Fold, 0)

	if !h.Complete() {
		t.Fatal("hand not complete after fold-out")
	}
	if h.Winner() != BTN {
		t.Errorf("winner = %s, want BTN", h.Winner())
	}
	// The award includes every outstanding bet: the raise comes back
	// plus both blinds.
	if h.AwardedPot() != 45 {
		t.Errorf("awarded pot = %d, want 45", h.AwardedPot())
	}
	if got := h.Player(BTN).Stack; got != 1015 {
		t.Errorf("BTN stack = %d, want 1015", got)
	}
	if h.Pot != 0 {
		t.Errorf("live pot = %d after award, want 0", h.Pot)
	}
	if got := chipSum(h); got != 6000 {
		t.Errorf("chips sum to %d, want 6000", got)
	}

	if err := h.Apply(Check, 0); err != ErrHandComplete {
		t.Errorf("action on complete hand gave %v, want ErrHandComplete", err)
	}
}

func TestAllInRunout(t *testing.T) {
	t.Parallel()

	h := newTestHand(t, 11, BTN, BB)
	foldToActive(t, h)
	mustApply(t, h, Raise, 1000) // hero jams
	foldToActive(t, h)           // SB folds
	mustApply(t, h, Call, 0)     // villain calls all-in

	if !h.Complete() {
		t.Fatal("all-in hand did not run out")
	}
	if h.Street != Showdown {
		t.Errorf("street = %s, want showdown", h.Street)
	}
	if len(h.Community) != 5 {
		t.Errorf("board has %d cards, want 5", len(h.Community))
	}
	if h.AwardedPot() != 2005 {
		t.Errorf("awarded pot = %d, want 2005", h.AwardedPot())
	}
	if got := chipSum(h); got != 6000 {
		t.Errorf("chips sum to %d, want 6000", got)
	}
	if h.ActionOn() != NoSeat {
		t.Errorf("action on %s after completion, want none", h.ActionOn())
	}
}

func TestNodePathMirrorsBetting(t *testing.T) {
	t.Parallel()

	h := newTestHand(t, 5, BTN, BB)
	foldToActive(t, h)
	mustApply(t, h, Call, 0)
	foldToActive(t, h)
	mustApply(t, h, Check, 0)

	if h.NodePath() != upi.RootNode {
		t.Fatalf("flop node = %q, want %q", h.NodePath(), upi.RootNode)
	}

	verify := func(wantOOP, wantIP int) {
		t.Helper()
		oop, ip, err := upi.Investments(h.NodePath())
		if err != nil {
			t.Fatalf("Investments(%q): %v", h.NodePath(), err)
		}
		if oop != wantOOP || ip != wantIP {
			t.Errorf("replayed investments (%d, %d), want (%d, %d) at %q", oop, ip, wantOOP, wantIP, h.NodePath())
		}
		if got := h.TreeInvested(BB); got != wantOOP {
			t.Errorf("BB tree investment = %d, want %d", got, wantOOP)
		}
		if got := h.TreeInvested(BTN); got != wantIP {
			t.Errorf("BTN tree investment = %d, want %d", got, wantIP)
		}
	}

	mustApply(t, h, Check, 0) // BB checks
	if h.NodePath() != "r:c" {
		t.Fatalf("node = %q, want r:c", h.NodePath())
	}
	mustApply(t, h, Raise, 30) // BTN bets 30
	if h.NodePath() != "r:c:b30" {
		t.Fatalf("node = %q, want r:c:b30", h.NodePath())
	}
	mustApply(t, h, Call, 0) // BB calls, turn card appended
	if h.Street != Turn {
		t.Fatalf("street = %s, want turn", h.Street)
	}
	verify(30, 30)

	mustApply(t, h, Raise, 60) // BB leads the turn for 60
	if got := h.TreeInvested(BB); got != 90 {
		t.Fatalf("BB tree investment = %d, want 90", got)
	}
	if got := upi.LastToken(h.NodePath()); got != "b90" {
		t.Fatalf("last token = %q, want b90 (cumulative from the flop)", got)
	}
	mustApply(t, h, Call, 0) // BTN calls, river card appended
	if h.Street != River {
		t.Fatalf("street = %s, want river", h.Street)
	}
	verify(90, 90)
}

func TestForcedFlop(t *testing.T) {
	t.Parallel()

	flop := deck.MustParseCards("QsJh2h")
	h := newTestHand(t, 9, BTN, BB, WithFlop(flop))

	for _, seat := range Seats() {
		for _, c := range h.Player(seat).HoleCards {
			for _, f := range flop {
				if c == f {
					t.Fatalf("flop card %s dealt to %s", c, seat)
				}
			}
		}
	}

	foldToActive(t, h)
	mustApply(t, h, Call, 0)
	foldToActive(t, h)
	mustApply(t, h, Check, 0)

	if got := deck.FormatCards(h.Community); got != "Qs Jh 2h" {
		t.Errorf("flop = %q, want Qs Jh 2h", got)
	}
}

func TestChipConservationRandomPlay(t *testing.T) {
	t.Parallel()

	buyIn := 6 * DefaultStakes().StartingStack
	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			t.Parallel()

			rng := randutil.New(seed * 31)
			h := newTestHand(t, seed, BTN, BB)

			for steps := 0; !h.Complete(); steps++ {
				if steps > 500 {
					t.Fatal("hand did not terminate")
				}
				p := h.PlayerToAct()
				if p == nil {
					t.Fatal("no actor on an incomplete hand")
				}

				kind, amount := Fold, 0
				if p.Active {
					av := h.AvailableActions()
					kind = av[rng.IntN(len(av))]
					if kind == Raise {
						lo, hi := h.RaiseBounds()
						if hi <= lo {
							amount = hi
						} else {
							amount = lo + rng.IntN(hi-lo+1)
						}
					}
				}
				if err := h.Apply(kind, amount); err != nil {
					t.Fatalf("step %d: %s %s: %v", steps, p.Seat, kind, err)
				}
				if got := chipSum(h); got != buyIn {
					t.Fatalf("chips sum to %d after %s by %s, want %d", got, kind, p.Seat, buyIn)
				}
			}

			if h.Winner() == NoSeat {
				t.Error("complete hand has no winner")
			}
			if h.AwardedPot() <= 0 {
				t.Error("complete hand awarded nothing")
			}
		})
	}
}
