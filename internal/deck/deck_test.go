package deck

import (
	"testing"

	"gtotrainer/internal/randutil"
)

func TestDeckDealsAllUniqueCards(t *testing.T) {
	t.Parallel()
	d := New(randutil.New(1))

	seen := make(map[Card]bool, 52)
	for d.Remaining() > 0 {
		card := d.DealOne()
		if seen[card] {
			t.Fatalf("card %v dealt twice", card)
		}
		seen[card] = true
	}

	if len(seen) != 52 {
		t.Errorf("dealt %d unique cards, want 52", len(seen))
	}
}

func TestDeckDealN(t *testing.T) {
	t.Parallel()
	d := New(randutil.New(2))

	hole := d.Deal(2)
	if len(hole) != 2 {
		t.Fatalf("Deal(2) returned %d cards", len(hole))
	}
	if d.Remaining() != 50 {
		t.Errorf("Remaining = %d, want 50", d.Remaining())
	}

	flop := d.Deal(3)
	if len(flop) != 3 {
		t.Fatalf("Deal(3) returned %d cards", len(flop))
	}
	if d.Remaining() != 47 {
		t.Errorf("Remaining = %d, want 47", d.Remaining())
	}
}

func TestDeckDealTooManyPanics(t *testing.T) {
	t.Parallel()
	d := New(randutil.New(3))
	d.Deal(50)

	defer func() {
		if recover() == nil {
			t.Error("Deal past deck end should panic")
		}
	}()
	d.Deal(3)
}

func TestDeckDeterministicWithSeed(t *testing.T) {
	t.Parallel()
	a := New(randutil.New(42))
	b := New(randutil.New(42))

	for range 52 {
		if ca, cb := a.DealOne(), b.DealOne(); ca != cb {
			t.Fatalf("same seed dealt different cards: %v vs %v", ca, cb)
		}
	}
}

func TestDeckRemove(t *testing.T) {
	t.Parallel()
	d := New(randutil.New(4))
	board := MustParseCards("Jh9d2s")
	d.Remove(board)

	if d.Remaining() != 49 {
		t.Fatalf("Remaining = %d after removing 3, want 49", d.Remaining())
	}
	for d.Remaining() > 0 {
		card := d.DealOne()
		for _, removed := range board {
			if card == removed {
				t.Fatalf("removed card %v still dealt", card)
			}
		}
	}
}

func TestDeckReset(t *testing.T) {
	t.Parallel()
	d := New(randutil.New(5))
	d.Deal(17)
	d.Reset()

	if d.Remaining() != 52 {
		t.Errorf("Remaining after Reset = %d, want 52", d.Remaining())
	}
}
