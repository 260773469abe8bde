package game

import "testing"

func TestParseSeatRoundTrip(t *testing.T) {
	t.Parallel()

	for _, seat := range Seats() {
		got, err := ParseSeat(seat.String())
		if err != nil {
			t.Fatalf("ParseSeat(%s): %v", seat, err)
		}
		if got != seat {
			t.Errorf("ParseSeat(%s) = %v", seat, got)
		}
	}

	if _, err := ParseSeat("btn"); err != nil {
		t.Errorf("lowercase seat rejected: %v", err)
	}
	if _, err := ParseSeat("HJ"); err == nil {
		t.Error("unknown seat accepted")
	}
}

func TestPostflopOrderStartsWithBlinds(t *testing.T) {
	t.Parallel()

	if postflopIndex(SB) != 0 || postflopIndex(BB) != 1 {
		t.Errorf("postflop rotation starts %d/%d, want SB then BB",
			postflopIndex(SB), postflopIndex(BB))
	}
	if postflopIndex(BTN) != NumSeats-1 {
		t.Errorf("BTN postflop index = %d, want last", postflopIndex(BTN))
	}
	if postflopIndex(NoSeat) != -1 {
		t.Errorf("NoSeat postflop index = %d, want -1", postflopIndex(NoSeat))
	}
}
