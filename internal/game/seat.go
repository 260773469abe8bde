package game

import (
	"fmt"
	"strings"
)

// Seat is one of the six canonical table positions.
type Seat int8

const (
	UTG Seat = iota
	MP
	CO
	BTN
	SB
	BB

	// NoSeat marks the absence of a seat, e.g. no player to act.
	NoSeat Seat = -1
)

// NumSeats is the number of seats at the table.
const NumSeats = 6

// preflopOrder is the preflop rotation. From the flop on the rotation
// starts with the blinds, so the earlier postflop seat of any pair is
// the out-of-position one.
var (
	preflopOrder  = [NumSeats]Seat{UTG, MP, CO, BTN, SB, BB}
	postflopOrder = [NumSeats]Seat{SB, BB, UTG, MP, CO, BTN}
)

// Seats lists every seat in preflop order.
func Seats() []Seat {
	order := preflopOrder
	return order[:]
}

func (s Seat) String() string {
	switch s {
	case UTG:
		return "UTG"
	case MP:
		return "MP"
	case CO:
		return "CO"
	case BTN:
		return "BTN"
	case SB:
		return "SB"
	case BB:
		return "BB"
	default:
		return ""
	}
}

// Valid reports whether s names a real seat.
func (s Seat) Valid() bool {
	return s >= 0 && s < NumSeats
}

// ParseSeat maps a seat name (case-insensitive) to its Seat.
func ParseSeat(s string) (Seat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UTG":
		return UTG, nil
	case "MP":
		return MP, nil
	case "CO":
		return CO, nil
	case "BTN":
		return BTN, nil
	case "SB":
		return SB, nil
	case "BB":
		return BB, nil
	default:
		return NoSeat, fmt.Errorf("unknown seat %q", s)
	}
}

// postflopIndex returns s's place in the postflop rotation.
func postflopIndex(s Seat) int {
	for i, seat := range postflopOrder {
		if seat == s {
			return i
		}
	}
	return -1
}
