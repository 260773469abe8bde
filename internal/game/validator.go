package game

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHandComplete reports an action submitted after the hand ended.
var ErrHandComplete = errors.New("hand is complete")

// ErrOutOfTurn reports an action submitted for a seat without action.
var ErrOutOfTurn = errors.New("out of turn")

// InvalidActionError reports an action outside the legal set for the
// seat to act. The hand state is unchanged.
type InvalidActionError struct {
	Action    ActionKind
	Available []ActionKind
}

func (e *InvalidActionError) Error() string {
	names := make([]string, len(e.Available))
	for i, a := range e.Available {
		names[i] = a.String()
	}
	return fmt.Sprintf("action %s not available, legal: %s", e.Action, strings.Join(names, "/"))
}

// AvailableActions derives the legal action set for the seat to act:
// fold always, check when the bet is matched, call when chips are
// owed, raise when the stack exceeds the amount owed. Empty when the
// hand is over.
func (h *Hand) AvailableActions() []ActionKind {
	p := h.PlayerToAct()
	if p == nil || !p.CanAct() {
		return nil
	}

	actions := []ActionKind{Fold}
	if h.currentBet == p.CurrentBet {
		actions = append(actions, Check)
	} else {
		actions = append(actions, Call)
	}
	if p.Stack > h.currentBet-p.CurrentBet {
		actions = append(actions, Raise)
	}
	return actions
}

// RaiseBounds reports the raise-to window for the seat to act: the
// minimum legal street total and the all-in total. Apply clamps
// requests into this window rather than rejecting them.
func (h *Hand) RaiseBounds() (minTotal, maxTotal int) {
	p := h.PlayerToAct()
	if p == nil {
		return 0, 0
	}
	return h.currentBet + h.minRaise, p.Stack + p.CurrentBet
}
