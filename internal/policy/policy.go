// Package policy decides computer-seat actions. Seats outside the
// live pair always fold. The live computer seat samples the solver's
// strategy for its exact holding when a solver is attached postflop,
// and otherwise plays a passive check/call line.
package policy

import (
	rand "math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"

	"gtotrainer/internal/game"
	"gtotrainer/internal/upi"
)

// Solver is the slice of the protocol client the policy queries.
type Solver interface {
	HandOrder() upi.HandOrder
	Children(node string) ([]upi.Child, error)
	Strategy(node string) ([][]float64, error)
}

// Decision is the action a computer seat takes.
type Decision struct {
	Kind game.ActionKind

	// Amount is the street-cumulative raise total for raises and the
	// chips owed for calls; zero otherwise.
	Amount int
}

// Opponent picks actions for computer seats.
type Opponent struct {
	logger *log.Logger
	rng    *rand.Rand
}

// New creates an opponent policy. The random source drives strategy
// sampling, so a fixed seed reproduces decisions exactly.
func New(logger *log.Logger, rng *rand.Rand) *Opponent {
	return &Opponent{logger: logger.WithPrefix("policy"), rng: rng}
}

// Decide returns the action for the seat currently to act. The caller
// guarantees a computer seat has action. solver may be nil.
func (o *Opponent) Decide(h *game.Hand, solver Solver) Decision {
	p := h.PlayerToAct()
	if p == nil {
		return Decision{Kind: game.Fold}
	}
	if !p.Active {
		return Decision{Kind: game.Fold}
	}

	if solver != nil && h.Street > game.Preflop && h.NodePath() != "" {
		if d, ok := o.fromSolver(h, p, solver); ok {
			return d
		}
	}
	return o.fallback(h, p)
}

// fallback is the passive line used preflop and whenever the solver
// cannot answer: check when possible, otherwise call, otherwise fold.
func (o *Opponent) fallback(h *game.Hand, p *game.Player) Decision {
	available := h.AvailableActions()
	if slices.Contains(available, game.Check) {
		return Decision{Kind: game.Check}
	}
	if slices.Contains(available, game.Call) {
		return Decision{Kind: game.Call, Amount: h.CurrentBet() - p.CurrentBet}
	}
	return Decision{Kind: game.Fold}
}

func (o *Opponent) fromSolver(h *game.Hand, p *game.Player, solver Solver) (Decision, bool) {
	if len(p.HoleCards) != 2 {
		return Decision{}, false
	}
	combo, ok := solver.HandOrder().Index(p.HoleCards[0], p.HoleCards[1])
	if !ok {
		return Decision{}, false
	}

	node := h.NodePath()
	children, err := solver.Children(node)
	if err != nil {
		o.logger.Warn("children query failed, falling back", "node", node, "error", err)
		return Decision{}, false
	}
	strategy, err := solver.Strategy(node)
	if err != nil {
		o.logger.Warn("strategy query failed, falling back", "node", node, "error", err)
		return Decision{}, false
	}
	if len(children) == 0 || len(strategy) != len(children) {
		o.logger.Warn("strategy shape mismatch, falling back",
			"node", node, "children", len(children), "rows", len(strategy))
		return Decision{}, false
	}

	token, ok := o.sample(children, strategy, combo)
	if !ok {
		return Decision{}, false
	}
	d, ok := o.toDecision(h, p, token)
	if ok {
		o.logger.Debug("sampled action", "node", node, "token", token.String(), "action", d.Kind)
	}
	return d, ok
}

// sample draws one child action weighted by the strategy column for
// the seat's exact combination. Zero-probability actions are never
// drawn.
func (o *Opponent) sample(children []upi.Child, strategy [][]float64, combo int) (upi.ActionToken, bool) {
	weights := make([]float64, len(children))
	total := 0.0
	for i := range children {
		if combo >= len(strategy[i]) {
			return upi.ActionToken{}, false
		}
		if w := strategy[i][combo]; w > 0 {
			weights[i] = w
			total += w
		}
	}
	if total <= 0 {
		return upi.ActionToken{}, false
	}

	draw := o.rng.Float64() * total
	acc := 0.0
	last := upi.ActionToken{}
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = children[i].Token
		if draw < acc {
			return children[i].Token, true
		}
	}
	// Float accumulation can land a hair past the final band.
	return last, true
}

// toDecision maps a sampled tree token onto a legal table action. Bet
// tokens are tree-cumulative totals, so the raise target is the seat's
// street bet plus the chips the token adds beyond its investment.
func (o *Opponent) toDecision(h *game.Hand, p *game.Player, token upi.ActionToken) (Decision, bool) {
	available := h.AvailableActions()

	switch token.Kind {
	case upi.TokenFold:
		return Decision{Kind: game.Fold}, true

	case upi.TokenCheckCall:
		owed := h.CurrentBet() - p.CurrentBet
		if owed == 0 {
			return Decision{Kind: game.Check}, true
		}
		if !slices.Contains(available, game.Call) {
			return Decision{}, false
		}
		return Decision{Kind: game.Call, Amount: owed}, true

	case upi.TokenBet:
		if !slices.Contains(available, game.Raise) {
			return Decision{}, false
		}
		added := token.Total - h.TreeInvested(p.Seat)
		if added <= 0 {
			return Decision{}, false
		}
		target := p.CurrentBet + added
		if target <= h.CurrentBet() {
			return Decision{}, false
		}
		return Decision{Kind: game.Raise, Amount: target}, true
	}
	return Decision{}, false
}
