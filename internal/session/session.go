// Package session hosts one training hand at a time behind a mutex,
// tying together the betting state machine, the opponent policy, the
// solver handle and the strategy views. Transports (HTTP, terminal)
// drive sessions; they never touch the state machine directly.
package session

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"gtotrainer/internal/analysis"
	"gtotrainer/internal/archive"
	"gtotrainer/internal/deck"
	"gtotrainer/internal/game"
	"gtotrainer/internal/policy"
	"gtotrainer/internal/randutil"
	"gtotrainer/internal/upi"
)

// ErrNoHand is returned when an operation needs a hand in play.
var ErrNoHand = errors.New("no hand in play")

// Solver is the slice of the protocol client a session needs. It is a
// superset of what the opponent policy consumes.
type Solver interface {
	HandOrder() upi.HandOrder
	NodeInfo(node string) (upi.NodeInfo, error)
	Range(side upi.Side, node string) ([]float64, error)
	Children(node string) ([]upi.Child, error)
	Strategy(node string) ([][]float64, error)
	CategoryNames() ([]string, error)
	Categories(board string) ([]int, error)
	Close() error
}

// Recorder receives completed hands. *archive.Recorder satisfies it.
type Recorder interface {
	Record(archive.Hand)
}

// TakenAction reports an action a computer seat just took.
type TakenAction struct {
	Seat   string `json:"seat"`
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

// State is the transport payload: the table snapshot plus, when a
// solver is attached postflop, the villain's strategy grid and range
// composition at the current node.
type State struct {
	game.State

	VillainStrategy *analysis.Grid        `json:"villain_strategy,omitempty"`
	VillainRange    *analysis.Composition `json:"villain_range,omitempty"`
}

// Config assembles a session. Solver and Recorder are optional; Rand
// defaults to a time-seeded source.
type Config struct {
	Stakes   game.Stakes
	Solver   Solver
	TreeFlop []deck.Card // board at the tree root when Solver is set
	Recorder Recorder
	Logger   *log.Logger
	Rand     *rand.Rand
}

// Session owns one hand at a time. All methods serialize on one
// mutex, the external mutual exclusion the state machine requires.
type Session struct {
	id       string
	logger   *log.Logger
	stakes   game.Stakes
	rng      *rand.Rand
	opponent *policy.Opponent
	solver   Solver
	treeFlop []deck.Card
	recorder Recorder

	mu       sync.Mutex
	hand     *game.Hand
	recorded bool

	// Last good solver views, keyed by the node they were built for.
	// Kept when the solver degrades so the display never goes blank
	// mid-hand.
	viewNode string
	grid     *analysis.Grid
	comp     *analysis.Composition
	catNames []string
	catIdx   []int
	catBoard string
}

// New creates a session.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = randutil.NewFromTime()
	}
	if cfg.Stakes == (game.Stakes{}) {
		cfg.Stakes = game.DefaultStakes()
	}

	logger = logger.WithPrefix("session")
	return &Session{
		id:       uuid.NewString(),
		logger:   logger,
		stakes:   cfg.Stakes,
		rng:      rng,
		opponent: policy.New(logger, rng),
		solver:   cfg.Solver,
		treeFlop: cfg.TreeFlop,
		recorder: cfg.Recorder,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// NewHand deals a fresh hand between hero and villain, replacing any
// hand in progress. When a solver tree is attached the flop is forced
// to the tree's root board.
func (s *Session) NewHand(hero, villain game.Seat) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var opts []game.Option
	if s.solver != nil && len(s.treeFlop) == 3 {
		opts = append(opts, game.WithFlop(s.treeFlop))
	}

	hand, err := game.NewHand(s.rng, s.stakes, hero, villain, opts...)
	if err != nil {
		return nil, err
	}
	s.hand = hand
	s.recorded = false
	s.viewNode = ""
	s.grid = nil
	s.comp = nil

	s.logger.Info("new hand", "hand_id", hand.ID, "hero", hero, "villain", villain)
	return s.stateLocked(), nil
}

// SubmitAction applies the human's action. Validation failures leave
// the hand untouched.
func (s *Session) SubmitAction(kind game.ActionKind, amount int) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hand == nil {
		return nil, ErrNoHand
	}
	p := s.hand.PlayerToAct()
	if p == nil && !s.hand.Complete() {
		return nil, game.ErrOutOfTurn
	}
	if p != nil && !p.Human {
		return nil, fmt.Errorf("%w: action is on %s", game.ErrOutOfTurn, p.Seat)
	}

	if err := s.hand.Apply(kind, amount); err != nil {
		return nil, err
	}
	s.afterActionLocked()
	return s.stateLocked(), nil
}

// OpponentAction lets the computer seat to act take one action. When
// it is the human's turn or the hand is over it reports no action and
// the current state.
func (s *Session) OpponentAction() (*TakenAction, *State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hand == nil {
		return nil, nil, ErrNoHand
	}
	p := s.hand.PlayerToAct()
	if p == nil || p.Human {
		return nil, s.stateLocked(), nil
	}

	d := s.opponent.Decide(s.hand, s.solverForPolicy())
	if err := s.hand.Apply(d.Kind, d.Amount); err != nil {
		return nil, nil, fmt.Errorf("apply opponent %s: %w", d.Kind, err)
	}
	s.afterActionLocked()

	taken := &TakenAction{Seat: p.Seat.String(), Action: d.Kind.String(), Amount: d.Amount}
	return taken, s.stateLocked(), nil
}

// State snapshots the current hand, nil when none has been dealt.
func (s *Session) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hand == nil {
		return nil
	}
	return s.stateLocked()
}

// Close releases the solver handle. The session stays usable without
// solver input afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	solver := s.solver
	s.solver = nil
	s.mu.Unlock()

	if solver == nil {
		return nil
	}
	if err := solver.Close(); err != nil {
		s.logger.Warn("solver close failed", "error", err)
		return err
	}
	return nil
}

// solverForPolicy adapts the stored handle for the policy, preserving
// untyped nil.
func (s *Session) solverForPolicy() policy.Solver {
	if s.solver == nil {
		return nil
	}
	return s.solver
}

// afterActionLocked runs post-mutation bookkeeping: completed hands go
// to the recorder exactly once.
func (s *Session) afterActionLocked() {
	if !s.hand.Complete() || s.recorded || s.recorder == nil {
		return
	}
	s.recorder.Record(s.archiveRecordLocked())
	s.recorded = true
}

func (s *Session) archiveRecordLocked() archive.Hand {
	h := s.hand
	hero := h.Player(h.HeroSeat())
	villain := h.Player(h.VillainSeat())

	rec := archive.Hand{
		ID:            h.ID,
		PlayedAt:      time.Now(),
		HeroSeat:      h.HeroSeat().String(),
		VillainSeat:   h.VillainSeat().String(),
		Pot:           h.AwardedPot(),
		StreetReached: h.Street.String(),
		Board:         deck.FormatCards(h.CommunityCards()),
		HeroCards:     deck.FormatCards(hero.HoleCards),
		VillainCards:  deck.FormatCards(villain.HoleCards),
	}
	if h.Winner() != game.NoSeat {
		rec.Winner = h.Winner().String()
	}
	for _, a := range h.Actions() {
		rec.Actions = append(rec.Actions, archive.Action{
			Seq:    a.Seq,
			Street: a.Street.String(),
			Seat:   a.Seat.String(),
			Action: a.Action.String(),
			Amount: a.Amount,
		})
	}
	return rec
}

func (s *Session) stateLocked() *State {
	st := &State{State: *s.hand.Snapshot()}

	if s.solver != nil && s.hand.Street > game.Preflop && !s.hand.Complete() {
		s.refreshViewsLocked()
	}
	st.VillainStrategy = s.grid
	st.VillainRange = s.comp
	return st
}

// refreshViewsLocked rebuilds the villain strategy grid and range
// composition for the current node. Any solver or data failure keeps
// the previous views; display degradation never affects play.
func (s *Session) refreshViewsLocked() {
	node := s.hand.NodePath()
	if node == "" || node == s.viewNode {
		return
	}

	villain := s.hand.Player(s.hand.VillainSeat())
	side, err := upi.ParseSide(villain.Label)
	if err != nil {
		s.logger.Warn("villain has no solver side", "label", villain.Label)
		return
	}

	children, err := s.solver.Children(node)
	if err != nil {
		s.logger.Warn("children query failed, keeping cached views", "node", node, "error", err)
		return
	}
	strategy, err := s.solver.Strategy(node)
	if err != nil {
		s.logger.Warn("strategy query failed, keeping cached views", "node", node, "error", err)
		return
	}
	weights, err := s.solver.Range(side, node)
	if err != nil {
		s.logger.Warn("range query failed, keeping cached views", "node", node, "error", err)
		return
	}

	hero := s.hand.Player(s.hand.HeroSeat())
	dead := append(s.hand.CommunityCards(), hero.HoleCards...)

	grid, err := analysis.BuildGrid(s.solver.HandOrder(), children, strategy, weights, dead)
	if err != nil {
		s.logger.Warn("grid build failed, keeping cached views", "node", node, "error", err)
		return
	}

	comp := s.buildCompositionLocked(weights)

	s.grid = grid
	if comp != nil {
		s.comp = comp
	}
	s.viewNode = node
}

// buildCompositionLocked buckets the villain range by the solver's
// hand categories on the current board. Category names are fetched
// once per session, indices once per board.
func (s *Session) buildCompositionLocked(weights []float64) *analysis.Composition {
	if s.catNames == nil {
		names, err := s.solver.CategoryNames()
		if err != nil {
			s.logger.Warn("category names query failed", "error", err)
			return nil
		}
		s.catNames = names
	}

	board := boardKey(s.hand.CommunityCards())
	if board != s.catBoard || s.catIdx == nil {
		idx, err := s.solver.Categories(board)
		if err != nil {
			s.logger.Warn("categories query failed", "board", board, "error", err)
			return nil
		}
		s.catIdx = idx
		s.catBoard = board
	}

	comp, err := analysis.BuildComposition(s.catNames, s.catIdx, weights)
	if err != nil {
		s.logger.Warn("composition build failed, keeping cached", "error", err)
		return nil
	}
	return comp
}

// boardKey renders community cards the way solver commands expect
// them, concatenated without separators.
func boardKey(cards []deck.Card) string {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(c.String())
	}
	return b.String()
}
