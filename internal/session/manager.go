package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"gtotrainer/internal/deck"
	"gtotrainer/internal/game"
	"gtotrainer/internal/upi"
)

// ErrNotFound is returned for lookups of unknown session ids.
var ErrNotFound = errors.New("session not found")

// SolverFactory launches a solver process with the given tree loaded.
// The hosting layer supplies one closing over the solver executable;
// a nil factory runs sessions without solver input.
type SolverFactory func(treePath string) (Solver, error)

// ManagerConfig assembles a manager.
type ManagerConfig struct {
	Stakes      game.Stakes
	Factory     SolverFactory
	Recorder    Recorder
	TreeDir     string // relative tree files resolve against this
	DefaultTree string // used when a create request names no tree
	Logger      *log.Logger
}

// Manager issues and tracks sessions, one solver process each.
type Manager struct {
	cfg    ManagerConfig
	logger *log.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger.WithPrefix("session"),
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session. treeFile overrides the configured
// default; when a solver cannot be opened the session runs without
// one and the opponent plays the fallback line.
func (m *Manager) Create(treeFile string) (*Session, error) {
	solver, flop := m.openSolver(treeFile)

	s := New(Config{
		Stakes:   m.cfg.Stakes,
		Solver:   solver,
		TreeFlop: flop,
		Recorder: m.cfg.Recorder,
		Logger:   m.logger,
	})

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", s.ID(), "solver", solver != nil)
	return s, nil
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close removes a session and releases its solver.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Close()
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			m.logger.Warn("session close on shutdown failed", "session_id", s.ID(), "error", err)
		}
	}
}

// openSolver launches a solver for the resolved tree path and checks
// the tree roots at a flop. Failures degrade to solver-less play; the
// opponent policy and display both handle a nil solver.
func (m *Manager) openSolver(treeFile string) (Solver, []deck.Card) {
	if m.cfg.Factory == nil {
		return nil, nil
	}
	tree := treeFile
	if tree == "" {
		tree = m.cfg.DefaultTree
	}
	if tree == "" {
		return nil, nil
	}
	if !filepath.IsAbs(tree) && m.cfg.TreeDir != "" {
		tree = filepath.Join(m.cfg.TreeDir, tree)
	}

	solver, err := m.cfg.Factory(tree)
	if err != nil {
		m.logger.Warn("solver unavailable, session runs without it", "tree", tree, "error", err)
		return nil, nil
	}

	info, err := solver.NodeInfo(upi.RootNode)
	if err != nil {
		m.logger.Warn("tree root query failed, session runs without solver", "tree", tree, "error", err)
		_ = solver.Close()
		return nil, nil
	}
	if len(info.Board) != 3 {
		m.logger.Warn("tree does not root at a flop, session runs without solver",
			"tree", tree, "board", deck.FormatCards(info.Board))
		_ = solver.Close()
		return nil, nil
	}
	return solver, info.Board
}
