package tui

import (
	"io"
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"gtotrainer/internal/analysis"
	"gtotrainer/internal/game"
	"gtotrainer/internal/randutil"
	"gtotrainer/internal/session"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// newTestModel builds a solver-less session and a test-mode model
// with the opening hand already dealt.
func newTestModel(t *testing.T, hero, villain game.Seat) *Model {
	t.Helper()
	sess := session.New(session.Config{
		Logger: testLogger(),
		Rand:   randutil.New(7),
	})
	t.Cleanup(func() { _ = sess.Close() })

	m := New(Config{
		Session:  sess,
		Hero:     hero,
		Villain:  villain,
		Logger:   testLogger(),
		TestMode: true,
	})
	m.Update(dealMsg{})
	require.NotNil(t, m.state)
	return m
}

// submit types a line into the action input and presses enter.
func submit(m *Model, input string) {
	m.actionInput.SetValue(input)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

// playToCompletion drives the hand with passive human input (check
// when free, call otherwise) and ticks for the computer seats.
func playToCompletion(t *testing.T, m *Model) {
	t.Helper()
	for i := 0; i < 200; i++ {
		st := m.state
		require.NotNil(t, st)
		if st.HandComplete {
			return
		}
		if m.humanTurn() {
			input := "call"
			if slices.Contains(st.AvailableActions, "check") {
				input = "check"
			}
			submit(m, input)
			require.Empty(t, m.inputErr)
		} else {
			m.Update(opponentTickMsg{})
		}
	}
	t.Fatal("hand did not complete")
}

func containsLine(lines []string, substr string) bool {
	return slices.ContainsFunc(lines, func(s string) bool {
		return strings.Contains(s, substr)
	})
}

func TestModelPlaysHandToCompletion(t *testing.T) {
	m := newTestModel(t, game.BB, game.BTN)

	captured := m.CapturedLog()
	require.True(t, containsLine(captured, "*** NEW HAND ***"))
	require.True(t, containsLine(captured, "Blinds posted"))
	require.True(t, containsLine(captured, "Your hand:"))

	playToCompletion(t, m)

	captured = m.CapturedLog()
	require.True(t, containsLine(captured, "*** FLOP ***"))
	require.True(t, containsLine(captured, "wins $") || containsLine(captured, "You win $"))
	require.True(t, containsLine(captured, "Press Enter to deal the next hand."))

	total := 0
	for _, p := range m.state.Players {
		total += p.Stack
	}
	require.Equal(t, 6*game.DefaultStakes().StartingStack, total)

	// Bare enter deals the next hand.
	prev := m.state.HandID
	submit(m, "")
	require.NotNil(t, m.state)
	require.NotEqual(t, prev, m.state.HandID)
	require.False(t, m.state.HandComplete)
}

func TestModelFoldEndsHand(t *testing.T) {
	m := newTestModel(t, game.UTG, game.MP)
	require.True(t, m.humanTurn())

	submit(m, "fold")
	require.Empty(t, m.inputErr)
	require.True(t, containsLine(m.CapturedLog(), "You fold"))

	for i := 0; i < 20 && !m.state.HandComplete; i++ {
		m.Update(opponentTickMsg{})
	}
	require.True(t, m.state.HandComplete)
	require.Equal(t, game.MP.String(), m.state.Winner)
	require.True(t, containsLine(m.CapturedLog(), "MP wins $25"))
}

func TestModelRejectsBadInput(t *testing.T) {
	m := newTestModel(t, game.UTG, game.MP)
	pot := m.state.Pot

	submit(m, "jump")
	require.Contains(t, m.inputErr, "unknown action")

	submit(m, "raise")
	require.Contains(t, m.inputErr, "raise needs")

	submit(m, "raise lots")
	require.Contains(t, m.inputErr, "bad raise amount")

	// Facing the big blind, check is not in the legal set.
	submit(m, "check")
	require.Contains(t, m.inputErr, "not available")

	require.Equal(t, pot, m.state.Pot)
	require.Equal(t, game.UTG.String(), m.state.ActionOn)
}

func TestModelRejectsOutOfTurnAction(t *testing.T) {
	m := newTestModel(t, game.BB, game.BTN)
	require.False(t, m.humanTurn())

	submit(m, "call")
	require.Contains(t, m.inputErr, "out of turn")
}

func TestModelQuit(t *testing.T) {
	t.Run("ctrl+c", func(t *testing.T) {
		m := newTestModel(t, game.BB, game.BTN)
		m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.True(t, m.quitting)
		require.Equal(t, "", m.View())
	})

	t.Run("quit command", func(t *testing.T) {
		m := newTestModel(t, game.BB, game.BTN)
		submit(m, "quit")
		require.True(t, m.quitting)
		require.Equal(t, "", m.View())
	})
}

func TestModelViewRendersTable(t *testing.T) {
	m := newTestModel(t, game.UTG, game.MP)
	m.Update(tea.WindowSizeMsg{Width: 110, Height: 40})

	view := m.View()
	require.Contains(t, view, "Pot: $15")
	require.Contains(t, view, "(you, ")
	require.Contains(t, view, "Actions:")
	require.Contains(t, view, "[call $10]")
	require.Contains(t, view, "To call: $10")
}

func TestSidebarShowsVillainViews(t *testing.T) {
	m := newTestModel(t, game.BB, game.BTN)

	var grid analysis.Grid
	grid.Cells[0][0] = analysis.Cell{
		Label:   "AA",
		Combos:  6,
		Actions: map[string]float64{"bet 75": 0.5, "check/call": 0.5},
	}
	m.state.VillainStrategy = &grid
	m.state.VillainRange = &analysis.Composition{
		Categories: []analysis.CategoryShare{
			{Name: "Pair", Combos: 12, Percent: 60},
			{Name: "High Card", Combos: 8, Percent: 40},
		},
	}

	sidebar := m.renderSidebarPane()
	require.Contains(t, sidebar, "Villain range")
	require.Contains(t, sidebar, "Pair")
	require.Contains(t, sidebar, "Villain strategy")
	require.Contains(t, sidebar, "bet 75")
}

func TestGridSummary(t *testing.T) {
	var g analysis.Grid
	g.Cells[0][0] = analysis.Cell{
		Label:   "AA",
		Combos:  6,
		Actions: map[string]float64{"bet 75": 0.5, "check/call": 0.5},
	}
	g.Cells[0][1] = analysis.Cell{
		Label:   "AKs",
		Combos:  2,
		Actions: map[string]float64{"bet 75": 1},
	}

	shares := gridSummary(&g)
	require.Len(t, shares, 2)
	require.Equal(t, "bet 75", shares[0].label)
	require.InDelta(t, 62.5, shares[0].pct, 1e-9)
	require.Equal(t, "check/call", shares[1].label)
	require.InDelta(t, 37.5, shares[1].pct, 1e-9)

	require.Nil(t, gridSummary(&analysis.Grid{}))
}

func TestCapturedLogOnlyInTestMode(t *testing.T) {
	sess := session.New(session.Config{Logger: testLogger(), Rand: randutil.New(3)})
	t.Cleanup(func() { _ = sess.Close() })

	m := New(Config{Session: sess, Hero: game.BB, Villain: game.BTN, Logger: testLogger()})
	require.False(t, m.IsTestMode())
	m.Update(dealMsg{})
	require.Nil(t, m.CapturedLog())
}
