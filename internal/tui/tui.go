// Package tui is the interactive terminal client. It drives a local
// session against the opponent policy: the human types actions into
// an input pane, the computer seats act on a short tick so a hand
// reads like play, and a sidebar tracks the table together with the
// villain's solver views once a flop is out.
package tui

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"gtotrainer/internal/analysis"
	"gtotrainer/internal/game"
	"gtotrainer/internal/session"
)

// opponentDelay paces computer actions so they arrive one at a time
// instead of all at once.
const opponentDelay = 600 * time.Millisecond

// dealMsg deals the opening hand once the program starts.
type dealMsg struct{}

// opponentTickMsg fires when the computer seat on action should act.
type opponentTickMsg struct{}

// Config assembles the model. Logger defaults to the package default
// logger.
type Config struct {
	Session *session.Session
	Hero    game.Seat
	Villain game.Seat
	Logger  *log.Logger

	// TestMode captures log lines for assertions instead of
	// updating the viewport.
	TestMode bool
}

// Model is the Bubble Tea model for one training session.
type Model struct {
	logger  *log.Logger
	session *session.Session
	hero    game.Seat
	villain game.Seat

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// State
	state    *session.State
	street   string
	gameLog  []string
	inputErr string

	focusedPane int // 0 = log, 1 = input
	width       int
	height      int
	initialized bool
	quitting    bool
	ticking     bool

	// Test mode
	testMode    bool
	capturedLog []string
}

// New creates a model over an existing session. The first hand is
// dealt by Init.
func New(cfg Config) *Model {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "fold, check, call, raise 30, new, quit"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = PromptStyle
	ti.TextStyle = PlayerInfoStyle
	ti.Prompt = "> "

	return &Model{
		logger:      logger.WithPrefix("tui"),
		session:     cfg.Session,
		hero:        cfg.Hero,
		villain:     cfg.Villain,
		logViewport: vp,
		actionInput: ti,
		focusedPane: 1, // Start with input focused
		testMode:    cfg.TestMode,
	}
}

// Run runs the program over the model in the alternate screen.
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// Init deals the first hand and starts the cursor blink.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, func() tea.Msg { return dealMsg{} })
}

// Update handles messages in the TUI.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case dealMsg:
		m.startHand()
		return m, m.scheduleOpponent()

	case opponentTickMsg:
		m.ticking = false
		m.opponentTurn()
		return m, m.scheduleOpponent()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			// Switch focus between log and input
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 { // Only process enter in input pane
				cmd := m.processInput(strings.TrimSpace(m.actionInput.Value()))
				m.actionInput.SetValue("")
				if m.quitting {
					return m, cmd
				}
				cmds = append(cmds, cmd)
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup", "b":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown", "f":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		case "home", "g":
			if m.focusedPane == 0 {
				m.logViewport.GotoTop()
			}
		case "end", "G":
			if m.focusedPane == 0 {
				m.logViewport.GotoBottom()
			}
		}
	}

	// Update components
	var cmd tea.Cmd

	// Only update input if it's focused
	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Always update viewport (for scrolling)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// startHand deals a fresh hand and logs the opening state.
func (m *Model) startHand() {
	st, err := m.session.NewHand(m.hero, m.villain)
	if err != nil {
		m.inputErr = err.Error()
		return
	}
	m.state = st
	m.street = st.Street
	m.inputErr = ""

	if len(m.gameLog) > 0 {
		m.addLog("")
	}
	m.addLog(fmt.Sprintf("*** NEW HAND *** (you are %s, villain is %s)", m.hero, m.villain))
	sb := st.Players[game.SB.String()]
	bb := st.Players[game.BB.String()]
	m.addLog(fmt.Sprintf("Blinds posted: SB $%d, BB $%d", sb.CurrentBet, bb.CurrentBet))
	if hero, ok := st.Players[m.hero.String()]; ok {
		m.addLog(fmt.Sprintf("Your hand: %s", m.formatCards(hero.HoleCards)))
	}
}

// opponentTurn lets the computer seat on action act once.
func (m *Model) opponentTurn() {
	taken, st, err := m.session.OpponentAction()
	if err != nil {
		m.logger.Error("opponent action failed", "error", err)
		m.inputErr = err.Error()
		return
	}
	if taken != nil {
		m.addLog(opponentLine(taken))
	}
	m.applyState(st)
}

// processInput handles one submitted line from the action input.
func (m *Model) processInput(input string) tea.Cmd {
	m.inputErr = ""
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) == 0 {
		// Bare Enter deals the next hand once the current one
		// is done.
		if m.state == nil || m.state.HandComplete {
			m.startHand()
			return m.scheduleOpponent()
		}
		return nil
	}

	switch fields[0] {
	case "quit", "exit", "q":
		m.quitting = true
		return tea.Sequence(tea.ClearScreen, tea.Quit)
	case "new", "deal":
		m.startHand()
		return m.scheduleOpponent()
	}

	kind, err := game.ParseActionKind(fields[0])
	if err != nil {
		m.inputErr = fmt.Sprintf("%v (try fold, check, call, raise 30, new, quit)", err)
		return nil
	}

	amount := 0
	if kind == game.Raise {
		if len(fields) < 2 {
			m.inputErr = "raise needs a street total, e.g. raise 30"
			return nil
		}
		amount, err = strconv.Atoi(fields[1])
		if err != nil {
			m.inputErr = fmt.Sprintf("bad raise amount %q", fields[1])
			return nil
		}
	}

	// The call amount disappears from the snapshot once the action
	// applies, so take it before submitting.
	toCall := 0
	if m.state != nil && m.state.Stats != nil {
		toCall = m.state.Stats.ToCall
	}
	prevStreet := m.street

	st, err := m.session.SubmitAction(kind, amount)
	if err != nil {
		m.inputErr = err.Error()
		return nil
	}

	applied := amount
	switch kind {
	case game.Call:
		applied = toCall
	case game.Raise:
		// Report the clamped total the engine actually applied.
		if p, ok := st.Players[m.hero.String()]; ok && st.Street == prevStreet {
			applied = p.CurrentBet
		}
	}
	m.addLog(heroLine(kind, applied))
	m.applyState(st)
	return m.scheduleOpponent()
}

// applyState installs a fresh snapshot, logging street transitions
// and hand completion.
func (m *Model) applyState(st *session.State) {
	if st == nil {
		return
	}
	if st.Street != m.street {
		m.street = st.Street
		m.addLog(fmt.Sprintf("*** %s *** %s", strings.ToUpper(st.Street), m.formatCards(st.CommunityCards)))
	}
	justCompleted := st.HandComplete && (m.state == nil || !m.state.HandComplete)
	m.state = st
	if justCompleted {
		m.logCompletion(st)
	}
}

// logCompletion reports the villain's revealed holding and the result.
func (m *Model) logCompletion(st *session.State) {
	v, ok := st.Players[m.villain.String()]
	if ok && len(v.HoleCards) > 0 && v.HoleCards[0] != "??" {
		verb := "had"
		if st.Street == game.Showdown.String() {
			verb = "shows"
		}
		m.addLog(fmt.Sprintf("%s %s %s", m.villain, verb, m.formatCards(v.HoleCards)))
	}
	if st.Winner != "" {
		if st.Winner == m.hero.String() {
			m.addLog(fmt.Sprintf("You win $%d", st.PotAwarded))
		} else {
			m.addLog(fmt.Sprintf("%s wins $%d", st.Winner, st.PotAwarded))
		}
	}
	m.addLog("Press Enter to deal the next hand.")
}

// scheduleOpponent returns a tick command when a computer seat is on
// action and none is already in flight.
func (m *Model) scheduleOpponent() tea.Cmd {
	if m.ticking || m.state == nil || m.state.HandComplete || m.state.ActionOn == "" {
		return nil
	}
	p, ok := m.state.Players[m.state.ActionOn]
	if !ok || p.IsHuman {
		return nil
	}
	m.ticking = true
	return tea.Tick(opponentDelay, func(time.Time) tea.Msg { return opponentTickMsg{} })
}

// humanTurn reports whether the human holds the action.
func (m *Model) humanTurn() bool {
	if m.state == nil || m.state.HandComplete || m.state.ActionOn == "" {
		return false
	}
	p, ok := m.state.Players[m.state.ActionOn]
	return ok && p.IsHuman
}

// View renders the TUI.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	// Don't render until we have valid dimensions
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	// Action pane (bottom, full width)
	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	calculatedActionWidth := m.width - 2       // Full width minus border
	calculatedActionHeight := actionHeight - 2 // Content height minus border

	if calculatedActionWidth < 1 {
		calculatedActionWidth = 1
	}
	if calculatedActionHeight < 1 {
		calculatedActionHeight = 1
	}

	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(blurredBorder).
		Width(calculatedActionWidth).
		Height(calculatedActionHeight)

	if m.focusedPane == 1 {
		actionStyle = actionStyle.BorderForeground(focusedBorder)
	}
	actionPane := actionStyle.Render(actionContent)

	// Sidebar pane (right side of log pane, same height as log pane)
	sidebarContent := m.renderSidebarPane()
	sidebarWidth := lipgloss.Width(sidebarContent)

	calculatedSidebarWidth := 25
	if sidebarWidth > calculatedSidebarWidth {
		calculatedSidebarWidth = sidebarWidth
	}

	calculatedSidebarHeight := m.height - actionHeight - 4 // Account for border x 2 and action pane

	if calculatedSidebarWidth < 1 {
		calculatedSidebarWidth = 1
	}
	if calculatedSidebarHeight < 1 {
		calculatedSidebarHeight = 1
	}

	sidebarStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(blurredBorder).
		Width(calculatedSidebarWidth).
		Height(calculatedSidebarHeight)

	sidebarPane := sidebarStyle.Render(sidebarContent)

	// Log pane (top, fills height minus action pane)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))

	calculatedLogWidth := m.width - calculatedSidebarWidth - 4 // Account for border x 2 and sidebar
	calculatedLogHeight := m.height - actionHeight - 4         // Account for border x 2 and action pane

	if calculatedLogWidth < 1 {
		calculatedLogWidth = 1
	}
	if calculatedLogHeight < 1 {
		calculatedLogHeight = 1
	}

	m.logViewport.Width = calculatedLogWidth
	m.logViewport.Height = calculatedLogHeight

	// On first proper sizing, reset to top to avoid starting scrolled down
	if !m.initialized && calculatedLogWidth > 1 && calculatedLogHeight > 1 {
		m.logViewport.GotoTop()
		m.initialized = true
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(blurredBorder).
		Width(calculatedLogWidth).
		Height(calculatedLogHeight)

	if m.focusedPane == 0 {
		logStyle = logStyle.BorderForeground(focusedBorder)
	}
	logPane := logStyle.Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)

	return lipgloss.JoinVertical(lipgloss.Left, topRow, actionPane)
}

// renderActionPane renders the action input pane
func (m *Model) renderActionPane() string {
	var content strings.Builder

	st := m.state
	switch {
	case st == nil:
		content.WriteString(HandInfoStyle.Render("Dealing..."))
		content.WriteString("\n")
	case st.HandComplete:
		content.WriteString(HandInfoStyle.Render("Hand complete."))
		content.WriteString("\n")
	case m.humanTurn():
		if hero, ok := st.Players[m.hero.String()]; ok {
			content.WriteString(HandInfoStyle.Render(
				fmt.Sprintf("Hand: %s  Pot: $%d", m.formatCards(hero.HoleCards), st.Pot)))
			content.WriteString("\n")
		}
		content.WriteString(m.renderAvailableActions())
		content.WriteString("\n")
	default:
		content.WriteString(HandInfoStyle.Render(fmt.Sprintf("Waiting on %s...", st.ActionOn)))
		content.WriteString("\n")
	}

	if m.inputErr != "" {
		content.WriteString(ErrorStyle.Render(m.inputErr))
		content.WriteString("\n")
	}

	// Update input placeholder based on game state and show input field
	switch {
	case st == nil || st.HandComplete:
		m.actionInput.Placeholder = "Enter to deal, 'quit' to exit"
	case m.humanTurn():
		m.actionInput.Placeholder = "fold, check, call, raise 30"
	default:
		m.actionInput.Placeholder = "'new' to redeal, 'quit' to exit"
	}

	content.WriteString(m.actionInput.View())
	content.WriteString("\n")

	if m.focusedPane == 0 {
		content.WriteString(InfoStyle.Render(
			"Log focused: ↑↓ scroll, PgUp/PgDn half page, Home/End, Tab to input"))
	} else if m.humanTurn() {
		content.WriteString(InfoStyle.Render(
			"Tab to scroll log | Enter to submit | Ctrl+C to quit"))
	} else {
		content.WriteString(InfoStyle.Render(
			"Tab to scroll log | Ctrl+C to quit"))
	}

	return content.String()
}

// renderAvailableActions renders the legal action set with amounts.
func (m *Model) renderAvailableActions() string {
	st := m.state
	var actions []string
	for _, name := range st.AvailableActions {
		switch name {
		case "fold":
			actions = append(actions, ErrorStyle.Render("[fold]"))
		case "check":
			actions = append(actions, SuccessStyle.Render("[check]"))
		case "call":
			toCall := 0
			if st.Stats != nil {
				toCall = st.Stats.ToCall
			}
			actions = append(actions, SuccessStyle.Render(fmt.Sprintf("[call $%d]", toCall)))
		case "raise":
			actions = append(actions, WarningStyle.Render(
				fmt.Sprintf("[raise $%d-$%d]", st.MinRaise, st.MaxRaise)))
		}
	}
	if len(actions) == 0 {
		actions = append(actions, ErrorStyle.Render("[no actions available]"))
	}
	return ActionsStyle.Render("Actions: " + strings.Join(actions, " "))
}

// renderSidebarPane creates the sidebar content
func (m *Model) renderSidebarPane() string {
	st := m.state
	if st == nil {
		return InfoStyle.Render("No hand yet")
	}

	var content strings.Builder
	content.WriteString(WarningStyle.Render(fmt.Sprintf("Pot: $%d", st.Pot)))
	if st.CurrentBet > 0 {
		content.WriteString(" | ")
		content.WriteString(WarningStyle.Render(fmt.Sprintf("Bet: $%d", st.CurrentBet)))
	}
	content.WriteString("\n")
	if len(st.CommunityCards) > 0 {
		content.WriteString("Board: " + m.formatCards(st.CommunityCards))
		content.WriteString("\n")
	}
	content.WriteString("\n")

	for _, seat := range game.Seats() {
		p, ok := st.Players[seat.String()]
		if !ok {
			continue
		}
		marker := "  "
		if st.ActionOn == seat.String() {
			marker = "> "
		}
		line := fmt.Sprintf("%s%-3s $%-5d", marker, seat, p.Stack)
		if p.CurrentBet > 0 {
			line += fmt.Sprintf(" bet $%d", p.CurrentBet)
		}
		if p.AllIn {
			line += " all-in"
		}
		switch {
		case p.Folded:
			content.WriteString(InfoStyle.Render(line + " folded"))
		case p.IsHuman:
			content.WriteString(SuccessStyle.Render(fmt.Sprintf("%s (you, %s)", line, p.Label)))
		case p.IsActive:
			content.WriteString(PlayerInfoStyle.Render(fmt.Sprintf("%s (%s)", line, p.Label)))
		default:
			content.WriteString(PlayerInfoStyle.Render(line))
		}
		content.WriteString("\n")
	}

	if st.Stats != nil {
		s := st.Stats
		content.WriteString("\n")
		content.WriteString(InfoStyle.Render(fmt.Sprintf("To call: $%d", s.ToCall)))
		content.WriteString("\n")
		content.WriteString(InfoStyle.Render(fmt.Sprintf("Pot odds: %s | SPR: %.1f", s.PotOdds, s.SPR)))
		content.WriteString("\n")
		content.WriteString(InfoStyle.Render(fmt.Sprintf("Call: %.1f%% of pot", s.CallPercentPot)))
		content.WriteString("\n")
	}

	if st.VillainRange != nil && len(st.VillainRange.Categories) > 0 {
		content.WriteString("\n")
		content.WriteString(HeaderStyle.Render(" Villain range "))
		content.WriteString("\n")
		for _, c := range st.VillainRange.Categories {
			content.WriteString(PlayerInfoStyle.Render(fmt.Sprintf("%-15s %5.1f%%", c.Name, c.Percent)))
			content.WriteString("\n")
		}
	}

	if st.VillainStrategy != nil {
		if shares := gridSummary(st.VillainStrategy); len(shares) > 0 {
			content.WriteString("\n")
			content.WriteString(HeaderStyle.Render(" Villain strategy "))
			content.WriteString("\n")
			for _, s := range shares {
				content.WriteString(PlayerInfoStyle.Render(fmt.Sprintf("%-15s %5.1f%%", s.label, s.pct)))
				content.WriteString("\n")
			}
		}
	}

	return content.String()
}

// actionShare is one action's overall frequency across the villain's
// range.
type actionShare struct {
	label string
	pct   float64
}

// gridSummary flattens the 13x13 grid into overall action
// frequencies, weighting each hand class by its live combination
// count.
func gridSummary(g *analysis.Grid) []actionShare {
	totals := make(map[string]float64)
	var live float64
	for _, row := range g.Cells {
		for _, cell := range row {
			if cell.Combos == 0 || cell.Actions == nil {
				continue
			}
			live += float64(cell.Combos)
			for label, freq := range cell.Actions {
				totals[label] += freq * float64(cell.Combos)
			}
		}
	}
	if live == 0 {
		return nil
	}
	shares := make([]actionShare, 0, len(totals))
	for label, total := range totals {
		shares = append(shares, actionShare{label: label, pct: total / live * 100})
	}
	slices.SortFunc(shares, func(a, b actionShare) int {
		if a.pct != b.pct {
			return cmp.Compare(b.pct, a.pct)
		}
		return cmp.Compare(a.label, b.label)
	})
	return shares
}

// formatCards renders card strings with suit coloring; masked cards
// stay dim.
func (m *Model) formatCards(cards []string) string {
	if len(cards) == 0 {
		return ""
	}
	styled := make([]string, len(cards))
	for i, c := range cards {
		styled[i] = styleCard(c)
	}
	return "[" + strings.Join(styled, " ") + "]"
}

func styleCard(card string) string {
	if card == "" {
		return card
	}
	switch card[len(card)-1] {
	case 'h', 'd':
		return RedCardStyle.Render(card)
	case 'c', 's':
		return BlackCardStyle.Render(card)
	default:
		return InfoStyle.Render(card)
	}
}

// opponentLine describes a computer seat's action for the log.
func opponentLine(taken *session.TakenAction) string {
	switch taken.Action {
	case "fold":
		return taken.Seat + " folds"
	case "check":
		return taken.Seat + " checks"
	case "call":
		return fmt.Sprintf("%s calls $%d", taken.Seat, taken.Amount)
	default:
		return fmt.Sprintf("%s raises to $%d", taken.Seat, taken.Amount)
	}
}

// heroLine describes the human's applied action for the log.
func heroLine(kind game.ActionKind, amount int) string {
	switch kind {
	case game.Fold:
		return "You fold"
	case game.Check:
		return "You check"
	case game.Call:
		return fmt.Sprintf("You call $%d", amount)
	default:
		return fmt.Sprintf("You raise to $%d", amount)
	}
}

// addLog appends a line to the game log. Test mode captures the line
// instead of touching the viewport.
func (m *Model) addLog(entry string) {
	m.gameLog = append(m.gameLog, entry)
	if m.testMode {
		m.capturedLog = append(m.capturedLog, entry)
		return
	}
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// IsTestMode reports whether the model captures output for tests.
func (m *Model) IsTestMode() bool { return m.testMode }

// CapturedLog returns a copy of the log lines captured in test mode.
func (m *Model) CapturedLog() []string {
	if !m.testMode {
		return nil
	}
	return slices.Clone(m.capturedLog)
}
