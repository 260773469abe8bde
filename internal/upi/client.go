// Package upi drives an external GTO solver over its line-oriented
// command protocol: commands go to the process's stdin, responses come
// back terminated by a negotiated end marker. The package owns process
// lifecycle, response framing and parsing; interpretation of ranges
// and strategies lives with the callers.
package upi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"gtotrainer/internal/deck"
)

// ErrUnavailable wraps every failure talking to the solver. Callers
// treat it as recoverable and drop to solver-less behaviour.
var ErrUnavailable = errors.New("solver unavailable")

const (
	endMarker          = "END"
	bannerLineCount    = 4
	defaultReadTimeout = 10 * time.Second
	exitGracePeriod    = 5 * time.Second
)

// Side identifies one side of the heads-up pair in solver queries.
type Side uint8

const (
	OOP Side = iota
	IP
)

func (s Side) String() string {
	if s == IP {
		return "IP"
	}
	return "OOP"
}

// ParseSide maps a side label (case-insensitive) to its Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OOP":
		return OOP, nil
	case "IP":
		return IP, nil
	default:
		return OOP, fmt.Errorf("unknown side %q", s)
	}
}

// NodeInfo describes one node of the loaded tree.
type NodeInfo struct {
	ID       string
	Type     string
	Board    []deck.Card
	Pot      int
	Children int
	Flags    []string
}

// Child is one branch of a decision node, in the same order the
// strategy rows come back.
type Child struct {
	Token ActionToken
	Node  NodeInfo
}

// Config describes how to launch and talk to the solver.
type Config struct {
	// Executable is the path to the solver binary. The process runs
	// with its working directory set to the executable's directory so
	// it can find its licence and data files.
	Executable string

	// ReadTimeout bounds each response line read. Zero means 10s.
	ReadTimeout time.Duration

	// Clock drives the read watchdog; tests inject a mock.
	Clock quartz.Clock

	Logger *log.Logger
}

// Client owns a solver process and serializes command exchanges over
// its pipes. Methods are safe for concurrent use; underneath, queries
// run strictly one at a time.
type Client struct {
	logger      *log.Logger
	clock       quartz.Clock
	readTimeout time.Duration

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.Reader
	lines     chan string
	stopRead  chan struct{}
	broken    bool
	closed    bool
	handOrder HandOrder
}

// Open launches the solver and performs the startup handshake:
// discard the banner, negotiate the end marker, probe readiness and
// fetch the canonical combination order.
func Open(cfg Config) (*Client, error) {
	if cfg.Executable == "" {
		return nil, fmt.Errorf("%w: no executable configured", ErrUnavailable)
	}

	cmd := exec.Command(cfg.Executable)
	cmd.Dir = filepath.Dir(cfg.Executable)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrUnavailable, err)
	}

	// The solver writes diagnostics to stderr mid-response; merging
	// the streams keeps them in line order.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: output pipe: %v", ErrUnavailable, err)
	}
	cmd.Stdout = outW
	cmd.Stderr = outW

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("%w: start %s: %v", ErrUnavailable, cfg.Executable, err)
	}
	outW.Close()

	c := newClient(cfg, stdin, outR, cmd)
	if err := c.handshake(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// newClient wires a client over explicit pipes. Open uses it with a
// real process; tests use it with scripted ones.
func newClient(cfg Config, stdin io.WriteCloser, stdout io.Reader, cmd *exec.Cmd) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}

	c := &Client{
		logger:      logger.WithPrefix("upi"),
		clock:       clock,
		readTimeout: timeout,
		cmd:         cmd,
		stdin:       stdin,
		stdout:      stdout,
		lines:       make(chan string, 64),
		stopRead:    make(chan struct{}),
	}
	go c.readLoop(stdout)
	return c
}

func (c *Client) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	// Range and strategy responses put 1,326 floats on a single line.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		select {
		case c.lines <- strings.TrimRight(scanner.Text(), "\r"):
		case <-c.stopRead:
			return
		}
	}
	close(c.lines)
}

// handshake consumes the startup banner and negotiates the protocol.
func (c *Client) handshake() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for range bannerLineCount {
		if _, err := c.readLine(); err != nil {
			return err
		}
	}

	if _, err := c.queryLocked("set_end_string " + endMarker); err != nil {
		return err
	}

	ready, err := c.queryLocked("is_ready")
	if err != nil {
		return err
	}
	if !anyContainsOK(ready) {
		c.broken = true
		return fmt.Errorf("%w: is_ready answered %q", ErrUnavailable, strings.Join(ready, " "))
	}

	lines, err := c.queryLocked("show_hand_order")
	if err != nil {
		return err
	}
	order, err := NewHandOrder(strings.Fields(strings.Join(lines, " ")))
	if err != nil {
		c.broken = true
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.handOrder = order

	c.logger.Debug("solver ready", "combos", order.Len())
	return nil
}

// Close asks the process to exit, then kills it if it lingers past the
// grace period. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.stopRead)
	c.mu.Unlock()

	_, _ = io.WriteString(c.stdin, "exit\n")
	_ = c.stdin.Close()

	// Closing our end of the output pipe also unblocks a read loop
	// stuck mid-scan.
	defer func() {
		if rc, ok := c.stdout.(io.Closer); ok {
			_ = rc.Close()
		}
	}()

	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}

	exited := make(chan error, 1)
	go func() { exited <- c.cmd.Wait() }()

	timedOut := make(chan struct{})
	timer := c.clock.AfterFunc(exitGracePeriod, func() { close(timedOut) })
	defer timer.Stop()

	select {
	case <-exited:
	case <-timedOut:
		c.logger.Warn("solver ignored exit, killing", "pid", c.cmd.Process.Pid)
		_ = c.cmd.Process.Kill()
		<-exited
	}
	return nil
}

// HandOrder returns the combination ordering fetched at startup.
func (c *Client) HandOrder() HandOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handOrder
}

// LoadTree loads a solved tree file into the solver.
func (c *Client) LoadTree(path string) error {
	lines, err := c.query("load_tree " + path)
	if err != nil {
		return err
	}
	if !anyContainsOK(lines) {
		return fmt.Errorf("%w: load_tree %s refused: %s", ErrUnavailable, path, strings.Join(lines, " "))
	}
	return nil
}

// NodeInfo describes the given tree node.
func (c *Client) NodeInfo(node string) (NodeInfo, error) {
	lines, err := c.query("show_node " + node)
	if err != nil {
		return NodeInfo{}, err
	}
	info, err := parseNodeInfo(lines)
	if err != nil {
		return NodeInfo{}, fmt.Errorf("%w: show_node %s: %v", ErrUnavailable, node, err)
	}
	return info, nil
}

// Range returns side's 1,326 combination weights at node, in canonical
// hand order.
func (c *Client) Range(side Side, node string) ([]float64, error) {
	lines, err := c.query(fmt.Sprintf("show_range %s %s", side, node))
	if err != nil {
		return nil, err
	}
	vec, err := parseFloatVector(lines, ComboCount)
	if err != nil {
		return nil, fmt.Errorf("%w: show_range %s %s: %v", ErrUnavailable, side, node, err)
	}
	return vec, nil
}

// Children lists node's child nodes in tree order, the order Strategy
// emits its rows.
func (c *Client) Children(node string) ([]Child, error) {
	lines, err := c.query("show_children " + node)
	if err != nil {
		return nil, err
	}
	children, err := parseChildren(lines)
	if err != nil {
		return nil, fmt.Errorf("%w: show_children %s: %v", ErrUnavailable, node, err)
	}
	return children, nil
}

// Strategy returns one probability row per child action at node, each
// row holding 1,326 per-combination probabilities.
func (c *Client) Strategy(node string) ([][]float64, error) {
	lines, err := c.query("show_strategy " + node)
	if err != nil {
		return nil, err
	}
	rows := make([][]float64, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, perr := parseFloatVector([]string{line}, ComboCount)
		if perr != nil {
			return nil, fmt.Errorf("%w: show_strategy %s: %v", ErrUnavailable, node, perr)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CategoryNames returns the solver's named hand categories, indexed by
// the values Categories reports.
func (c *Client) CategoryNames() ([]string, error) {
	lines, err := c.query("show_category_names")
	if err != nil {
		return nil, err
	}
	names := strings.Fields(strings.Join(lines, " "))
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: show_category_names: empty response", ErrUnavailable)
	}
	return names, nil
}

// Categories returns each combination's category index on the given
// board, described as space-separated card notation.
func (c *Client) Categories(board string) ([]int, error) {
	lines, err := c.query("show_categories " + board)
	if err != nil {
		return nil, err
	}
	vec, err := parseIntVector(lines, ComboCount)
	if err != nil {
		return nil, fmt.Errorf("%w: show_categories %s: %v", ErrUnavailable, board, err)
	}
	return vec, nil
}

// query sends one command and collects response lines up to the end
// marker.
func (c *Client) query(command string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryLocked(command)
}

func (c *Client) queryLocked(command string) ([]string, error) {
	if c.closed {
		return nil, fmt.Errorf("%w: client closed", ErrUnavailable)
	}
	if c.broken {
		return nil, fmt.Errorf("%w: previous exchange failed", ErrUnavailable)
	}

	if _, err := io.WriteString(c.stdin, command+"\n"); err != nil {
		c.broken = true
		return nil, fmt.Errorf("%w: write command: %v", ErrUnavailable, err)
	}

	var lines []string
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if line == endMarker {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// readLine blocks for the next response line, bounded by the read
// watchdog. A timeout or process exit marks the client broken so later
// queries fail fast instead of desynchronizing the stream.
func (c *Client) readLine() (string, error) {
	timedOut := make(chan struct{})
	timer := c.clock.AfterFunc(c.readTimeout, func() { close(timedOut) })
	defer timer.Stop()

	select {
	case line, ok := <-c.lines:
		if !ok {
			c.broken = true
			return "", fmt.Errorf("%w: process closed its output", ErrUnavailable)
		}
		return line, nil
	case <-timedOut:
		c.broken = true
		return "", fmt.Errorf("%w: no response within %s", ErrUnavailable, c.readTimeout)
	}
}

// parseNodeInfo reads the show_node shape: node id, node type, board,
// an investment line whose final integer is the pot, a child count and
// an optional flags line.
func parseNodeInfo(lines []string) (NodeInfo, error) {
	if len(lines) < 4 {
		return NodeInfo{}, fmt.Errorf("node info has %d lines, want at least 4", len(lines))
	}
	info := NodeInfo{
		ID:   strings.TrimSpace(lines[0]),
		Type: strings.TrimSpace(lines[1]),
	}

	board, err := deck.ParseCards(strings.TrimSpace(lines[2]))
	if err != nil {
		return NodeInfo{}, fmt.Errorf("board: %v", err)
	}
	info.Board = board

	fields := strings.Fields(lines[3])
	if len(fields) == 0 {
		return NodeInfo{}, fmt.Errorf("empty pot line")
	}
	pot, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return NodeInfo{}, fmt.Errorf("pot: %v", err)
	}
	info.Pot = pot

	if len(lines) >= 5 {
		if fields := strings.Fields(lines[4]); len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				info.Children = n
			}
		}
	}
	if len(lines) >= 6 {
		info.Flags = strings.Fields(strings.TrimPrefix(strings.TrimSpace(lines[5]), "flags:"))
	}
	return info, nil
}

// parseChildren splits a show_children response into "child N:" blocks,
// each carrying the same lines show_node prints.
func parseChildren(lines []string) ([]Child, error) {
	var children []Child
	var block []string

	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		info, err := parseNodeInfo(block)
		if err != nil {
			return err
		}
		token, err := ParseActionToken(LastToken(info.ID))
		if err != nil {
			return err
		}
		children = append(children, Child{Token: token, Node: info})
		block = block[:0]
		return nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "child ") && strings.HasSuffix(trimmed, ":") {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, line)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return children, nil
}

func parseFloatVector(lines []string, want int) ([]float64, error) {
	vec := make([]float64, 0, want)
	for _, line := range lines {
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("non-numeric value %q", field)
			}
			vec = append(vec, v)
		}
	}
	if len(vec) != want {
		return nil, fmt.Errorf("got %d values, want %d", len(vec), want)
	}
	return vec, nil
}

func parseIntVector(lines []string, want int) ([]int, error) {
	vec := make([]int, 0, want)
	for _, line := range lines {
		for _, field := range strings.Fields(line) {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("non-integer value %q", field)
			}
			vec = append(vec, v)
		}
	}
	if len(vec) != want {
		return nil, fmt.Errorf("got %d values, want %d", len(vec), want)
	}
	return vec, nil
}

func anyContainsOK(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), "ok") {
			return true
		}
	}
	return false
}
