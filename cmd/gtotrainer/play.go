package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"gtotrainer/internal/deck"
	"gtotrainer/internal/game"
	"gtotrainer/internal/randutil"
	"gtotrainer/internal/session"
	"gtotrainer/internal/tui"
	"gtotrainer/internal/upi"
)

// PlayCmd plays hands interactively in the terminal.
type PlayCmd struct {
	Hero    string `help:"Your seat" default:"BTN"`
	Villain string `help:"Computer seat" default:"BB"`

	SmallBlind int `help:"Small blind" default:"5"`
	BigBlind   int `help:"Big blind" default:"10"`
	Stack      int `help:"Starting stack" default:"1000"`

	Seed *int64 `help:"Deterministic shuffle seed (optional)"`

	Solver      string        `help:"Solver executable (optional)" type:"path"`
	Tree        string        `help:"Solved tree for the solver" type:"path"`
	ReadTimeout time.Duration `help:"Solver response timeout" default:"10s"`

	// The TUI owns the terminal, so debug logs go to a file.
	LogFile string `help:"Write debug logs to this file" type:"path"`
}

func (c *PlayCmd) Run() error {
	hero, err := game.ParseSeat(c.Hero)
	if err != nil {
		return fmt.Errorf("--hero: %w", err)
	}
	villain, err := game.ParseSeat(c.Villain)
	if err != nil {
		return fmt.Errorf("--villain: %w", err)
	}
	if hero == villain {
		return fmt.Errorf("hero and villain cannot share seat %s", hero)
	}

	logW := io.Discard
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logW = f
	}
	logger := log.NewWithOptions(logW, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           log.DebugLevel,
	})

	rng := randutil.NewFromTime()
	if c.Seed != nil {
		rng = randutil.New(*c.Seed)
	}

	var solver session.Solver
	var treeFlop []deck.Card
	if c.Solver != "" && c.Tree != "" {
		client, err := upi.Open(upi.Config{
			Executable:  c.Solver,
			ReadTimeout: c.ReadTimeout,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("open solver: %w", err)
		}
		if err := client.LoadTree(c.Tree); err != nil {
			_ = client.Close()
			return fmt.Errorf("load tree: %w", err)
		}
		info, err := client.NodeInfo(upi.RootNode)
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("inspect tree root: %w", err)
		}
		if len(info.Board) != 3 {
			_ = client.Close()
			return fmt.Errorf("tree does not root at a flop: board %q", deck.FormatCards(info.Board))
		}
		solver = client
		treeFlop = info.Board
	}

	sess := session.New(session.Config{
		Stakes: game.Stakes{
			SmallBlind:    c.SmallBlind,
			BigBlind:      c.BigBlind,
			StartingStack: c.Stack,
		},
		Solver:   solver,
		TreeFlop: treeFlop,
		Logger:   logger,
		Rand:     rng,
	})
	defer sess.Close()

	return tui.Run(tui.New(tui.Config{
		Session: sess,
		Hero:    hero,
		Villain: villain,
		Logger:  logger,
	}))
}
