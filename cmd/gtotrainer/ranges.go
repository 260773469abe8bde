package main

import (
	"bytes"
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gtotrainer/internal/deck"
	"gtotrainer/internal/fileutil"
	"gtotrainer/internal/upi"
)

// RangesCmd dumps the root-node range of one or both sides from a
// solved tree into per-side text files.
type RangesCmd struct {
	Solver string `arg:"" help:"Solver executable" type:"path"`
	Tree   string `arg:"" help:"Solved tree file" type:"path"`

	Side        string        `help:"OOP, IP or both" default:"both"`
	OutDir      string        `short:"o" help:"Output directory" default:"." type:"path"`
	ReadTimeout time.Duration `help:"Solver response timeout" default:"10s"`
	Debug       bool          `help:"Enable debug logging"`
}

func (c *RangesCmd) Run() error {
	level := "info"
	if c.Debug {
		level = "debug"
	}
	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	sides, err := parseSides(c.Side)
	if err != nil {
		return err
	}

	client, err := upi.Open(upi.Config{
		Executable:  c.Solver,
		ReadTimeout: c.ReadTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("open solver: %w", err)
	}
	defer client.Close()

	if err := client.LoadTree(c.Tree); err != nil {
		return fmt.Errorf("load tree: %w", err)
	}
	info, err := client.NodeInfo(upi.RootNode)
	if err != nil {
		return fmt.Errorf("inspect tree root: %w", err)
	}
	logger.Info("tree loaded", "tree", c.Tree, "board", deck.FormatCards(info.Board))

	for _, side := range sides {
		weights, err := client.Range(side, upi.RootNode)
		if err != nil {
			return fmt.Errorf("%s range: %w", side, err)
		}

		data, total, err := renderRangeDump(side, c.Tree, info.Board, client.HandOrder(), weights)
		if err != nil {
			return err
		}

		path := filepath.Join(c.OutDir, strings.ToLower(side.String())+"_hands.txt")
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		logger.Info("wrote range", "side", side, "hands", total, "path", path)
	}
	return nil
}

// parseSides expands "both" and validates a single side label.
func parseSides(s string) ([]upi.Side, error) {
	if strings.EqualFold(strings.TrimSpace(s), "both") {
		return []upi.Side{upi.OOP, upi.IP}, nil
	}
	side, err := upi.ParseSide(s)
	if err != nil {
		return nil, err
	}
	return []upi.Side{side}, nil
}

// renderRangeDump formats one side's range: commented header, then
// hand,frequency rows sorted by frequency descending. Zero-weight and
// board-blocked combinations are dropped.
func renderRangeDump(side upi.Side, tree string, board []deck.Card, order upi.HandOrder, weights []float64) ([]byte, int, error) {
	if order.Len() != len(weights) {
		return nil, 0, fmt.Errorf("%d weights for %d combos", len(weights), order.Len())
	}

	type handFreq struct {
		name   string
		weight float64
	}
	hands := make([]handFreq, 0, len(weights))
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		name := order.Name(i)
		a, b, err := upi.ParseCombo(name)
		if err != nil {
			return nil, 0, fmt.Errorf("combo %q: %w", name, err)
		}
		if slices.Contains(board, a) || slices.Contains(board, b) {
			continue
		}
		hands = append(hands, handFreq{name: name, weight: w})
	}
	slices.SortStableFunc(hands, func(x, y handFreq) int {
		return cmp.Compare(y.weight, x.weight)
	})

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s Hands from: %s\n", side, tree)
	fmt.Fprintf(&buf, "# Board: %s\n", deck.FormatCards(board))
	fmt.Fprintf(&buf, "# Total hands: %d\n", len(hands))
	buf.WriteString("#\n")
	buf.WriteString("# Hand, Frequency\n")
	for _, h := range hands {
		fmt.Fprintf(&buf, "%s,%.6f\n", h.name, h.weight)
	}
	return buf.Bytes(), len(hands), nil
}
