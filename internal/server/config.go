package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the assembled server configuration.
type Config struct {
	Listen   string
	LogLevel string

	Game    GameConfig
	Solver  SolverConfig
	Archive ArchiveConfig
}

// GameConfig sets the stakes every session plays.
type GameConfig struct {
	SmallBlind    int
	BigBlind      int
	StartingStack int
}

// SolverConfig locates the solver binary and its trees. An empty
// executable runs the service without solver input.
type SolverConfig struct {
	Executable  string
	TreeDir     string
	DefaultTree string
	ReadTimeout time.Duration
}

// ArchiveConfig controls the completed-hand archive.
type ArchiveConfig struct {
	Enabled       bool
	Path          string
	FlushInterval time.Duration
}

// fileConfig mirrors the HCL layout. Blocks are pointers so an absent
// block leaves the defaults alone; durations arrive as strings.
type fileConfig struct {
	Server  *serverBlock  `hcl:"server,block"`
	Game    *gameBlock    `hcl:"game,block"`
	Solver  *solverBlock  `hcl:"solver,block"`
	Archive *archiveBlock `hcl:"archive,block"`
}

type serverBlock struct {
	Listen   string `hcl:"listen,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

type gameBlock struct {
	SmallBlind    int `hcl:"small_blind,optional"`
	BigBlind      int `hcl:"big_blind,optional"`
	StartingStack int `hcl:"starting_stack,optional"`
}

type solverBlock struct {
	Executable  string `hcl:"executable,optional"`
	TreeDir     string `hcl:"tree_dir,optional"`
	DefaultTree string `hcl:"default_tree,optional"`
	ReadTimeout string `hcl:"read_timeout,optional"`
}

type archiveBlock struct {
	Enabled       *bool  `hcl:"enabled,optional"`
	Path          string `hcl:"path,optional"`
	FlushInterval string `hcl:"flush_interval,optional"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Listen:   ":8080",
		LogLevel: "info",
		Game: GameConfig{
			SmallBlind:    5,
			BigBlind:      10,
			StartingStack: 1000,
		},
		Solver: SolverConfig{
			ReadTimeout: 10 * time.Second,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Path:          "gtotrainer.db",
			FlushInterval: 5 * time.Second,
		},
	}
}

// LoadConfig reads an HCL configuration file and overlays it onto the
// defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", path, diags.Error())
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", path, diags.Error())
	}
	if err := cfg.apply(&fc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) apply(fc *fileConfig) error {
	if b := fc.Server; b != nil {
		if b.Listen != "" {
			c.Listen = b.Listen
		}
		if b.LogLevel != "" {
			c.LogLevel = b.LogLevel
		}
	}
	if b := fc.Game; b != nil {
		if b.SmallBlind != 0 {
			c.Game.SmallBlind = b.SmallBlind
		}
		if b.BigBlind != 0 {
			c.Game.BigBlind = b.BigBlind
		}
		if b.StartingStack != 0 {
			c.Game.StartingStack = b.StartingStack
		}
	}
	if b := fc.Solver; b != nil {
		c.Solver.Executable = b.Executable
		c.Solver.TreeDir = b.TreeDir
		c.Solver.DefaultTree = b.DefaultTree
		if b.ReadTimeout != "" {
			d, err := time.ParseDuration(b.ReadTimeout)
			if err != nil {
				return fmt.Errorf("solver read_timeout: %w", err)
			}
			c.Solver.ReadTimeout = d
		}
	}
	if b := fc.Archive; b != nil {
		if b.Enabled != nil {
			c.Archive.Enabled = *b.Enabled
		}
		if b.Path != "" {
			c.Archive.Path = b.Path
		}
		if b.FlushInterval != "" {
			d, err := time.ParseDuration(b.FlushInterval)
			if err != nil {
				return fmt.Errorf("archive flush_interval: %w", err)
			}
			c.Archive.FlushInterval = d
		}
	}
	return nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is empty")
	}
	if c.Game.SmallBlind <= 0 || c.Game.BigBlind <= 0 {
		return fmt.Errorf("blinds must be positive, got %d/%d", c.Game.SmallBlind, c.Game.BigBlind)
	}
	if c.Game.StartingStack < c.Game.BigBlind {
		return fmt.Errorf("starting stack %d cannot cover the big blind %d",
			c.Game.StartingStack, c.Game.BigBlind)
	}
	if c.Solver.ReadTimeout <= 0 {
		return fmt.Errorf("solver read_timeout must be positive")
	}
	if c.Archive.Enabled {
		if c.Archive.Path == "" {
			return fmt.Errorf("archive enabled without a path")
		}
		if c.Archive.FlushInterval <= 0 {
			return fmt.Errorf("archive flush_interval must be positive")
		}
	}
	return nil
}
