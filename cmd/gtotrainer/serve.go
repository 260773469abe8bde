package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"gtotrainer/internal/archive"
	"gtotrainer/internal/game"
	"gtotrainer/internal/server"
	"gtotrainer/internal/session"
	"gtotrainer/internal/upi"
)

// ServeCmd runs the HTTP service.
type ServeCmd struct {
	Config string `short:"c" help:"Path to HCL config file" type:"path"`
	Listen string `help:"Listen address override, e.g. :8080"`
	Debug  bool   `help:"Enable debug logging"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}

	level := cfg.LogLevel
	if c.Debug {
		level = "debug"
	}
	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	managerCfg := session.ManagerConfig{
		Stakes: game.Stakes{
			SmallBlind:    cfg.Game.SmallBlind,
			BigBlind:      cfg.Game.BigBlind,
			StartingStack: cfg.Game.StartingStack,
		},
		TreeDir:     cfg.Solver.TreeDir,
		DefaultTree: cfg.Solver.DefaultTree,
		Logger:      logger,
	}

	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()

		recorder := archive.NewRecorder(store, archive.RecorderConfig{
			FlushInterval: cfg.Archive.FlushInterval,
			Logger:        logger,
		})
		defer recorder.Stop()
		managerCfg.Recorder = recorder
		logger.Info("hand archive enabled", "path", cfg.Archive.Path)
	}

	if cfg.Solver.Executable != "" {
		managerCfg.Factory = solverFactory(cfg.Solver, logger)
		logger.Info("solver configured",
			"executable", cfg.Solver.Executable,
			"tree_dir", cfg.Solver.TreeDir,
			"default_tree", cfg.Solver.DefaultTree)
	} else {
		logger.Info("no solver configured, opponents play the fallback line")
	}

	srv := server.New(cfg, logger, session.NewManager(managerCfg))
	return srv.Start(ctx)
}

// solverFactory opens one solver process per session and loads the
// requested tree into it.
func solverFactory(cfg server.SolverConfig, logger *log.Logger) session.SolverFactory {
	return func(treePath string) (session.Solver, error) {
		client, err := upi.Open(upi.Config{
			Executable:  cfg.Executable,
			ReadTimeout: cfg.ReadTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		if err := client.LoadTree(treePath); err != nil {
			_ = client.Close()
			return nil, err
		}
		return client, nil
	}
}
