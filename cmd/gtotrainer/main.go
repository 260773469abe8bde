package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`

	Serve      ServeCmd   `cmd:"" help:"Run the training HTTP service"`
	Play       PlayCmd    `cmd:"" help:"Play a training session in the terminal"`
	Ranges     RangesCmd  `cmd:"" help:"Dump root-node ranges from a solved tree"`
	VersionCmd VersionCmd `cmd:"" name:"version" help:"Print the version"`
}

func main() {
	// Optional .env for solver paths and the like.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gtotrainer"),
		kong.Description("Heads-up no-limit hold'em trainer backed by a GTO solver"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// newLogger builds the process logger: human-readable text on a
// terminal, logfmt when stderr is redirected.
func newLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	opts := log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           lvl,
	}
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		opts.Formatter = log.LogfmtFormatter
	}
	return log.NewWithOptions(os.Stderr, opts), nil
}
