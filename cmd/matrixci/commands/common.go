// Package commands holds the kong command implementations for the matrixci
// CLI.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/history"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"matrixci.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run      RunCmd      `cmd:"" help:"Execute the pipeline for a trigger and exit with its result"`
	Plan     PlanCmd     `cmd:"" help:"Show which stages and entries a trigger would select, without running"`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration file"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	History  HistoryCmd  `cmd:"" help:"Show recent recorded runs"`
	Report   ReportCmd   `cmd:"" help:"Render a recorded run as Markdown or HTML"`
	Daemon   DaemonCmd   `cmd:"" help:"Start daemon mode with schedules and the admin API"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig loads and validates the configuration from the root flag.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildPlan converts the configuration and selects a plan for the trigger.
func buildPlan(cfg *config.Config, triggerName string) (pipeline.Plan, error) {
	trigger, err := pipeline.ParseTrigger(triggerName)
	if err != nil {
		return pipeline.Plan{}, err
	}
	pipe, err := cfg.ToPipeline()
	if err != nil {
		return pipeline.Plan{}, err
	}
	return pipe.Select(trigger), nil
}

// openStore opens the history store under the configured data directory.
func openStore(cfg *config.Config) (history.Store, error) {
	if err := os.MkdirAll(cfg.Daemon.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return history.NewSQLiteStore(filepath.Join(cfg.Daemon.DataDir, "history.db"))
}
