package commands

import (
	"fmt"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct{}

func (v *ValidateCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if _, err := cfg.ToPipeline(); err != nil {
		return err
	}

	fmt.Printf("Configuration %s is valid\n", root.Config)
	fmt.Printf("  pipeline:  %s\n", cfg.Pipeline)
	fmt.Printf("  stages:    %d\n", len(cfg.Stages))
	fmt.Printf("  entries:   %d\n", len(cfg.Matrix.Include))
	fmt.Printf("  schedules: %d\n", len(cfg.Daemon.Schedules))
	return nil
}
