package commands

import (
	"context"
	"fmt"
	"os"

	"git.home.luguber.info/inful/matrixci/internal/report"
)

// ReportCmd implements the 'report' command: render a recorded run.
type ReportCmd struct {
	RunID string `arg:"" optional:"" help:"Run id to render (defaults to the most recent run)"`
	HTML  string `help:"Also write an HTML report to this file"`
}

func (r *ReportCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	runID := r.RunID
	if runID == "" {
		recent, err := store.Recent(ctx, 1)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			fmt.Println("No recorded runs.")
			return nil
		}
		runID = recent[0].RunID
	}

	run, err := store.Run(ctx, runID)
	if err != nil {
		return err
	}
	entries, err := store.EntriesFor(ctx, runID)
	if err != nil {
		return err
	}

	md := report.RecordMarkdown(run, entries)
	fmt.Print(md)

	if r.HTML != "" {
		page, err := report.HTML(run.Pipeline, md)
		if err != nil {
			return err
		}
		if err := os.WriteFile(r.HTML, page, 0o644); err != nil {
			return fmt.Errorf("write HTML report: %w", err)
		}
		fmt.Printf("\nHTML report written to %s\n", r.HTML)
	}
	return nil
}
