package commands

import (
	"context"
	"fmt"
	"time"
)

// HistoryCmd implements the 'history' command: list recent recorded runs.
type HistoryCmd struct {
	Limit int `short:"n" help:"Maximum number of runs to show" default:"20"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}
	for _, r := range runs {
		id := r.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Printf("%s  %-8s %-12s %-15s %s (%s)\n",
			r.FinishedAt.Format("2006-01-02 15:04:05"),
			id, r.Trigger, r.Outcome, r.Pipeline, r.Duration.Round(time.Millisecond))
	}
	return nil
}
