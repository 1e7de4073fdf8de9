package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/matrixci/internal/gitsource"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/notify"
	"git.home.luguber.info/inful/matrixci/internal/report"
	"git.home.luguber.info/inful/matrixci/internal/runner"
	"git.home.luguber.info/inful/matrixci/internal/workspace"
)

// RunCmd implements the 'run' command: one full pipeline run for a trigger.
type RunCmd struct {
	Trigger  string `short:"t" help:"Trigger kind (push, pull_request, cron)" default:"push"`
	LogDir   string `help:"Write per-entry logs to this directory instead of stdout"`
	NoRecord bool   `help:"Skip recording the run in the history store"`
	NoNotify bool   `help:"Skip webhook notifications"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	plan, err := buildPlan(cfg, r.Trigger)
	if err != nil {
		return err
	}
	if plan.IsEmpty() {
		fmt.Printf("No entries selected for trigger %q; nothing to run.\n", r.Trigger)
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	workDir := ""
	if cfg.Repository != nil {
		manager := workspace.NewManager("")
		if err := manager.Create(); err != nil {
			return err
		}
		defer func() {
			if err := manager.Cleanup(); err != nil {
				slog.Warn("Failed to cleanup workspace", logfields.Error(err))
			}
		}()

		checkout, err := gitsource.NewClient(manager.GetPath()).Clone(ctx, cfg.Repository)
		if err != nil {
			return err
		}
		workDir = checkout
	}

	run := runner.New().WithWorkDir(workDir)
	if r.LogDir != "" {
		run = run.WithOutputDir(r.LogDir)
	}

	result, err := run.Run(ctx, plan)
	if err != nil {
		return err
	}

	// Notify before recording so the change policy compares against the
	// previous run, then persist this one.
	if !r.NoRecord || !r.NoNotify {
		store, err := openStore(cfg)
		if err != nil {
			// Without history the change policy degrades to always; webhooks
			// still fire, only recording is skipped.
			slog.Warn("History store unavailable", logfields.Error(err))
			store = nil
		} else {
			defer func() { _ = store.Close() }()
		}

		if !r.NoNotify {
			onSuccess, onFailure := cfg.WebhookPolicies()
			notifier := notify.New(cfg.Notifications.Webhooks.URLs, onSuccess, onFailure)
			if store != nil {
				notifier = notifier.WithOutcomeSource(store)
			}
			if err := notifier.Notify(ctx, result); err != nil {
				slog.Warn("Notification delivery failed", logfields.Error(err))
			}
		}
		if !r.NoRecord && store != nil {
			if err := store.RecordRun(ctx, result); err != nil {
				slog.Warn("Failed to record run", logfields.Error(err))
			}
		}
	}

	fmt.Print(report.Markdown(result))

	if result.Failed() {
		return fmt.Errorf("run %s: %s", result.RunID, result.Outcome)
	}
	return nil
}
