package history

import (
	"context"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/runner"
)

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	RunID      string        `json:"run_id"`
	Pipeline   string        `json:"pipeline"`
	Trigger    string        `json:"trigger"`
	Outcome    string        `json:"outcome"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// EntryRecord is one persisted matrix entry result.
type EntryRecord struct {
	RunID       string        `json:"run_id"`
	Stage       string        `json:"stage"`
	Entry       string        `json:"entry"`
	Outcome     string        `json:"outcome"`
	FailedPhase string        `json:"failed_phase,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Store persists run results and answers the queries the notifier, the
// daemon API and the history/report commands need.
type Store interface {
	// RecordRun persists a finished run report with its entry results.
	RecordRun(ctx context.Context, report *runner.Report) error

	// LastOutcome returns the outcome of the most recent recorded run for
	// the pipeline+trigger pair, or ErrNoRuns when none exists.
	LastOutcome(ctx context.Context, pipeline, trigger string) (string, error)

	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]RunRecord, error)

	// Run returns a single run by id, or ErrNoRuns.
	Run(ctx context.Context, runID string) (RunRecord, error)

	// EntriesFor returns the entry results of a run in execution order.
	EntriesFor(ctx context.Context, runID string) ([]EntryRecord, error)

	// Close closes the store and releases resources.
	Close() error
}
