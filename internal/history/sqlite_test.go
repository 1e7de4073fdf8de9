package history

import (
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/runner"
)

func sampleReport(runID, outcome string) *runner.Report {
	started := time.Now().Add(-time.Minute)
	return &runner.Report{
		RunID:      runID,
		Pipeline:   "sunray",
		Trigger:    pipeline.TriggerPush,
		Outcome:    runner.Outcome(outcome),
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Duration:   42 * time.Second,
		Stages: []runner.StageResult{
			{
				Stage:   "Initial tests",
				Outcome: runner.Outcome(outcome),
				Entries: []runner.EntryResult{
					{Stage: "Initial tests", Entry: "py311", Outcome: runner.Outcome(outcome), Duration: 40 * time.Second},
				},
			},
		},
	}
}

func TestRecordAndQueryRun(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	if err := store.RecordRun(ctx, sampleReport("run-1", "success")); err != nil {
		t.Fatalf("record run: %v", err)
	}

	rec, err := store.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if rec.Pipeline != "sunray" || rec.Trigger != "push" || rec.Outcome != "success" {
		t.Fatalf("unexpected run record: %+v", rec)
	}
	if rec.Duration != 42*time.Second {
		t.Fatalf("expected 42s duration, got %v", rec.Duration)
	}

	entries, err := store.EntriesFor(ctx, "run-1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Entry != "py311" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestLastOutcomeTracksNewestRun(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	if _, err := store.LastOutcome(ctx, "sunray", "push"); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}

	if err := store.RecordRun(ctx, sampleReport("run-1", "failed")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordRun(ctx, sampleReport("run-2", "success")); err != nil {
		t.Fatalf("record: %v", err)
	}

	outcome, err := store.LastOutcome(ctx, "sunray", "push")
	if err != nil {
		t.Fatalf("last outcome: %v", err)
	}
	if outcome != "success" {
		t.Fatalf("expected success, got %s", outcome)
	}

	// Different trigger has no history.
	if _, err := store.LastOutcome(ctx, "sunray", "cron"); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns for cron, got %v", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if err := store.RecordRun(ctx, sampleReport(id, "success")); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-3" || runs[1].RunID != "run-2" {
		t.Fatalf("expected newest first, got %+v", runs)
	}
}

func TestUnknownRun(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := store.Run(t.Context(), "nope"); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/history.db"
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.RecordRun(t.Context(), sampleReport("run-1", "failed")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	outcome, err := reopened.LastOutcome(t.Context(), "sunray", "push")
	if err != nil {
		t.Fatalf("last outcome: %v", err)
	}
	if outcome != "failed" {
		t.Fatalf("expected failed, got %s", outcome)
	}
}
