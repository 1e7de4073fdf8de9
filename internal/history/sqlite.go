package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/matrixci/internal/runner"
)

// ErrNoRuns is returned when a lookup matches no recorded run.
var ErrNoRuns = errors.New("no recorded runs")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and initializes) a run history database.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		pipeline TEXT NOT NULL,
		trigger_kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_pipeline_trigger ON runs(pipeline, trigger_kind, id);
	CREATE TABLE IF NOT EXISTS entry_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		entry TEXT NOT NULL,
		outcome TEXT NOT NULL,
		failed_phase TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entry_results_run ON entry_results(run_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun persists the run and its entry results in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, report *runner.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, pipeline, trigger_kind, outcome, started_at, finished_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
		report.RunID, report.Pipeline, string(report.Trigger), string(report.Outcome),
		report.StartedAt.Unix(), report.FinishedAt.Unix(), report.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, er := range report.EntryResults() {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO entry_results (run_id, stage, entry, outcome, failed_phase, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
			report.RunID, er.Stage, er.Entry, string(er.Outcome), string(er.FailedPhase), er.Error, er.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert entry result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LastOutcome returns the most recent outcome for the pipeline+trigger pair.
func (s *SQLiteStore) LastOutcome(ctx context.Context, pipeline, trigger string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var outcome string
	err := s.db.QueryRowContext(ctx,
		"SELECT outcome FROM runs WHERE pipeline = ? AND trigger_kind = ? ORDER BY id DESC LIMIT 1",
		pipeline, trigger,
	).Scan(&outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("query last outcome: %w", err)
	}
	return outcome, nil
}

// Recent returns up to limit runs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, pipeline, trigger_kind, outcome, started_at, finished_at, duration_ms FROM runs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Run returns a single run by id.
func (s *SQLiteStore) Run(ctx context.Context, runID string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT run_id, pipeline, trigger_kind, outcome, started_at, finished_at, duration_ms FROM runs WHERE run_id = ?",
		runID,
	)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNoRuns
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("query run: %w", err)
	}
	return rec, nil
}

// EntriesFor returns the entry results of a run in execution order.
func (s *SQLiteStore) EntriesFor(ctx context.Context, runID string) ([]EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, stage, entry, outcome, failed_phase, error, duration_ms FROM entry_results WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entry results: %w", err)
	}
	defer rows.Close()

	var out []EntryRecord
	for rows.Next() {
		var er EntryRecord
		var failedPhase, errMsg sql.NullString
		var durationMS int64
		if err := rows.Scan(&er.RunID, &er.Stage, &er.Entry, &er.Outcome, &failedPhase, &errMsg, &durationMS); err != nil {
			return nil, fmt.Errorf("scan entry result: %w", err)
		}
		er.FailedPhase = failedPhase.String
		er.Error = errMsg.String
		er.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, er)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var started, finished, durationMS int64
	if err := row.Scan(&rec.RunID, &rec.Pipeline, &rec.Trigger, &rec.Outcome, &started, &finished, &durationMS); err != nil {
		return RunRecord{}, err
	}
	rec.StartedAt = time.Unix(started, 0)
	rec.FinishedAt = time.Unix(finished, 0)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
