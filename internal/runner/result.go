package runner

import (
	"time"

	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// Outcome is the aggregate status of an entry, a stage or the whole run.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeFailed         Outcome = "failed"
	OutcomeAllowedFailure Outcome = "allowed_failure"
	OutcomeCanceled       Outcome = "canceled"
	OutcomeSkipped        Outcome = "skipped"
)

// EntryResult records one matrix entry's execution.
type EntryResult struct {
	Stage       string             `json:"stage"`
	Entry       string             `json:"entry"`
	Runtime     string             `json:"runtime,omitempty"`
	Outcome     Outcome            `json:"outcome"`
	FailedPhase pipeline.PhaseName `json:"failed_phase,omitempty"`
	Err         *EntryError        `json:"-"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	Duration    time.Duration      `json:"duration"`
}

// Failed reports whether the entry result blocks the stage.
func (er EntryResult) Failed() bool { return er.Outcome == OutcomeFailed }

// StageResult aggregates the entries of one executed stage.
type StageResult struct {
	Stage    string        `json:"stage"`
	Outcome  Outcome       `json:"outcome"`
	Entries  []EntryResult `json:"entries"`
	Duration time.Duration `json:"duration"`
}

// Report is the full record of one pipeline run.
type Report struct {
	RunID      string           `json:"run_id"`
	Pipeline   string           `json:"pipeline"`
	Trigger    pipeline.Trigger `json:"trigger"`
	Outcome    Outcome          `json:"outcome"`
	Stages     []StageResult    `json:"stages"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Duration   time.Duration    `json:"duration"`
}

// Failed reports whether any non-allowed-failure entry failed (or the run was
// canceled before completion).
func (r *Report) Failed() bool {
	return r.Outcome == OutcomeFailed || r.Outcome == OutcomeCanceled
}

// ExitCode implements the process exit contract: non-zero iff any
// non-allowed-failure entry's script (or setup) phase failed, or the run was
// canceled.
func (r *Report) ExitCode() int {
	if r.Failed() {
		return 1
	}
	return 0
}

// EntryResults flattens all stage entries in execution order.
func (r *Report) EntryResults() []EntryResult {
	var out []EntryResult
	for _, s := range r.Stages {
		out = append(out, s.Entries...)
	}
	return out
}

// Counts returns per-outcome entry totals, used by reports and notifications.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, e := range r.EntryResults() {
		counts[e.Outcome]++
	}
	return counts
}

// stageOutcome folds entry results into a stage outcome. A stage fails when
// any blocking entry failed; cancellations dominate otherwise.
func stageOutcome(entries []EntryResult) Outcome {
	out := OutcomeSuccess
	for _, e := range entries {
		switch e.Outcome {
		case OutcomeFailed:
			return OutcomeFailed
		case OutcomeCanceled:
			out = OutcomeCanceled
		}
	}
	return out
}
