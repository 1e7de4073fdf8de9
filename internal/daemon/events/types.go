// Package events provides the daemon's in-process event bus and the run
// lifecycle event types published on it.
package events

import (
	"time"

	"git.home.luguber.info/inful/matrixci/internal/runner"
)

// RunEvent is implemented by all run lifecycle events, so subscribers can
// receive the whole stream with a single interface subscription.
type RunEvent interface {
	EventRunID() string
}

// RunQueued is published when a run job is accepted onto the queue.
type RunQueued struct {
	JobID    string    `json:"job_id"`
	Pipeline string    `json:"pipeline"`
	Trigger  string    `json:"trigger"`
	QueuedAt time.Time `json:"queued_at"`
}

func (e RunQueued) EventRunID() string { return e.JobID }

// RunStarted is published when the runner begins executing a plan.
type RunStarted struct {
	RunID     string    `json:"run_id"`
	Pipeline  string    `json:"pipeline"`
	Trigger   string    `json:"trigger"`
	Stages    []string  `json:"stages"`
	StartedAt time.Time `json:"started_at"`
}

func (e RunStarted) EventRunID() string { return e.RunID }

// StageStarted is published when a stage's entries begin executing.
type StageStarted struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
}

func (e StageStarted) EventRunID() string { return e.RunID }

// EntryFinished is published for each completed matrix entry.
type EntryFinished struct {
	RunID  string             `json:"run_id"`
	Result runner.EntryResult `json:"result"`
}

func (e EntryFinished) EventRunID() string { return e.RunID }

// RunFinished is published when a run completes, with the full report.
type RunFinished struct {
	RunID  string         `json:"run_id"`
	Report *runner.Report `json:"report"`
}

func (e RunFinished) EventRunID() string { return e.RunID }

// ConfigReloaded is published after the daemon applies a new configuration.
type ConfigReloaded struct {
	Pipeline   string    `json:"pipeline"`
	ReloadedAt time.Time `json:"reloaded_at"`
}
