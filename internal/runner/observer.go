package runner

import "git.home.luguber.info/inful/matrixci/internal/pipeline"

// Observer receives run lifecycle callbacks. The daemon bridges these onto
// its event bus (and NATS when configured); one-shot runs use the noop.
// Implementations must be safe for concurrent EntryFinished calls.
type Observer interface {
	RunStarted(runID string, plan pipeline.Plan)
	StageStarted(runID string, stage string)
	EntryFinished(runID string, result EntryResult)
	RunFinished(report *Report)
}

// NoopObserver ignores all callbacks.
type NoopObserver struct{}

func (NoopObserver) RunStarted(string, pipeline.Plan)  {}
func (NoopObserver) StageStarted(string, string)       {}
func (NoopObserver) EntryFinished(string, EntryResult) {}
func (NoopObserver) RunFinished(*Report)               {}
