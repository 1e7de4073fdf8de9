package daemon

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/daemon/events"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/runner"
)

// busObserver bridges runner lifecycle callbacks onto the daemon event bus.
// Publishing is bounded so a slow subscriber can delay but never wedge a run.
type busObserver struct {
	bus     *events.Bus
	timeout time.Duration
}

func newBusObserver(bus *events.Bus) *busObserver {
	return &busObserver{bus: bus, timeout: 5 * time.Second}
}

func (o *busObserver) publish(evt any) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := o.bus.Publish(ctx, evt); err != nil {
		slog.Debug("Run event not delivered", logfields.Error(err))
	}
}

func (o *busObserver) RunStarted(runID string, plan pipeline.Plan) {
	o.publish(events.RunStarted{
		RunID:     runID,
		Pipeline:  plan.Pipeline.Name,
		Trigger:   string(plan.Trigger),
		Stages:    plan.StageNames(),
		StartedAt: time.Now(),
	})
}

func (o *busObserver) StageStarted(runID string, stage string) {
	o.publish(events.StageStarted{RunID: runID, Stage: stage})
}

func (o *busObserver) EntryFinished(runID string, result runner.EntryResult) {
	o.publish(events.EntryFinished{RunID: runID, Result: result})
}

func (o *busObserver) RunFinished(report *runner.Report) {
	o.publish(events.RunFinished{RunID: report.RunID, Report: report})
}
