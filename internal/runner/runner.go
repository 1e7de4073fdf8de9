package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// errFastFinish signals the stage errgroup to cancel in-flight siblings. It
// never escapes Run; results carry the real failure.
var errFastFinish = fmt.Errorf("fast finish")

// Runner executes pipeline plans. Construct with New and the With* options;
// the zero dependencies are a real shell executor, noop metrics and a noop
// observer, so a bare New().Run() works for one-shot CLI use.
type Runner struct {
	exec      CommandRunner
	recorder  metrics.Recorder
	observer  Observer
	workDir   string
	output    io.Writer
	outputDir string
}

// New returns a Runner with production defaults.
func New() *Runner {
	return &Runner{
		exec:     ShellRunner{},
		recorder: metrics.NoopRecorder{},
		observer: NoopObserver{},
		output:   os.Stdout,
	}
}

// WithCommandRunner injects a command executor (tests use fakes).
func (r *Runner) WithCommandRunner(exec CommandRunner) *Runner {
	r.exec = exec
	return r
}

// WithRecorder injects a metrics recorder.
func (r *Runner) WithRecorder(rec metrics.Recorder) *Runner {
	if rec != nil {
		r.recorder = rec
	}
	return r
}

// WithObserver injects a lifecycle observer.
func (r *Runner) WithObserver(obs Observer) *Runner {
	if obs != nil {
		r.observer = obs
	}
	return r
}

// WithWorkDir sets the directory commands run in (e.g. a fresh clone).
func (r *Runner) WithWorkDir(dir string) *Runner {
	r.workDir = dir
	return r
}

// WithOutput redirects combined command output (default os.Stdout).
func (r *Runner) WithOutput(w io.Writer) *Runner {
	if w != nil {
		r.output = w
	}
	return r
}

// WithOutputDir writes per-entry log files (<dir>/<entry>.log) instead of the
// shared output writer.
func (r *Runner) WithOutputDir(dir string) *Runner {
	r.outputDir = dir
	return r
}

// Run executes the plan stage by stage. Entries within a stage run
// concurrently; a stage does not begin until the previous stage's blocking
// entries finished. With fast_finish enabled, the first blocking failure in a
// stage cancels that stage's in-flight entries. A blocking stage failure
// halts subsequent stages (recorded as skipped).
//
// Run itself fails only on structural problems (nil plan pipeline); execution
// failures are reported through the returned Report.
func (r *Runner) Run(ctx context.Context, plan pipeline.Plan) (*Report, error) {
	if plan.Pipeline == nil {
		return nil, fmt.Errorf("run: plan has no pipeline")
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Pipeline:  plan.Pipeline.Name,
		Trigger:   plan.Trigger,
		StartedAt: time.Now(),
	}
	log := slog.With(logfields.RunID(report.RunID), logfields.Pipeline(report.Pipeline), logfields.Trigger(string(plan.Trigger)))
	log.Info("Run started", "stages", len(plan.Groups), "entries", plan.EntryCount())
	r.observer.RunStarted(report.RunID, plan)

	halted := false
	for _, group := range plan.Groups {
		if halted || ctx.Err() != nil {
			report.Stages = append(report.Stages, r.skipStage(group))
			continue
		}
		sr := r.runStage(ctx, plan, group, report.RunID, log)
		report.Stages = append(report.Stages, sr)
		if sr.Outcome == OutcomeFailed {
			halted = true
		}
	}

	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	report.Outcome = r.runOutcome(ctx, report)

	r.recorder.ObserveRunDuration(string(plan.Trigger), report.Duration)
	r.recorder.IncRunOutcome(string(report.Outcome))
	log.Info("Run finished",
		logfields.Outcome(string(report.Outcome)),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	r.observer.RunFinished(report)
	return report, nil
}

// runStage executes one stage's entries concurrently and folds the outcome.
func (r *Runner) runStage(ctx context.Context, plan pipeline.Plan, group pipeline.StageGroup, runID string, log *slog.Logger) StageResult {
	stageStart := time.Now()
	log.Info("Stage started", logfields.Stage(group.Stage.Name), "entries", len(group.Entries))
	r.observer.StageStarted(runID, group.Stage.Name)

	results := make([]EntryResult, len(group.Entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range group.Entries {
		g.Go(func() error {
			res := r.executeEntry(gctx, plan, group.Stage.Name, entry, runID)
			results[i] = res
			r.recorder.IncEntryResult(group.Stage.Name, metrics.ResultLabel(res.Outcome))
			r.observer.EntryFinished(runID, res)
			if res.Failed() && plan.Pipeline.FastFinish {
				return errFastFinish
			}
			return nil
		})
	}
	// The only error is the fast-finish sentinel used to cancel siblings.
	_ = g.Wait()

	sr := StageResult{
		Stage:    group.Stage.Name,
		Entries:  results,
		Outcome:  stageOutcome(results),
		Duration: time.Since(stageStart),
	}
	r.recorder.ObserveStageDuration(sr.Stage, sr.Duration)
	log.Info("Stage finished",
		logfields.Stage(sr.Stage),
		logfields.Outcome(string(sr.Outcome)),
		logfields.DurationMS(float64(sr.Duration.Milliseconds())))
	return sr
}

// skipStage records a stage that never ran because an earlier stage failed
// or the run was canceled.
func (r *Runner) skipStage(group pipeline.StageGroup) StageResult {
	entries := make([]EntryResult, len(group.Entries))
	for i, e := range group.Entries {
		entries[i] = EntryResult{Stage: group.Stage.Name, Entry: e.Name, Runtime: e.Runtime, Outcome: OutcomeSkipped}
		r.recorder.IncEntryResult(group.Stage.Name, metrics.ResultSkipped)
	}
	return StageResult{Stage: group.Stage.Name, Entries: entries, Outcome: OutcomeSkipped}
}

// executeEntry runs one entry's four phases with its merged environment.
func (r *Runner) executeEntry(ctx context.Context, plan pipeline.Plan, stage string, entry pipeline.Entry, runID string) EntryResult {
	res := EntryResult{Stage: stage, Entry: entry.Name, Runtime: entry.Runtime, StartedAt: time.Now()}
	log := slog.With(logfields.RunID(runID), logfields.Stage(stage), logfields.Entry(entry.Name))

	env := r.entryEnv(plan, stage, entry, runID)
	phases := plan.Pipeline.EffectivePhases(entry)

	output, closeOutput, err := r.entryOutput(entry)
	if err != nil {
		log.Warn("Falling back to shared output", logfields.Error(err))
		output = r.output
		closeOutput = func() {}
	}
	defer closeOutput()

	fail := func(kind FailureKind, phase pipeline.PhaseName, err error) EntryResult {
		if ctx.Err() != nil {
			kind = FailureCanceled
		}
		ee := &EntryError{Kind: kind, Stage: stage, Entry: entry.Name, Phase: phase, Err: err}
		switch {
		case ee.Kind == FailureCanceled:
			res.Outcome = OutcomeCanceled
		case entry.AllowFailure:
			ee.Kind = FailureAllowed
			res.Outcome = OutcomeAllowedFailure
		default:
			res.Outcome = OutcomeFailed
		}
		res.Err = ee
		res.Error = ee.Error()
		res.FailedPhase = phase
		res.Duration = time.Since(res.StartedAt)
		log.Warn("Entry failed", logfields.Phase(string(phase)), logfields.Outcome(string(res.Outcome)), logfields.Error(err))
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(FailureCanceled, pipeline.PhaseInstall, err)
	}

	for _, phase := range []pipeline.PhaseName{pipeline.PhaseInstall, pipeline.PhaseBeforeScript} {
		if err := r.runPhase(ctx, phase, phases.For(phase), env, output, log); err != nil {
			return fail(FailureSetup, phase, err)
		}
	}
	if err := r.runPhase(ctx, pipeline.PhaseScript, phases.Script, env, output, log); err != nil {
		return fail(FailureScript, pipeline.PhaseScript, err)
	}
	// after_success never changes the entry result.
	if err := r.runPhase(ctx, pipeline.PhaseAfterSuccess, phases.AfterSuccess, env, output, log); err != nil {
		log.Warn("after_success failed (ignored)", logfields.Error(err))
	}

	res.Outcome = OutcomeSuccess
	res.Duration = time.Since(res.StartedAt)
	log.Info("Entry succeeded", logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res
}

// runPhase executes one phase's command list in order, stopping at the first
// failure.
func (r *Runner) runPhase(ctx context.Context, phase pipeline.PhaseName, commands []string, env pipeline.Env, output io.Writer, log *slog.Logger) error {
	for _, command := range commands {
		log.Debug("Running command", logfields.Phase(string(phase)), "command", command)
		if err := r.exec.RunCommand(ctx, command, env, r.workDir, output); err != nil {
			return err
		}
	}
	return nil
}

// entryEnv builds the immutable merged environment for one entry:
// global env < entry overrides < runner-injected CI_* values.
func (r *Runner) entryEnv(plan pipeline.Plan, stage string, entry pipeline.Entry, runID string) pipeline.Env {
	env := plan.Pipeline.EffectiveEnv(entry)
	injected := map[string]string{
		"CI":          "true",
		"CI_PIPELINE": plan.Pipeline.Name,
		"CI_RUN_ID":   runID,
		"CI_TRIGGER":  string(plan.Trigger),
		"CI_STAGE":    stage,
		"CI_ENTRY":    entry.Name,
	}
	if entry.Runtime != "" {
		injected["CI_RUNTIME"] = entry.Runtime
	}
	return env.Merge(pipeline.NewEnv(injected))
}

// entryOutput resolves where an entry's combined command output goes.
func (r *Runner) entryOutput(entry pipeline.Entry) (io.Writer, func(), error) {
	if r.outputDir == "" {
		return r.output, func() {}, nil
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(r.outputDir, entry.Name+".log")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create entry log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// runOutcome folds stage outcomes into the aggregate run outcome.
func (r *Runner) runOutcome(ctx context.Context, report *Report) Outcome {
	out := OutcomeSuccess
	for _, s := range report.Stages {
		switch s.Outcome {
		case OutcomeFailed:
			return OutcomeFailed
		case OutcomeCanceled:
			out = OutcomeCanceled
		case OutcomeSkipped:
			// skipped stages only follow a failure or cancellation; the
			// cause determines the aggregate.
		}
	}
	if ctx.Err() != nil && out == OutcomeSuccess {
		out = OutcomeCanceled
	}
	return out
}
