package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/daemon/events"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/runner"
)

// JobSource records what put a run job on the queue.
type JobSource string

const (
	JobSourceManual   JobSource = "manual"   // CLI or admin API trigger
	JobSourceSchedule JobSource = "schedule" // gocron schedule fired
)

// JobStatus is the queue-level status of a run job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// RunJob is a single queued pipeline run.
type RunJob struct {
	ID          string           `json:"id"`
	Source      JobSource        `json:"source"`
	Trigger     pipeline.Trigger `json:"trigger"`
	Status      JobStatus        `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty"`
	RunID       string           `json:"run_id,omitempty"`
	Outcome     string           `json:"outcome,omitempty"`
	Error       string           `json:"error,omitempty"`

	cancel context.CancelFunc
}

// Executor performs one pipeline run for a trigger. The daemon's executor
// clones, runs, records and notifies; tests substitute fakes.
type Executor interface {
	Execute(ctx context.Context, trigger pipeline.Trigger) (*runner.Report, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, trigger pipeline.Trigger) (*runner.Report, error)

func (f ExecutorFunc) Execute(ctx context.Context, trigger pipeline.Trigger) (*runner.Report, error) {
	return f(ctx, trigger)
}

// RunQueue serializes pipeline runs through a bounded job channel processed
// by a fixed worker pool.
type RunQueue struct {
	jobs        chan *RunJob
	workers     int
	maxSize     int
	mu          sync.RWMutex
	active      map[string]*RunJob
	history     []*RunJob
	historySize int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	executor    Executor
	recorder    metrics.Recorder
	bus         *events.Bus
	pipeline    string
}

// NewRunQueue creates a run queue with the given capacity and worker count.
func NewRunQueue(maxSize, workers int, executor Executor) *RunQueue {
	if maxSize <= 0 {
		maxSize = 50
	}
	if workers <= 0 {
		workers = 1
	}

	return &RunQueue{
		jobs:        make(chan *RunJob, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		active:      make(map[string]*RunJob),
		history:     make([]*RunJob, 0),
		historySize: 50,
		stopChan:    make(chan struct{}),
		executor:    executor,
		recorder:    metrics.NoopRecorder{},
	}
}

// WithRecorder injects a metrics recorder.
func (q *RunQueue) WithRecorder(rec metrics.Recorder) *RunQueue {
	if rec != nil {
		q.recorder = rec
	}
	return q
}

// WithBus wires the event bus for RunQueued events, tagged with the
// pipeline name.
func (q *RunQueue) WithBus(bus *events.Bus, pipeline string) *RunQueue {
	q.bus = bus
	q.pipeline = pipeline
	return q
}

// Start begins processing jobs with the configured number of workers.
func (q *RunQueue) Start(ctx context.Context) {
	slog.Info("Starting run queue", "workers", q.workers, "max_size", q.maxSize)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels active jobs and waits for the workers to exit.
func (q *RunQueue) Stop(ctx context.Context) {
	slog.Info("Stopping run queue")

	close(q.stopChan)

	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()
	slog.Info("Run queue stopped")
}

// Enqueue adds a run job to the queue. It fails when the queue is full so
// callers can surface backpressure instead of blocking the trigger path.
func (q *RunQueue) Enqueue(job *RunJob) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	job.Status = JobStatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	select {
	case q.jobs <- job:
		q.recorder.SetQueueLength(len(q.jobs))
		slog.Info("Run job enqueued",
			logfields.JobID(job.ID),
			logfields.JobType(string(job.Source)),
			logfields.Trigger(string(job.Trigger)))
		q.publishQueued(job)
		return nil
	default:
		return fmt.Errorf("run queue is full (%d jobs)", q.maxSize)
	}
}

// Length returns the current queue length.
func (q *RunQueue) Length() int {
	return len(q.jobs)
}

// ActiveJobs returns a copy of the currently running jobs.
func (q *RunQueue) ActiveJobs() []*RunJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	active := make([]*RunJob, 0, len(q.active))
	for _, job := range q.active {
		active = append(active, job)
	}
	return active
}

// History returns recently completed jobs, oldest first.
func (q *RunQueue) History() []*RunJob {
	q.mu.RLock()
	defer q.mu.RUnlock()

	history := make([]*RunJob, len(q.history))
	copy(history, q.history)
	return history
}

// worker processes jobs from the queue until stopped.
func (q *RunQueue) worker(ctx context.Context, workerID string) {
	defer q.wg.Done()

	slog.Debug("Run worker started", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Run worker stopped by context", "worker_id", workerID)
			return
		case <-q.stopChan:
			slog.Debug("Run worker stopped by stop signal", "worker_id", workerID)
			return
		case job := <-q.jobs:
			if job != nil {
				q.recorder.SetQueueLength(len(q.jobs))
				q.processJob(ctx, job, workerID)
			}
		}
	}
}

// processJob executes a single run job.
func (q *RunQueue) processJob(ctx context.Context, job *RunJob, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel
	defer cancel()

	startTime := time.Now()
	job.StartedAt = &startTime
	job.Status = JobStatusRunning

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()

	slog.Info("Run job started", logfields.JobID(job.ID), logfields.Trigger(string(job.Trigger)), "worker", workerID)

	report, err := q.executor.Execute(jobCtx, job.Trigger)

	endTime := time.Now()
	job.CompletedAt = &endTime
	job.Duration = endTime.Sub(*job.StartedAt)
	if report != nil {
		job.RunID = report.RunID
		job.Outcome = string(report.Outcome)
	}

	switch {
	case err != nil && jobCtx.Err() != nil:
		job.Status = JobStatusCancelled
		job.Error = err.Error()
		slog.Warn("Run job cancelled", logfields.JobID(job.ID), logfields.Error(err))
	case err != nil:
		job.Status = JobStatusFailed
		job.Error = err.Error()
		slog.Error("Run job failed",
			logfields.JobID(job.ID),
			logfields.DurationMS(float64(job.Duration.Milliseconds())),
			logfields.Error(err))
	case report != nil && report.Failed():
		job.Status = JobStatusFailed
		slog.Warn("Run job finished with failures",
			logfields.JobID(job.ID),
			logfields.Outcome(job.Outcome),
			logfields.DurationMS(float64(job.Duration.Milliseconds())))
	default:
		job.Status = JobStatusCompleted
		slog.Info("Run job completed",
			logfields.JobID(job.ID),
			logfields.Outcome(job.Outcome),
			logfields.DurationMS(float64(job.Duration.Milliseconds())))
	}

	q.mu.Lock()
	delete(q.active, job.ID)
	q.addToHistory(job)
	q.mu.Unlock()
}

// publishQueued emits a RunQueued event; delivery is best effort and never
// blocks the trigger path for long.
func (q *RunQueue) publishQueued(job *RunJob) {
	if q.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evt := events.RunQueued{JobID: job.ID, Pipeline: q.pipeline, Trigger: string(job.Trigger), QueuedAt: job.CreatedAt}
	if err := q.bus.Publish(ctx, evt); err != nil {
		slog.Debug("Queue event not delivered", logfields.JobID(job.ID), logfields.Error(err))
	}
}

// addToHistory appends a completed job, maintaining the size limit.
func (q *RunQueue) addToHistory(job *RunJob) {
	q.history = append(q.history, job)

	if len(q.history) > q.historySize {
		copy(q.history, q.history[len(q.history)-q.historySize:])
		q.history = q.history[:q.historySize]
	}
}
