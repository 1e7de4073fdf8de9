package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// Scheduler wraps gocron for the daemon's configured cron schedules. Each
// schedule enqueues a run job with its configured trigger kind when it fires.
type Scheduler struct {
	scheduler gocron.Scheduler
	enqueuer  interface {
		Enqueue(job *RunJob) error
	}
}

// NewScheduler creates a scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}

	return &Scheduler{scheduler: s}, nil
}

// SetEnqueuer injects the run queue.
func (s *Scheduler) SetEnqueuer(e interface{ Enqueue(job *RunJob) error }) { s.enqueuer = e }

// AddSchedules registers a cron job per configured schedule. Expressions are
// validated at config load; errors here indicate gocron-level problems.
func (s *Scheduler) AddSchedules(schedules []config.ScheduleConfig) error {
	for _, sched := range schedules {
		trigger, err := pipeline.ParseTrigger(sched.Trigger)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sched.Name, err)
		}
		_, err = s.scheduler.NewJob(
			gocron.CronJob(sched.Cron, false),
			gocron.NewTask(s.fire, sched.Name, trigger),
			gocron.WithName(sched.Name),
		)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sched.Name, err)
		}
		slog.Info("Schedule registered", logfields.ScheduleName(sched.Name), "cron", sched.Cron, logfields.Trigger(string(trigger)))
	}
	return nil
}

// ReplaceSchedules removes all registered jobs and installs the given
// schedules, used on config reload.
func (s *Scheduler) ReplaceSchedules(schedules []config.ScheduleConfig) error {
	for _, job := range s.scheduler.Jobs() {
		if err := s.scheduler.RemoveJob(job.ID()); err != nil {
			return fmt.Errorf("remove schedule %q: %w", job.Name(), err)
		}
	}
	return s.AddSchedules(schedules)
}

// Start begins the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// fire is called by gocron when a schedule is due.
func (s *Scheduler) fire(name string, trigger pipeline.Trigger) {
	if s.enqueuer == nil {
		slog.Error("Scheduler enqueuer not set", logfields.ScheduleName(name))
		return
	}

	job := &RunJob{
		ID:        fmt.Sprintf("%s-%d", name, time.Now().Unix()),
		Source:    JobSourceSchedule,
		Trigger:   trigger,
		CreatedAt: time.Now(),
	}

	slog.Info("Schedule fired", logfields.ScheduleName(name), logfields.JobID(job.ID))
	if err := s.enqueuer.Enqueue(job); err != nil {
		slog.Error("Failed to enqueue scheduled run",
			logfields.ScheduleName(name),
			logfields.JobID(job.ID),
			logfields.Error(err))
	}
}
