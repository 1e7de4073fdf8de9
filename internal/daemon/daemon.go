// Package daemon runs matrixci as a long-lived service: a run queue with a
// worker pool, cron schedules, config hot reload, an admin HTTP API and
// optional NATS run event publishing.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/daemon/events"
	"git.home.luguber.info/inful/matrixci/internal/gitsource"
	"git.home.luguber.info/inful/matrixci/internal/history"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/notify"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/runner"
	"git.home.luguber.info/inful/matrixci/internal/workspace"
)

// State is the daemon lifecycle state.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Status is a point-in-time snapshot served by the admin API.
type Status struct {
	State       State     `json:"state"`
	Pipeline    string    `json:"pipeline"`
	StartedAt   time.Time `json:"started_at"`
	Uptime      string    `json:"uptime"`
	QueueLength int       `json:"queue_length"`
	ActiveJobs  int       `json:"active_jobs"`
	Workers     int       `json:"workers"`
	Schedules   int       `json:"schedules"`
}

// Daemon owns the long-running service components and their lifecycle.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	pipe       *pipeline.Pipeline
	notifier   *notify.Notifier
	configPath string

	bus        *events.Bus
	queue      *RunQueue
	scheduler  *Scheduler
	watcher    *ConfigWatcher
	httpServer *HTTPServer
	natsPub    *NATSPublisher
	store      history.Store

	registry *prom.Registry
	recorder *metrics.PrometheusRecorder

	state     State
	startTime time.Time
}

// New builds a daemon from a validated configuration. Start must be called
// before the daemon does any work.
func New(configPath string, cfg *config.Config) (*Daemon, error) {
	pipe, err := cfg.ToPipeline()
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	registry := prom.NewRegistry()

	d := &Daemon{
		cfg:        cfg,
		pipe:       pipe,
		configPath: configPath,
		bus:        events.NewBus(),
		registry:   registry,
		recorder:   metrics.NewPrometheusRecorder(registry),
		state:      StateStarting,
	}

	d.notifier = d.buildNotifier(cfg)
	d.queue = NewRunQueue(cfg.Daemon.QueueSize, cfg.Daemon.Workers, ExecutorFunc(d.execute)).
		WithRecorder(d.recorder).
		WithBus(d.bus, cfg.Pipeline)

	return d, nil
}

// Start brings up the store, queue, scheduler, config watcher, admin server
// and the optional NATS publisher.
func (d *Daemon) Start(ctx context.Context) error {
	cfg := d.Config()
	slog.Info("Starting daemon", logfields.Pipeline(cfg.Pipeline), logfields.Path(d.configPath))

	if err := os.MkdirAll(cfg.Daemon.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store, err := history.NewSQLiteStore(filepath.Join(cfg.Daemon.DataDir, "history.db"))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	d.store = store
	d.notifier.WithOutcomeSource(store)

	d.queue.Start(ctx)

	scheduler, err := NewScheduler()
	if err != nil {
		return err
	}
	scheduler.SetEnqueuer(d.queue)
	if err := scheduler.AddSchedules(cfg.Daemon.Schedules); err != nil {
		return err
	}
	scheduler.Start(ctx)
	d.scheduler = scheduler

	watcher, err := NewConfigWatcher(d.configPath, d)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	d.watcher = watcher

	if cfg.Daemon.NATS.Enabled {
		natsPub, err := NewNATSPublisher(&cfg.Daemon.NATS, d.bus)
		if err != nil {
			return fmt.Errorf("start NATS publisher: %w", err)
		}
		d.natsPub = natsPub
	}

	d.httpServer = NewHTTPServer(d, cfg.Daemon.HTTP.AdminPort)
	if err := d.httpServer.Start(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	d.state = StateRunning
	d.startTime = time.Now()
	d.mu.Unlock()

	slog.Info("Daemon started",
		slog.Int("workers", cfg.Daemon.Workers),
		slog.Int("schedules", len(cfg.Daemon.Schedules)),
		slog.Int("admin_port", cfg.Daemon.HTTP.AdminPort))
	return nil
}

// Stop shuts components down in reverse start order, bounded by ctx.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.state = StateStopping
	d.mu.Unlock()

	slog.Info("Stopping daemon")

	var errs []error
	if d.httpServer != nil {
		if err := d.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.queue.Stop(ctx)
	if d.natsPub != nil {
		if err := d.natsPub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.bus.Close()
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	d.mu.Lock()
	d.state = StateStopped
	d.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("daemon shutdown errors: %v", errs)
	}
	slog.Info("Daemon stopped")
	return nil
}

// TriggerRun enqueues a manual run for the given trigger and returns the job
// id.
func (d *Daemon) TriggerRun(trigger pipeline.Trigger) (string, error) {
	job := &RunJob{
		ID:        fmt.Sprintf("manual-%d", time.Now().UnixNano()),
		Source:    JobSourceManual,
		Trigger:   trigger,
		CreatedAt: time.Now(),
	}
	if err := d.queue.Enqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// execute performs one run: select, optionally clone, execute, notify,
// record. Notification happens before recording so the change policy
// compares against the previous run.
func (d *Daemon) execute(ctx context.Context, trigger pipeline.Trigger) (*runner.Report, error) {
	d.mu.RLock()
	cfg := d.cfg
	pipe := d.pipe
	notifier := d.notifier
	d.mu.RUnlock()

	plan := pipe.Select(trigger)
	if plan.IsEmpty() {
		slog.Info("No entries selected for trigger, skipping run",
			logfields.Pipeline(pipe.Name), logfields.Trigger(string(trigger)))
		return nil, nil
	}

	workDir := ""
	if cfg.Repository != nil {
		manager := workspace.NewManager("")
		if err := manager.Create(); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
		defer func() {
			if err := manager.Cleanup(); err != nil {
				slog.Warn("Workspace cleanup failed", logfields.Error(err))
			}
		}()

		checkout, err := gitsource.NewClient(manager.GetPath()).Clone(ctx, cfg.Repository)
		if err != nil {
			return nil, err
		}
		workDir = checkout
	}

	logs := workspace.NewPersistentManager(cfg.Daemon.DataDir, "logs")
	if err := logs.Create(); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	logDir, err := logs.CreateSubdir(time.Now().Format("20060102-150405.000"))
	if err != nil {
		return nil, fmt.Errorf("create run log directory: %w", err)
	}

	run := runner.New().
		WithRecorder(d.recorder).
		WithObserver(newBusObserver(d.bus)).
		WithWorkDir(workDir).
		WithOutputDir(logDir)

	report, err := run.Run(ctx, plan)
	if err != nil {
		return nil, err
	}

	if err := notifier.Notify(ctx, report); err != nil {
		slog.Warn("Notification delivery failed", logfields.RunID(report.RunID), logfields.Error(err))
	}
	if err := d.store.RecordRun(ctx, report); err != nil {
		slog.Error("Failed to record run", logfields.RunID(report.RunID), logfields.Error(err))
	}

	return report, nil
}

// ReloadConfig swaps in a validated configuration: pipeline, notifier and
// schedules. Queue sizing and ports keep their startup values.
func (d *Daemon) ReloadConfig(ctx context.Context, newCfg *config.Config) error {
	pipe, err := newCfg.ToPipeline()
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	notifier := d.buildNotifier(newCfg)
	if d.store != nil {
		notifier.WithOutcomeSource(d.store)
	}

	d.mu.Lock()
	d.cfg = newCfg
	d.pipe = pipe
	d.notifier = notifier
	d.mu.Unlock()

	if d.scheduler != nil {
		if err := d.scheduler.ReplaceSchedules(newCfg.Daemon.Schedules); err != nil {
			return fmt.Errorf("replace schedules: %w", err)
		}
	}

	evt := events.ConfigReloaded{Pipeline: newCfg.Pipeline, ReloadedAt: time.Now()}
	pubCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := d.bus.Publish(pubCtx, evt); err != nil {
		slog.Debug("Config reload event not delivered", logfields.Error(err))
	}

	return nil
}

// buildNotifier constructs the webhook notifier for a configuration.
func (d *Daemon) buildNotifier(cfg *config.Config) *notify.Notifier {
	onSuccess, onFailure := cfg.WebhookPolicies()
	return notify.New(cfg.Notifications.Webhooks.URLs, onSuccess, onFailure).
		WithRecorder(d.recorder)
}

// Config returns the current configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// StartTime returns when the daemon finished starting.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// Status returns a snapshot for the admin API.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	uptime := ""
	if !d.startTime.IsZero() {
		uptime = time.Since(d.startTime).Round(time.Second).String()
	}
	return Status{
		State:       d.state,
		Pipeline:    d.cfg.Pipeline,
		StartedAt:   d.startTime,
		Uptime:      uptime,
		QueueLength: d.queue.Length(),
		ActiveJobs:  len(d.queue.ActiveJobs()),
		Workers:     d.cfg.Daemon.Workers,
		Schedules:   len(d.cfg.Daemon.Schedules),
	}
}
