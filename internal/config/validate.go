package config

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"git.home.luguber.info/inful/matrixci/internal/notify"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// Validate checks the structural invariants the rest of the system relies
// on: stage references resolve, conditions and policies parse, schedules are
// valid cron expressions, and every entry ends up with a script phase.
func (c *Config) Validate() error {
	stageNames := make(map[string]struct{}, len(c.Stages))
	for i, s := range c.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if _, dup := stageNames[s.Name]; dup {
			return fmt.Errorf("duplicate stage %q", s.Name)
		}
		stageNames[s.Name] = struct{}{}
		if _, err := pipeline.ParseCondition(s.If); err != nil {
			return fmt.Errorf("stage %q: %w", s.Name, err)
		}
	}

	if len(c.Matrix.Include) == 0 {
		return fmt.Errorf("matrix has no entries")
	}
	for _, e := range c.Matrix.Include {
		if _, ok := stageNames[e.Stage]; !ok {
			return fmt.Errorf("entry %q references unknown stage %q", e.Name, e.Stage)
		}
		script := e.Script
		if script == nil {
			script = c.Script
		}
		if len(script) == 0 {
			return fmt.Errorf("entry %q has no script phase", e.Name)
		}
	}

	if _, err := notify.ParsePolicy(c.Notifications.Webhooks.OnSuccess, notify.PolicyChange); err != nil {
		return fmt.Errorf("notifications.webhooks.on_success: %w", err)
	}
	if _, err := notify.ParsePolicy(c.Notifications.Webhooks.OnFailure, notify.PolicyAlways); err != nil {
		return fmt.Errorf("notifications.webhooks.on_failure: %w", err)
	}

	if c.Repository != nil && c.Repository.URL == "" {
		return fmt.Errorf("repository section present but url is empty")
	}

	for _, s := range c.Daemon.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedule without a name")
		}
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return fmt.Errorf("schedule %q: invalid cron expression %q: %w", s.Name, s.Cron, err)
		}
		if _, err := pipeline.ParseTrigger(s.Trigger); err != nil {
			return fmt.Errorf("schedule %q: %w", s.Name, err)
		}
	}

	return nil
}

// ToPipeline converts the validated configuration into the immutable domain
// model used for selection and execution.
func (c *Config) ToPipeline() (*pipeline.Pipeline, error) {
	stages := make([]pipeline.Stage, len(c.Stages))
	for i, s := range c.Stages {
		cond, err := pipeline.ParseCondition(s.If)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", s.Name, err)
		}
		stages[i] = pipeline.Stage{Name: s.Name, Condition: cond}
	}

	entries := make([]pipeline.Entry, len(c.Matrix.Include))
	for i, e := range c.Matrix.Include {
		entries[i] = pipeline.Entry{
			Name:         e.Name,
			Stage:        e.Stage,
			Runtime:      e.Runtime,
			Env:          pipeline.NewEnv(e.Env),
			AllowFailure: e.AllowFailure,
			Phases: pipeline.PhaseSet{
				Install:      e.Install,
				BeforeScript: e.BeforeScript,
				Script:       e.Script,
				AfterSuccess: e.AfterSuccess,
			},
		}
	}

	p, err := pipeline.New(c.Pipeline, stages, entries)
	if err != nil {
		return nil, err
	}
	return p.
		WithGlobalEnv(pipeline.NewEnv(c.Env)).
		WithDefaults(pipeline.PhaseSet{
			Install:      c.Install,
			BeforeScript: c.BeforeScript,
			Script:       c.Script,
			AfterSuccess: c.AfterSuccess,
		}).
		WithFastFinish(c.Matrix.FastFinish), nil
}

// WebhookPolicies returns the parsed notification policies (call after
// Validate).
func (c *Config) WebhookPolicies() (onSuccess, onFailure notify.Policy) {
	onSuccess, _ = notify.ParsePolicy(c.Notifications.Webhooks.OnSuccess, notify.PolicyChange)
	onFailure, _ = notify.ParsePolicy(c.Notifications.Webhooks.OnFailure, notify.PolicyAlways)
	return onSuccess, onFailure
}
