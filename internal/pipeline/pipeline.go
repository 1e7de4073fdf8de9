package pipeline

import (
	"fmt"
)

// Stage is a named phase of the pipeline. Stages run strictly in declared
// order; the optional Condition restricts which triggers the stage runs on.
type Stage struct {
	Name      string
	Condition Condition
}

// Entry is one concrete job configuration assigned to a stage: environment
// overrides, an optional runtime tag (e.g. "python3.11"), optional per-phase
// command overrides, and the allowed-failure marker.
type Entry struct {
	Name         string
	Stage        string
	Runtime      string
	Env          Env
	AllowFailure bool
	Phases       PhaseSet
}

// Pipeline is the validated, immutable build matrix for one invocation:
// ordered stages plus ordered entries, with pipeline-level defaults that
// entries inherit.
type Pipeline struct {
	Name       string
	Stages     []Stage
	Entries    []Entry
	GlobalEnv  Env
	Defaults   PhaseSet
	FastFinish bool

	stageIndex map[string]int
}

// New validates stages and entries and builds a Pipeline. Validation enforces
// the structural invariants: stage names are unique and non-empty, and every
// entry references a declared stage. Entries without a name are assigned one
// from their position.
func New(name string, stages []Stage, entries []Entry) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline %q has no stages", name)
	}

	stageIndex := make(map[string]int, len(stages))
	for i, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("pipeline %q: stage %d has no name", name, i)
		}
		if _, dup := stageIndex[s.Name]; dup {
			return nil, fmt.Errorf("pipeline %q: duplicate stage %q", name, s.Name)
		}
		stageIndex[s.Name] = i
	}

	seen := make(map[string]struct{}, len(entries))
	named := make([]Entry, len(entries))
	for i, e := range entries {
		if _, ok := stageIndex[e.Stage]; !ok {
			return nil, fmt.Errorf("pipeline %q: entry %q references unknown stage %q", name, e.Name, e.Stage)
		}
		if e.Name == "" {
			e.Name = fmt.Sprintf("entry-%d", i+1)
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("pipeline %q: duplicate entry name %q", name, e.Name)
		}
		seen[e.Name] = struct{}{}
		named[i] = e
	}

	return &Pipeline{
		Name:       name,
		Stages:     stages,
		Entries:    named,
		stageIndex: stageIndex,
	}, nil
}

// WithGlobalEnv returns the pipeline with its global environment set (fluent,
// used by the config loader).
func (p *Pipeline) WithGlobalEnv(env Env) *Pipeline {
	p.GlobalEnv = env
	return p
}

// WithDefaults sets the pipeline-level default phase commands.
func (p *Pipeline) WithDefaults(defaults PhaseSet) *Pipeline {
	p.Defaults = defaults
	return p
}

// WithFastFinish toggles fast-finish semantics for stage execution.
func (p *Pipeline) WithFastFinish(on bool) *Pipeline {
	p.FastFinish = on
	return p
}

// StageNames returns the stage names in declared order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}

// EntriesFor returns the entries assigned to the named stage, preserving
// declared entry order.
func (p *Pipeline) EntriesFor(stage string) []Entry {
	var out []Entry
	for _, e := range p.Entries {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// EffectivePhases resolves an entry's phase commands against the pipeline
// defaults.
func (p *Pipeline) EffectivePhases(e Entry) PhaseSet {
	return e.Phases.Merged(p.Defaults)
}

// EffectiveEnv builds the merged environment for an entry: global env with the
// entry's overrides layered on top. Both inputs stay untouched.
func (p *Pipeline) EffectiveEnv(e Entry) Env {
	return p.GlobalEnv.Merge(e.Env)
}
