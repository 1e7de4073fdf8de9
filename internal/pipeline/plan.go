package pipeline

// StageGroup pairs a stage with the ordered entries selected to run in it.
type StageGroup struct {
	Stage   Stage
	Entries []Entry
}

// Plan is the result of trigger selection: the ordered (stage, entries)
// groups to execute for one run. It is immutable once produced.
type Plan struct {
	Pipeline *Pipeline
	Trigger  Trigger
	Groups   []StageGroup
}

// Select produces the ordered subset of entries to execute for the given
// trigger, grouped by stage. An entry is included unless its stage's
// run-condition excludes the trigger. Ordering is stable: declared stage
// order, then declared entry order within a stage. Selection is pure and
// never fails; a plan with no groups is valid (for example a pull_request
// trigger against a matrix of cron-only stages).
func (p *Pipeline) Select(trigger Trigger) Plan {
	plan := Plan{Pipeline: p, Trigger: trigger}
	for _, stage := range p.Stages {
		if !stage.Condition.Matches(trigger) {
			continue
		}
		entries := p.EntriesFor(stage.Name)
		if len(entries) == 0 {
			continue
		}
		plan.Groups = append(plan.Groups, StageGroup{Stage: stage, Entries: entries})
	}
	return plan
}

// IsEmpty reports whether the plan selects no entries at all.
func (pl Plan) IsEmpty() bool { return len(pl.Groups) == 0 }

// EntryCount returns the total number of selected entries across all groups.
func (pl Plan) EntryCount() int {
	n := 0
	for _, g := range pl.Groups {
		n += len(g.Entries)
	}
	return n
}

// StageNames returns the selected stage names in execution order.
func (pl Plan) StageNames() []string {
	names := make([]string, len(pl.Groups))
	for i, g := range pl.Groups {
		names[i] = g.Stage.Name
	}
	return names
}
