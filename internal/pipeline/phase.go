package pipeline

// PhaseName identifies one of the four ordered execution phases of an entry.
type PhaseName string

const (
	PhaseInstall      PhaseName = "install"
	PhaseBeforeScript PhaseName = "before_script"
	PhaseScript       PhaseName = "script"
	PhaseAfterSuccess PhaseName = "after_success"
)

// PhaseOrder lists the phases in execution order.
func PhaseOrder() []PhaseName {
	return []PhaseName{PhaseInstall, PhaseBeforeScript, PhaseScript, PhaseAfterSuccess}
}

// PhaseSet holds the shell command lists for each phase. A nil list means
// "inherit" when merged against pipeline-level defaults, and "nothing to run"
// at execution time.
type PhaseSet struct {
	Install      []string
	BeforeScript []string
	Script       []string
	AfterSuccess []string
}

// For returns the command list for the named phase.
func (p PhaseSet) For(name PhaseName) []string {
	switch name {
	case PhaseInstall:
		return p.Install
	case PhaseBeforeScript:
		return p.BeforeScript
	case PhaseScript:
		return p.Script
	case PhaseAfterSuccess:
		return p.AfterSuccess
	}
	return nil
}

// Merged layers the receiver over defaults: any phase the receiver defines
// (non-nil, even empty) replaces the default command list for that phase.
func (p PhaseSet) Merged(defaults PhaseSet) PhaseSet {
	out := defaults
	if p.Install != nil {
		out.Install = p.Install
	}
	if p.BeforeScript != nil {
		out.BeforeScript = p.BeforeScript
	}
	if p.Script != nil {
		out.Script = p.Script
	}
	if p.AfterSuccess != nil {
		out.AfterSuccess = p.AfterSuccess
	}
	return out
}

// IsEmpty reports whether no phase has any command.
func (p PhaseSet) IsEmpty() bool {
	return len(p.Install) == 0 && len(p.BeforeScript) == 0 && len(p.Script) == 0 && len(p.AfterSuccess) == 0
}
