package commands

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// PlanCmd implements the 'plan' command: show the selection for a trigger
// without executing anything.
type PlanCmd struct {
	Trigger string `short:"t" help:"Trigger kind (push, pull_request, cron)" default:"push"`
}

func (p *PlanCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	plan, err := buildPlan(cfg, p.Trigger)
	if err != nil {
		return err
	}

	fmt.Printf("Pipeline %q, trigger %q:\n", plan.Pipeline.Name, plan.Trigger)
	if plan.IsEmpty() {
		fmt.Println("  no stages selected")
		return nil
	}

	for i, group := range plan.Groups {
		fmt.Printf("\nStage %d: %s\n", i+1, group.Stage.Name)
		for _, entry := range group.Entries {
			line := "  - " + entry.Name
			if entry.Runtime != "" {
				line += " (" + entry.Runtime + ")"
			}
			if entry.AllowFailure {
				line += " [allowed failure]"
			}
			if summary := phaseSummary(plan.Pipeline.EffectivePhases(entry)); summary != "" {
				line += "  " + summary
			}
			fmt.Println(line)
		}
	}
	fmt.Printf("\n%d entries across %d stages\n", plan.EntryCount(), len(plan.Groups))
	return nil
}

// phaseSummary renders the phases an entry will run with their command
// counts, in execution order.
func phaseSummary(phases pipeline.PhaseSet) string {
	var parts []string
	for _, name := range pipeline.PhaseOrder() {
		if n := len(phases.For(name)); n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", name, n))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, " ") + "}"
}
