package pipeline

import (
	"fmt"
	"strings"
)

// Trigger is the event kind that initiated a pipeline run.
type Trigger string

// Supported trigger kinds.
const (
	TriggerPush        Trigger = "push"
	TriggerPullRequest Trigger = "pull_request"
	TriggerCron        Trigger = "cron"
)

// Triggers lists all supported trigger kinds in canonical order.
func Triggers() []Trigger {
	return []Trigger{TriggerPush, TriggerPullRequest, TriggerCron}
}

// ParseTrigger converts a string into a Trigger. Common aliases from CI
// platforms ("pr", "pull-request", "schedule", "scheduled") are accepted.
func ParseTrigger(s string) (Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "push", "branch":
		return TriggerPush, nil
	case "pull_request", "pull-request", "pr":
		return TriggerPullRequest, nil
	case "cron", "schedule", "scheduled":
		return TriggerCron, nil
	default:
		names := make([]string, len(Triggers()))
		for i, t := range Triggers() {
			names[i] = string(t)
		}
		return "", fmt.Errorf("unknown trigger %q (expected one of %s)", s, strings.Join(names, ", "))
	}
}

// Valid reports whether t is one of the supported trigger kinds.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerPush, TriggerPullRequest, TriggerCron:
		return true
	}
	return false
}

func (t Trigger) String() string { return string(t) }
