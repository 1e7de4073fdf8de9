package notify

import (
	"fmt"
	"strings"
)

// Policy controls when a notification fires for a given run outcome.
type Policy string

const (
	// PolicyAlways fires on every run with the matching outcome.
	PolicyAlways Policy = "always"
	// PolicyNever suppresses notifications for the outcome.
	PolicyNever Policy = "never"
	// PolicyChange fires only when the outcome differs from the previous
	// recorded run of the same pipeline+trigger (a first-ever run counts as
	// a change).
	PolicyChange Policy = "change"
)

// ParsePolicy converts a config string into a Policy. Empty input returns
// the provided default.
func ParsePolicy(s string, def Policy) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "always":
		return PolicyAlways, nil
	case "never", "off":
		return PolicyNever, nil
	case "change", "changed", "on_change":
		return PolicyChange, nil
	default:
		return "", fmt.Errorf("unknown notification policy %q (expected always, never or change)", s)
	}
}

// shouldFire evaluates a policy against the current outcome and the previous
// recorded outcome ("" when unknown).
func (p Policy) shouldFire(succeeded bool, previous string) bool {
	switch p {
	case PolicyNever:
		return false
	case PolicyAlways:
		return true
	case PolicyChange:
		if previous == "" {
			return true
		}
		previousSucceeded := previous == "success"
		return succeeded != previousSucceeded
	default:
		return false
	}
}
