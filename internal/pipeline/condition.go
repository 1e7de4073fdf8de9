package pipeline

import (
	"fmt"
	"strings"
)

// conditionOp is the comparison a Condition applies to the run trigger.
type conditionOp int

const (
	opAny conditionOp = iota // no restriction
	opEquals
	opNotEquals
	opIn
)

// Condition is a run-condition predicate attached to a stage. The zero value
// matches every trigger. Conditions are parsed from a small expression
// language in the configuration ("trigger = cron", "trigger != pull_request",
// "trigger in (push, cron)"); "type" is accepted as an alias for "trigger".
type Condition struct {
	op       conditionOp
	triggers []Trigger
	raw      string
}

// ParseCondition parses a stage run-condition expression. An empty expression
// yields the zero Condition, which matches all triggers.
func ParseCondition(expr string) (Condition, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return Condition{}, nil
	}

	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return Condition{}, fmt.Errorf("invalid condition %q", expr)
	}

	subject := strings.ToLower(fields[0])
	if subject != "trigger" && subject != "type" {
		return Condition{}, fmt.Errorf("invalid condition %q: unknown subject %q", expr, fields[0])
	}

	op := strings.ToLower(fields[1])
	rest := strings.TrimSpace(strings.Join(fields[2:], " "))

	switch op {
	case "=", "==", "is":
		t, err := ParseTrigger(rest)
		if err != nil {
			return Condition{}, fmt.Errorf("invalid condition %q: %w", expr, err)
		}
		return Condition{op: opEquals, triggers: []Trigger{t}, raw: raw}, nil
	case "!=", "isnt", "not":
		t, err := ParseTrigger(rest)
		if err != nil {
			return Condition{}, fmt.Errorf("invalid condition %q: %w", expr, err)
		}
		return Condition{op: opNotEquals, triggers: []Trigger{t}, raw: raw}, nil
	case "in":
		list := strings.Trim(rest, "()")
		var triggers []Trigger
		for _, part := range strings.Split(list, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := ParseTrigger(part)
			if err != nil {
				return Condition{}, fmt.Errorf("invalid condition %q: %w", expr, err)
			}
			triggers = append(triggers, t)
		}
		if len(triggers) == 0 {
			return Condition{}, fmt.Errorf("invalid condition %q: empty trigger list", expr)
		}
		return Condition{op: opIn, triggers: triggers, raw: raw}, nil
	default:
		return Condition{}, fmt.Errorf("invalid condition %q: unknown operator %q", expr, fields[1])
	}
}

// MustCondition is a test/fixture helper that panics on parse errors.
func MustCondition(expr string) Condition {
	c, err := ParseCondition(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// Matches reports whether the condition admits the given trigger.
func (c Condition) Matches(t Trigger) bool {
	switch c.op {
	case opEquals:
		return c.triggers[0] == t
	case opNotEquals:
		return c.triggers[0] != t
	case opIn:
		for _, ct := range c.triggers {
			if ct == t {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// IsZero reports whether the condition is unrestricted.
func (c Condition) IsZero() bool { return c.op == opAny }

// String returns the original expression, or "" for the zero condition.
func (c Condition) String() string { return c.raw }
