package pipeline

import (
	"testing"
)

func TestParseCondition_Matching(t *testing.T) {
	cases := []struct {
		expr    string
		trigger Trigger
		want    bool
	}{
		{"", TriggerPush, true},
		{"", TriggerPullRequest, true},
		{"", TriggerCron, true},

		{"trigger = cron", TriggerCron, true},
		{"trigger = cron", TriggerPush, false},
		{"trigger = cron", TriggerPullRequest, false},
		{"trigger == push", TriggerPush, true},
		{"type is pull_request", TriggerPullRequest, true},
		{"type is pull_request", TriggerCron, false},

		{"trigger != cron", TriggerCron, false},
		{"trigger != cron", TriggerPush, true},
		{"trigger != cron", TriggerPullRequest, true},
		{"trigger != pull_request", TriggerPullRequest, false},
		{"trigger != pull_request", TriggerCron, true},

		{"trigger in (push, cron)", TriggerPush, true},
		{"trigger in (push, cron)", TriggerCron, true},
		{"trigger in (push, cron)", TriggerPullRequest, false},
		{"trigger in (pull_request)", TriggerPullRequest, true},
		{"trigger in (pull_request)", TriggerPush, false},
	}

	for _, tc := range cases {
		cond, err := ParseCondition(tc.expr)
		if err != nil {
			t.Fatalf("ParseCondition(%q): %v", tc.expr, err)
		}
		if got := cond.Matches(tc.trigger); got != tc.want {
			t.Errorf("%q.Matches(%s) = %v, want %v", tc.expr, tc.trigger, got, tc.want)
		}
	}
}

func TestParseCondition_Errors(t *testing.T) {
	exprs := []string{
		"branch = main",
		"trigger ~ cron",
		"trigger =",
		"trigger = deploy",
		"trigger != deploy",
		"trigger in ()",
		"trigger in (push, deploy)",
	}
	for _, expr := range exprs {
		if _, err := ParseCondition(expr); err == nil {
			t.Errorf("ParseCondition(%q): expected error", expr)
		}
	}
}

func TestCondition_ZeroValueMatchesAll(t *testing.T) {
	var cond Condition
	if !cond.IsZero() {
		t.Fatal("zero condition should report IsZero")
	}
	for _, trigger := range Triggers() {
		if !cond.Matches(trigger) {
			t.Errorf("zero condition rejected %s", trigger)
		}
	}
}
