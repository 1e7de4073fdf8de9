package metrics

import "time"

type testRecorder struct {
	runDurations   map[string]int
	stageDurations map[string]int
	entryResults   map[string]map[ResultLabel]int
	runOutcomes    map[string]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{
		runDurations:   map[string]int{},
		stageDurations: map[string]int{},
		entryResults:   map[string]map[ResultLabel]int{},
		runOutcomes:    map[string]int{},
	}
}

func (t *testRecorder) ObserveRunDuration(trigger string, _ time.Duration) {
	t.runDurations[trigger]++
}

func (t *testRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	t.stageDurations[stage]++
}

func (t *testRecorder) IncEntryResult(stage string, result ResultLabel) {
	m, ok := t.entryResults[stage]
	if !ok {
		m = map[ResultLabel]int{}
		t.entryResults[stage] = m
	}
	m[result]++
}

func (t *testRecorder) IncRunOutcome(outcome string) { t.runOutcomes[outcome]++ }
func (t *testRecorder) IncNotifyDelivery(bool)       {}
func (t *testRecorder) SetQueueLength(int)           {}
