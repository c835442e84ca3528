package metrics

import (
	"testing"
	"time"
)

type testRecorder struct {
	NoopRecorder
	stageDurations map[string]int
	stageResults   map[string]map[ResultLabel]int
	outcomes       map[RunOutcome]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{
		stageDurations: map[string]int{},
		stageResults:   map[string]map[ResultLabel]int{},
		outcomes:       map[RunOutcome]int{},
	}
}

func (t *testRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	t.stageDurations[stage]++
}

func (t *testRecorder) IncStageResult(stage string, result ResultLabel) {
	m, ok := t.stageResults[stage]
	if !ok {
		m = map[ResultLabel]int{}
		t.stageResults[stage] = m
	}
	m[result]++
}

func (t *testRecorder) IncRunOutcome(outcome RunOutcome) { t.outcomes[outcome]++ }

func TestRecorderInterfaceSatisfied(t *testing.T) {
	var _ Recorder = NoopRecorder{}
	var _ Recorder = (*PrometheusRecorder)(nil)

	var r Recorder = newTestRecorder()
	r.ObserveStageDuration("resolve", time.Millisecond)
	r.IncStageResult("resolve", ResultSuccess)
	r.IncStageResult("resolve", ResultSuccess)
	r.IncRunOutcome(OutcomeSuccess)
	// Embedded noop methods must be callable too.
	r.SetProjects(3, 1)

	tr := r.(*testRecorder)
	if tr.stageDurations["resolve"] != 1 {
		t.Fatalf("expected 1 duration sample, got %d", tr.stageDurations["resolve"])
	}
	if tr.stageResults["resolve"][ResultSuccess] != 2 {
		t.Fatalf("expected 2 success results, got %d", tr.stageResults["resolve"][ResultSuccess])
	}
	if tr.outcomes[OutcomeSuccess] != 1 {
		t.Fatalf("expected 1 success outcome")
	}
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var p *PrometheusRecorder
	p.ObserveRunDuration(time.Second)
	p.SetProjects(1, 2)
	p.AddArtifacts(3, 1)
	p.ObservePackageFetch("sdk", time.Second, false)
	if p.Registry() != nil {
		t.Fatalf("nil recorder has no registry")
	}
}
