package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFatal   ResultLabel = "fatal"
)

// RunOutcome is the final status of a generator run.
type RunOutcome string

const (
	OutcomeSuccess RunOutcome = "success"
	OutcomeWarning RunOutcome = "warning"
	OutcomeFailed  RunOutcome = "failed"
)

// Recorder defines observability hooks for generator runs. Implementations
// may forward to Prometheus, OpenTelemetry, etc. NoopRecorder is the default
// so callers never need nil checks.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome RunOutcome)
	SetProjects(enabled, excluded int)
	SetPropagationPasses(n int)
	AddArtifacts(registered, rewritten int)
	AddCycles(n int)
	ObservePackageFetch(pkg string, d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel) {}
func (NoopRecorder) IncRunOutcome(RunOutcome) {}
func (NoopRecorder) SetProjects(int, int) {}
func (NoopRecorder) SetPropagationPasses(int) {}
func (NoopRecorder) AddArtifacts(int, int) {}
func (NoopRecorder) AddCycles(int) {}
func (NoopRecorder) ObservePackageFetch(string, time.Duration, bool) {}
