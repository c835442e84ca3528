package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "projgen"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	reg               *prom.Registry
	stageDuration     *prom.HistogramVec
	runDuration       prom.Histogram
	stageResults      *prom.CounterVec
	runOutcome        *prom.CounterVec
	projects          *prom.GaugeVec
	propagationPasses prom.Gauge
	artifacts         *prom.CounterVec
	cycles            prom.Counter
	fetchDuration     *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual generator stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total generator run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Generator runs by final status",
		}, []string{"outcome"})
		pr.projects = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "projects",
			Help:      "Projects in the last run by state",
		}, []string{"state"})
		pr.propagationPasses = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "propagation_passes",
			Help:      "Exclusion propagation passes needed to reach the fixed point",
		})
		pr.artifacts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Generated artifacts by disposition",
		}, []string{"disposition"})
		pr.cycles = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_cycles_total",
			Help:      "Dependency cycles reported during traversal",
		})
		pr.fetchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "package_fetch_duration_seconds",
			Help:      "Duration of remote package fetches",
			Buckets:   prom.DefBuckets,
		}, []string{"package", "result"})
		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcome,
			pr.projects, pr.propagationPasses, pr.artifacts, pr.cycles, pr.fetchDuration)
	})
	return pr
}

// Registry returns the registry the recorder's collectors are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	if p == nil {
		return nil
	}
	return p.reg
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcome) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetProjects(enabled, excluded int) {
	if p == nil || p.projects == nil {
		return
	}
	p.projects.WithLabelValues("enabled").Set(float64(enabled))
	p.projects.WithLabelValues("excluded").Set(float64(excluded))
}

func (p *PrometheusRecorder) SetPropagationPasses(n int) {
	if p == nil || p.propagationPasses == nil {
		return
	}
	p.propagationPasses.Set(float64(n))
}

func (p *PrometheusRecorder) AddArtifacts(registered, rewritten int) {
	if p == nil || p.artifacts == nil {
		return
	}
	p.artifacts.WithLabelValues("rewritten").Add(float64(rewritten))
	p.artifacts.WithLabelValues("unchanged").Add(float64(registered - rewritten))
}

func (p *PrometheusRecorder) AddCycles(n int) {
	if p == nil || p.cycles == nil {
		return
	}
	p.cycles.Add(float64(n))
}

func (p *PrometheusRecorder) ObservePackageFetch(pkg string, d time.Duration, success bool) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.fetchDuration.WithLabelValues(pkg, res).Observe(d.Seconds())
}
