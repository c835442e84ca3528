// Package metrics provides the observability hooks for generator runs.
//
// # Design
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	svc := generate.NewService()                          // NoopRecorder
//	svc = svc.WithRecorder(metrics.NewPrometheusRecorder(nil))
//
// # Export
//
// A generator run is a short-lived process, so there is no scrape endpoint.
// When metrics.textfile is configured the registry is written after each run
// with WriteTextfile, in the format node_exporter's textfile collector reads.
//
// # Metrics
//
//   - projgen_stage_duration_seconds{stage}
//   - projgen_run_duration_seconds
//   - projgen_stage_results_total{stage,result}
//   - projgen_run_outcomes_total{outcome}
//   - projgen_projects{state}
//   - projgen_propagation_passes
//   - projgen_artifacts_total{disposition}
//   - projgen_dependency_cycles_total
//   - projgen_package_fetch_duration_seconds{package,result}
package metrics
