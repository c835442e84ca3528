package generate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/projgen/internal/config"
	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/history"
	"git.home.luguber.info/inful/projgen/internal/library"
	"git.home.luguber.info/inful/projgen/internal/logfields"
	"git.home.luguber.info/inful/projgen/internal/metrics"
	"git.home.luguber.info/inful/projgen/internal/notify"
	"git.home.luguber.info/inful/projgen/internal/observability"
	"git.home.luguber.info/inful/projgen/internal/output"
	"git.home.luguber.info/inful/projgen/internal/packages"
	"git.home.luguber.info/inful/projgen/internal/project"
	"git.home.luguber.info/inful/projgen/internal/render"
	"git.home.luguber.info/inful/projgen/internal/report"
	"git.home.luguber.info/inful/projgen/internal/resolve"
	"git.home.luguber.info/inful/projgen/internal/scan"
)

// Pipeline stage names used for logging and metrics.
const (
	StageCatalog  = "catalog"
	StagePackages = "packages"
	StageScan     = "scan"
	StageResolve  = "resolve"
	StageRender   = "render"
	StageReport   = "report"
	StageCommit   = "commit"
)

// DefaultService is the standard implementation of Service.
type DefaultService struct {
	recorder  metrics.Recorder
	history   history.Store
	publisher notify.Publisher
	renderers []render.Renderer
	logger    *slog.Logger
	fetchOpts []packages.Option
	newRunID  func() string
	now       func() time.Time
	closers   []func() error
}

// NewService creates a service with the plan and graph renderers and no
// history or notifications.
func NewService() *DefaultService {
	return &DefaultService{
		recorder:  metrics.NoopRecorder{},
		publisher: notify.Noop{},
		renderers: []render.Renderer{render.PlanRenderer{}, render.DotRenderer{}},
		logger:    slog.Default(),
		newRunID:  uuid.NewString,
		now:       time.Now,
	}
}

// WithRecorder sets the metrics recorder.
func (s *DefaultService) WithRecorder(r metrics.Recorder) *DefaultService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithHistory records every run in store.
func (s *DefaultService) WithHistory(store history.Store) *DefaultService {
	s.history = store
	return s
}

// WithPublisher publishes a summary of every run.
func (s *DefaultService) WithPublisher(p notify.Publisher) *DefaultService {
	if p != nil {
		s.publisher = p
	}
	return s
}

// WithRenderers replaces the renderer set.
func (s *DefaultService) WithRenderers(r ...render.Renderer) *DefaultService {
	s.renderers = r
	return s
}

func (s *DefaultService) WithLogger(l *slog.Logger) *DefaultService {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithFetchOptions passes extra options to the package fetcher (for testing).
func (s *DefaultService) WithFetchOptions(opts ...packages.Option) *DefaultService {
	s.fetchOpts = opts
	return s
}

// Close releases the history store and the publisher.
func (s *DefaultService) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Resolve loads libraries, fetches packages, discovers projects and runs
// resolution to its fixed point. The returned graph is settled.
func (s *DefaultService) Resolve(ctx context.Context, cfg *config.Config, opts Options) (*Resolution, error) {
	if cfg == nil {
		return nil, perrors.ConfigInvalid("", errors.New("config required"))
	}
	res := &Resolution{
		Platform:      firstNonEmpty(opts.Platform, cfg.Solution.Platform),
		Configuration: firstNonEmpty(opts.Configuration, cfg.Solution.Configuration),
		Build:         cfg.Solution.Build,
	}
	if opts.Build != "" {
		res.Build = opts.Build
	}

	// Stage 1: local libraries
	err := s.stage(ctx, StageCatalog, func(ctx context.Context) error {
		res.Catalog = library.NewCatalog(s.logger)
		for _, dir := range cfg.Libraries.Dirs {
			path := cfg.Resolve(dir)
			libs, err := res.Catalog.RegisterDir(path)
			if errors.Is(err, fs.ErrNotExist) {
				observability.WarnContext(ctx, "Library directory missing", logfields.Path(path))
				continue
			}
			if err != nil {
				return err
			}
			observability.DebugContext(ctx, "Library directory registered", logfields.Path(path), logfields.Count(len(libs)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 2: remote packages
	if len(cfg.Packages.Remote) > 0 {
		err = s.stage(ctx, StagePackages, func(ctx context.Context) error {
			pc := cfg.Packages
			pc.CacheDir = cfg.Resolve(pc.CacheDir)
			fo := append([]packages.Option{packages.WithRecorder(s.recorder), packages.WithLogger(s.logger)}, s.fetchOpts...)
			fetched, err := packages.FromConfig(res.Catalog, pc, fo...).FetchAll(ctx, pc.Remote)
			if err != nil {
				return err
			}
			res.FailedPackages = fetched.Failed
			for name, ferr := range fetched.Failed {
				observability.WarnContext(ctx, "Package unavailable", logfields.Package(name), logfields.Error(ferr))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// Stage 3: project discovery
	var projects []*project.Project
	err = s.stage(ctx, StageScan, func(ctx context.Context) error {
		modules := make([]*project.Module, 0, len(cfg.Modules))
		for _, m := range cfg.Modules {
			modules = append(modules, &project.Module{Name: m.Name, Root: cfg.Resolve(m.Path), Tier: m.Tier})
		}
		var err error
		projects, err = scan.NewScanner(s.logger, cfg.Solution.Concurrency).Scan(ctx, modules)
		if err != nil {
			return err
		}
		if n := applyFlavor(projects, res.Build); n > 0 {
			observability.InfoContext(ctx, "Dev-only projects filtered", logfields.Count(n), slog.String("build", string(res.Build)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 4: resolution and propagation
	err = s.stage(ctx, StageResolve, func(ctx context.Context) error {
		g, err := resolve.New(projects, resolve.NewIndex(projects, res.Catalog), s.logger)
		if err != nil {
			return perrors.InternalError("build dependency graph", err)
		}
		g.Resolve()
		res.Stats = g.Propagate()
		if err := g.Walk(); err != nil {
			return perrors.InternalError("walk dependency graph", err)
		}
		res.Graph = g

		diags := g.Diagnostics()
		for _, d := range diags {
			observability.WarnContext(ctx, "Dependency cycle", logfields.Project(d.Project), slog.String("cycle", d.String()))
		}
		if cfg.Solution.StrictCycles && len(diags) > 0 {
			cycles := make([]string, len(diags))
			for i, d := range diags {
				cycles[i] = d.String()
			}
			return perrors.CyclesRejected(cycles)
		}
		observability.InfoContext(ctx, "Dependencies resolved",
			logfields.Count(len(projects)),
			slog.Int("enabled", len(g.Enabled())),
			logfields.Pass(res.Stats.Passes))
		return nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// Run executes the complete pipeline.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	result := &Result{RunID: s.newRunID(), StartTime: start}
	ctx = observability.WithRunID(ctx, result.RunID)
	if req.Options.Trigger != "" {
		ctx = observability.WithTrigger(ctx, req.Options.Trigger)
	}
	cfg := req.Config

	res, err := s.Resolve(ctx, cfg, req.Options)
	if res != nil {
		result.fill(res)
	}
	if err != nil {
		return result, s.finish(ctx, cfg, result, err)
	}

	outDir := cfg.Resolve(cfg.Solution.Output)
	asm := output.NewAssembly()

	// Stage 5: rendering
	err = s.stage(ctx, StageRender, func(ctx context.Context) error {
		rc := &render.Context{
			Graph:         res.Graph,
			Assembly:      asm,
			OutputDir:     outDir,
			Solution:      cfg.Solution.Name,
			Platform:      res.Platform,
			Configuration: res.Configuration,
			Logger:        s.logger,
		}
		return render.Render(ctx, rc, s.renderers, cfg.Solution.Concurrency)
	})
	if err != nil {
		return result, s.finish(ctx, cfg, result, err)
	}

	// Stage 6: report
	if cfg.Solution.Report {
		err = s.stage(ctx, StageReport, func(context.Context) error {
			return report.Write(asm, outDir, s.summary(cfg, res, result))
		})
		if err != nil {
			return result, s.finish(ctx, cfg, result, err)
		}
	}

	// Stage 7: commit
	result.Artifacts = asm.Len()
	err = s.stage(ctx, StageCommit, func(ctx context.Context) error {
		if req.Options.DryRun {
			changed, err := asm.Changed()
			result.Changed = changed
			observability.InfoContext(ctx, "Dry run", logfields.Count(len(changed)), logfields.Path(outDir))
			return err
		}
		n, err := asm.Commit(cfg.Solution.TouchUnchanged || req.Options.Touch)
		result.Rewritten = n
		observability.InfoContext(ctx, "Artifacts committed",
			slog.Int("registered", result.Artifacts), slog.Int("rewritten", n), logfields.Path(outDir))
		return err
	})
	return result, s.finish(ctx, cfg, result, err)
}

// stage runs fn with stage logging and metrics.
func (s *DefaultService) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx = observability.WithStage(ctx, name)
	if err := ctx.Err(); err != nil {
		return err
	}
	start := s.now()
	err := fn(ctx)
	s.recorder.ObserveStageDuration(name, s.now().Sub(start))
	if err != nil {
		s.recorder.IncStageResult(name, metrics.ResultFatal)
		observability.ErrorContext(ctx, "Stage failed", logfields.Error(err))
		return err
	}
	s.recorder.IncStageResult(name, metrics.ResultSuccess)
	return nil
}

func (r *Result) fill(res *Resolution) {
	r.Platform = res.Platform
	r.Configuration = res.Configuration
	r.FailedPackages = res.FailedPackages
	r.Passes = res.Stats.Passes
	if res.Catalog != nil {
		r.Libraries = res.Catalog.Len()
	}
	if res.Graph != nil {
		r.Projects = len(res.Graph.Projects())
		r.Enabled = len(res.Graph.Enabled())
		r.Exclusions = res.Graph.Exclusions()
		r.Diagnostics = res.Graph.Diagnostics()
	}
}

// finish settles the outcome and runs the post-run side effects. Failures
// of history, notification and metrics export are logged and never change
// the outcome.
func (s *DefaultService) finish(ctx context.Context, cfg *config.Config, result *Result, runErr error) error {
	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	switch {
	case runErr != nil:
		result.Outcome = metrics.OutcomeFailed
	case len(result.Exclusions) > 0 || len(result.Diagnostics) > 0 || len(result.FailedPackages) > 0:
		result.Outcome = metrics.OutcomeWarning
	default:
		result.Outcome = metrics.OutcomeSuccess
	}

	s.recorder.IncRunOutcome(result.Outcome)
	s.recorder.ObserveRunDuration(result.Duration)
	s.recorder.SetProjects(result.Enabled, len(result.Exclusions))
	s.recorder.SetPropagationPasses(result.Passes)
	s.recorder.AddArtifacts(result.Artifacts, result.Rewritten)
	s.recorder.AddCycles(len(result.Diagnostics))

	newly := s.record(ctx, cfg, result)
	s.publish(ctx, cfg, result, newly, runErr)

	if cfg != nil && cfg.Metrics.Textfile != "" {
		if pr, ok := s.recorder.(*metrics.PrometheusRecorder); ok {
			path := cfg.Resolve(cfg.Metrics.Textfile)
			if err := metrics.WriteTextfile(path, pr.Registry()); err != nil {
				observability.WarnContext(ctx, "Metrics export failed", logfields.Path(path), logfields.Error(err))
			}
		}
	}

	attrs := []slog.Attr{
		slog.String("outcome", string(result.Outcome)),
		logfields.DurationMS(float64(result.Duration.Milliseconds())),
		slog.Int("enabled", result.Enabled),
		slog.Int("excluded", len(result.Exclusions)),
	}
	if runErr != nil {
		observability.ErrorContext(ctx, "Generation failed", append(attrs, logfields.Error(runErr))...)
		return runErr
	}
	observability.InfoContext(ctx, "Generation finished", attrs...)
	return nil
}

// record stores the run and returns the projects excluded now but not in
// the previous recorded run.
func (s *DefaultService) record(ctx context.Context, cfg *config.Config, result *Result) []project.Exclusion {
	if s.history == nil {
		return nil
	}
	var previous []project.Exclusion
	recent, err := s.history.Recent(ctx, 1)
	if err != nil {
		observability.WarnContext(ctx, "Failed to read previous run", logfields.Error(err))
	} else if len(recent) > 0 {
		previous, err = s.history.Exclusions(ctx, recent[0].RunID)
		if err != nil {
			observability.WarnContext(ctx, "Failed to read previous exclusions",
				logfields.RunID(recent[0].RunID), logfields.Error(err))
		}
	}
	run := history.Run{
		RunID:         result.RunID,
		Started:       result.StartTime,
		Duration:      result.Duration,
		Platform:      result.Platform,
		Configuration: result.Configuration,
		Outcome:       string(result.Outcome),
		Projects:      result.Projects,
		Enabled:       result.Enabled,
		Artifacts:     result.Artifacts,
		Rewritten:     result.Rewritten,
		Passes:        result.Passes,
		Cycles:        len(result.Diagnostics),
		Exclusions:    result.Exclusions,
	}
	if cfg != nil {
		run.Solution = cfg.Solution.Name
	}
	if err := s.history.Record(ctx, run); err != nil {
		observability.WarnContext(ctx, "Failed to record run history", logfields.Error(err))
	}
	return history.NewlyExcluded(previous, result.Exclusions)
}

func (s *DefaultService) publish(ctx context.Context, cfg *config.Config, result *Result, newly []project.Exclusion, runErr error) {
	ev := notify.RunEvent{
		RunID:         result.RunID,
		Timestamp:     result.EndTime,
		Platform:      result.Platform,
		Configuration: result.Configuration,
		Outcome:       string(result.Outcome),
		DurationMS:    result.Duration.Milliseconds(),
		Projects:      result.Projects,
		Enabled:       result.Enabled,
		Rewritten:     result.Rewritten,
	}
	if cfg != nil {
		ev.Solution = cfg.Solution.Name
	}
	for _, e := range result.Exclusions {
		ev.Excluded = append(ev.Excluded, notify.Excluded{Project: e.Project, Reason: string(e.Reason), Detail: e.Detail})
	}
	for _, e := range newly {
		ev.NewlyExcluded = append(ev.NewlyExcluded, e.Project)
	}
	for _, d := range result.Diagnostics {
		ev.Cycles = append(ev.Cycles, d.String())
	}
	if runErr != nil {
		ev.Error = runErr.Error()
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		observability.WarnContext(ctx, "Failed to publish run event", logfields.Error(err))
	}
}

func (s *DefaultService) summary(cfg *config.Config, res *Resolution, result *Result) report.Summary {
	sum := report.Summary{
		Solution:      cfg.Solution.Name,
		Platform:      res.Platform,
		Configuration: res.Configuration,
		Build:         string(res.Build),
		Projects:      result.Projects,
		Enabled:       result.Enabled,
		Libraries:     result.Libraries,
		Passes:        result.Passes,
		Exclusions:    result.Exclusions,
	}
	for _, d := range result.Diagnostics {
		sum.Cycles = append(sum.Cycles, d.String())
	}
	if len(res.FailedPackages) > 0 {
		sum.FailedPackages = make(map[string]string, len(res.FailedPackages))
		for _, name := range slices.Sorted(maps.Keys(res.FailedPackages)) {
			sum.FailedPackages[name] = res.FailedPackages[name].Error()
		}
	}
	return sum
}

// applyFlavor disables dev-only projects in standalone builds and returns
// how many were disabled.
func applyFlavor(projects []*project.Project, build config.BuildFlavor) int {
	if build != config.BuildStandalone {
		return 0
	}
	n := 0
	for _, p := range projects {
		if p.DevOnly() && p.Disable(project.ReasonFiltered, fmt.Sprintf("%s build", build)) {
			n++
		}
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewFromConfig creates a service wired to the history store, NATS
// publisher and Prometheus recorder the configuration asks for. An
// unreachable NATS server only disables notifications.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*DefaultService, error) {
	s := NewService().WithLogger(logger)
	s.WithRecorder(metrics.NewPrometheusRecorder(nil))

	if cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.Resolve(cfg.History.Path))
		if err != nil {
			return nil, perrors.Wrap(err, perrors.CategoryRuntime, perrors.SeverityFatal, "open run history").
				WithContext("path", cfg.History.Path)
		}
		s.WithHistory(store)
		s.closers = append(s.closers, store.Close)
	}
	if cfg.Notify.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.Subject, s.logger)
		if err != nil {
			s.logger.Warn("Run notifications disabled", logfields.Error(err))
		} else {
			s.WithPublisher(pub)
			s.closers = append(s.closers, pub.Close)
		}
	}
	return s, nil
}
