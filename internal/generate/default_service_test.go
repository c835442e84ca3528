package generate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/projgen/internal/config"
	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/history"
	"git.home.luguber.info/inful/projgen/internal/metrics"
	"git.home.luguber.info/inful/projgen/internal/notify"
	"git.home.luguber.info/inful/projgen/internal/packages"
	"git.home.luguber.info/inful/projgen/internal/project"
	"git.home.luguber.info/inful/projgen/internal/retry"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []notify.RunEvent
}

func (c *capturePublisher) Publish(_ context.Context, ev notify.RunEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// workspace lays out two modules and a library directory:
//
//	engine (tier 0): core (zlib), broken (missing lib), editor (devonly)
//	game   (tier 1): launcher (app, needs core and broken), sandbox (app, needs core)
func workspace(t *testing.T, extra string) *config.Config {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "libs", "zlib", "library.yaml"),
		"configs:\n  - platforms: \"*\"\n    configs: \"*\"\n    include: [include]\n    link: [lib/zlib.lib]\n")
	writeFile(t, filepath.Join(root, "src", "engine", "core", "build.yaml"), "publiclib: zlib\n")
	writeFile(t, filepath.Join(root, "src", "engine", "broken", "build.yaml"), "publiclib: [openssl]\n")
	writeFile(t, filepath.Join(root, "src", "engine", "editor", "build.yaml"), "app: true\ndevonly: true\ndependency: [core]\n")
	writeFile(t, filepath.Join(root, "src", "game", "launcher", "build.yaml"), "app: true\ndependency: [core, broken]\n")
	writeFile(t, filepath.Join(root, "src", "game", "sandbox", "build.yaml"), "app: true\ndependency: [core]\n")

	cfg, err := config.Parse([]byte(`
solution:
  name: demo
  platform: win
  configuration: Debug
  report: true
modules:
  - name: engine
    path: src/engine
    tier: 0
  - name: game
    path: src/game
    tier: 1
libraries:
  dirs: [libs, missing-libs]
` + extra))
	require.NoError(t, err)
	cfg.SetBaseDir(root)
	return cfg
}

func testService() *DefaultService {
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	s := NewService()
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(10 * time.Millisecond)
		return clock
	}
	return s
}

func exclusionNames(ex []project.Exclusion) []string {
	names := make([]string, len(ex))
	for i, e := range ex {
		names[i] = e.Project
	}
	slices.Sort(names)
	return names
}

func TestRunGeneratesSolution(t *testing.T) {
	cfg := workspace(t, "")
	svc := testService()

	res, err := svc.Run(t.Context(), Request{Config: cfg, Options: Options{Trigger: "cli"}})
	require.NoError(t, err)

	assert.Equal(t, metrics.OutcomeWarning, res.Outcome)
	assert.Equal(t, 5, res.Projects)
	assert.Equal(t, 3, res.Enabled)
	assert.Equal(t, 1, res.Libraries)
	assert.Equal(t, []string{"broken", "launcher"}, exclusionNames(res.Exclusions))
	assert.Empty(t, res.Diagnostics)
	assert.NotEmpty(t, res.RunID)
	assert.Positive(t, res.Duration)

	out := cfg.Resolve(".projgen/out")
	for _, name := range []string{
		"core.plan.yaml", "editor.plan.yaml", "sandbox.plan.yaml",
		"demo.plan.yaml", "demo.deps.dot", "demo.report.md", "demo.report.html",
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.NoFileExists(t, filepath.Join(out, "broken.plan.yaml"))
	assert.Equal(t, res.Artifacts, res.Rewritten)

	again, err := svc.Run(t.Context(), Request{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, res.Artifacts, again.Artifacts)
	assert.Zero(t, again.Rewritten, "unchanged inputs must not rewrite artifacts")
}

func TestRunDryRun(t *testing.T) {
	cfg := workspace(t, "")
	svc := testService()

	res, err := svc.Run(t.Context(), Request{Config: cfg, Options: Options{DryRun: true}})
	require.NoError(t, err)
	assert.Len(t, res.Changed, res.Artifacts)
	assert.Zero(t, res.Rewritten)
	assert.NoDirExists(t, cfg.Resolve(".projgen/out"))

	_, err = svc.Run(t.Context(), Request{Config: cfg})
	require.NoError(t, err)
	res, err = svc.Run(t.Context(), Request{Config: cfg, Options: Options{DryRun: true}})
	require.NoError(t, err)
	assert.Empty(t, res.Changed)
}

func TestRunStandaloneFiltersDevOnly(t *testing.T) {
	cfg := workspace(t, "")
	res, err := testService().Run(t.Context(), Request{Config: cfg, Options: Options{Build: config.BuildStandalone, Platform: "linux"}})
	require.NoError(t, err)

	assert.Equal(t, "linux", res.Platform)
	assert.Equal(t, []string{"broken", "editor", "launcher"}, exclusionNames(res.Exclusions))
	for _, e := range res.Exclusions {
		if e.Project == "editor" {
			assert.Equal(t, project.ReasonFiltered, e.Reason)
		}
	}
}

func TestRunStrictCycles(t *testing.T) {
	cfg := workspace(t, "")
	writeFile(t, cfg.Resolve("src/engine/ping/build.yaml"), "dependency: [pong]\n")
	writeFile(t, cfg.Resolve("src/engine/pong/build.yaml"), "dependency: [ping]\n")

	res, err := testService().Run(t.Context(), Request{Config: cfg})
	require.NoError(t, err, "cycles are diagnosed, not fatal, by default")
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, metrics.OutcomeWarning, res.Outcome)

	cfg.Solution.StrictCycles = true
	res, err = testService().Run(t.Context(), Request{Config: cfg})
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryResolution))
	assert.Equal(t, metrics.OutcomeFailed, res.Outcome)
	assert.NoDirExists(t, cfg.Resolve(".projgen/out"))
}

func TestRunInvalidDeclaration(t *testing.T) {
	cfg := workspace(t, "")
	writeFile(t, cfg.Resolve("src/engine/bad/build.yaml"), "dependencies: [core]\n")

	pub := &capturePublisher{}
	res, err := testService().WithPublisher(pub).Run(t.Context(), Request{Config: cfg})
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryConfig))
	assert.Equal(t, metrics.OutcomeFailed, res.Outcome)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "failed", pub.events[0].Outcome)
	assert.NotEmpty(t, pub.events[0].Error)
}

func TestRunRecordsHistoryAndPublishes(t *testing.T) {
	cfg := workspace(t, "")
	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	pub := &capturePublisher{}
	svc := testService().WithHistory(store).WithPublisher(pub)

	first, err := svc.Run(t.Context(), Request{Config: cfg})
	require.NoError(t, err)

	// Fixing the missing library re-enables broken and launcher.
	writeFile(t, cfg.Resolve("libs/openssl/library.yaml"), "configs:\n  - platforms: \"*\"\n    configs: \"*\"\n")
	second, err := svc.Run(t.Context(), Request{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeSuccess, second.Outcome)

	runs, err := store.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].RunID)
	assert.Equal(t, "demo", runs[1].Solution)

	excl, err := store.Exclusions(t.Context(), first.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken", "launcher"}, exclusionNames(excl))

	require.Len(t, pub.events, 2)
	assert.ElementsMatch(t, []string{"broken", "launcher"}, pub.events[0].NewlyExcluded)
	assert.Empty(t, pub.events[1].NewlyExcluded)
	assert.Equal(t, "success", pub.events[1].Outcome)
}

// unreadableExclusions fails every exclusion lookup.
type unreadableExclusions struct {
	history.Store
}

func (unreadableExclusions) Exclusions(context.Context, string) ([]project.Exclusion, error) {
	return nil, errors.New("database is locked")
}

func TestRunSurvivesUnreadablePreviousExclusions(t *testing.T) {
	cfg := workspace(t, "")
	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	pub := &capturePublisher{}
	svc := testService().WithHistory(unreadableExclusions{Store: store}).WithPublisher(pub)

	_, err = svc.Run(t.Context(), Request{Config: cfg})
	require.NoError(t, err)
	second, err := svc.Run(t.Context(), Request{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeWarning, second.Outcome)

	runs, err := store.Recent(t.Context(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	require.Len(t, pub.events, 2)
	assert.ElementsMatch(t, []string{"broken", "launcher"}, pub.events[1].NewlyExcluded)
}

func TestRunPackageSoftFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	cfg := workspace(t, `
packages:
  cache_dir: cache
  remote:
    - name: thirdparty
      url: `+srv.URL+`/thirdparty.zip
`)
	svc := testService().WithFetchOptions(packages.WithPolicy(retry.Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, MaxRetries: 0}))
	res, err := svc.Run(t.Context(), Request{Config: cfg})
	require.NoError(t, err)

	require.Contains(t, res.FailedPackages, "thirdparty")
	assert.Equal(t, metrics.OutcomeWarning, res.Outcome)
	assert.Equal(t, 3, res.Enabled)
}

func TestRunRequiresConfig(t *testing.T) {
	res, err := testService().Run(t.Context(), Request{})
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryConfig))
	assert.Equal(t, metrics.OutcomeFailed, res.Outcome)
}

func TestPrometheusTextfileExport(t *testing.T) {
	cfg := workspace(t, "metrics:\n  textfile: metrics/projgen.prom\n")
	rec := metrics.NewPrometheusRecorder(nil)
	_, err := testService().WithRecorder(rec).Run(t.Context(), Request{Config: cfg})
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.Resolve("metrics/projgen.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "projgen_")
}
