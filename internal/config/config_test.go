package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	writeFile(t, path, `
modules:
  - { name: engine, path: src, tier: 0 }
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, runtime.GOOS, cfg.Solution.Platform)
	assert.Equal(t, "Debug", cfg.Solution.Configuration)
	assert.Equal(t, BuildDev, cfg.Solution.Build)
	assert.Equal(t, filepath.Join(dir, ".projgen/out"), cfg.Resolve(cfg.Solution.Output))
	assert.Equal(t, RetryBackoffExponential, cfg.Packages.Retry.Backoff)
	assert.Equal(t, 2, cfg.Packages.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce.D())
	assert.Equal(t, "projgen.runs", cfg.Notify.Subject)
	assert.Equal(t, dir, cfg.BaseDir())
}

func TestLoadExpandsEnvFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	const key = "PROJGEN_CONFIG_TEST_OUTPUT"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	writeFile(t, filepath.Join(dir, ".env"), key+"=build/generated\n")
	path := filepath.Join(dir, DefaultFile)
	writeFile(t, path, `
solution:
  output: ${PROJGEN_CONFIG_TEST_OUTPUT}
  build: standalone
modules:
  - { name: engine, path: src, tier: 0 }
packages:
  timeout: 30s
  retry: { backoff: fixed, initial: 250ms, max: 1s, max_retries: 1 }
  remote:
    - { name: sdk, url: "https://example.com/sdk.zip" }
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build/generated", cfg.Solution.Output)
	assert.Equal(t, BuildStandalone, cfg.Solution.Build)
	assert.Equal(t, 30*time.Second, cfg.Packages.Timeout.D())
	assert.Equal(t, 250*time.Millisecond, cfg.Packages.Retry.Initial.D())
	assert.Equal(t, PackageArchive, cfg.Packages.Remote[0].Kind)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryConfig))

	tests := []struct {
		name     string
		content  string
		category perrors.ErrorCategory
	}{
		{"unknown field", "modules: []\nbogus: 1\n", perrors.CategoryConfig},
		{"bad duration", "modules: [{name: a, path: a}]\nwatch: { debounce: soon }\n", perrors.CategoryConfig},
		{"no modules", "solution: { name: x }\n", perrors.CategoryValidation},
		{"negative tier", "modules: [{name: a, path: a, tier: -1}]\n", perrors.CategoryValidation},
		{"duplicate module", "modules: [{name: a, path: a}, {name: a, path: b}]\n", perrors.CategoryValidation},
		{"bad flavor", "solution: { build: final }\nmodules: [{name: a, path: a}]\n", perrors.CategoryValidation},
		{"wildcard platform", "solution: { platform: '*' }\nmodules: [{name: a, path: a}]\n", perrors.CategoryValidation},
		{"bad package kind", "modules: [{name: a, path: a}]\npackages: { remote: [{name: p, url: u, kind: svn}] }\n", perrors.CategoryValidation},
		{"bad backoff", "modules: [{name: a, path: a}]\npackages: { retry: { backoff: random } }\n", perrors.CategoryValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFile)
			writeFile(t, path, tc.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, perrors.IsCategory(err, tc.category), "got %v", err)
		})
	}
}

func TestInitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "existing file must not be overwritten without force")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Modules, 2)
	assert.Equal(t, "sdk", cfg.Packages.Remote[0].Name)
	assert.Equal(t, 10*time.Second, cfg.Packages.Retry.Max.D())
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, BuildStandalone, NormalizeBuildFlavor(" Standalone "))
	assert.Equal(t, BuildFlavor(""), NormalizeBuildFlavor("final"))
	assert.Equal(t, RetryBackoffLinear, NormalizeRetryBackoff("LINEAR"))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("jitter"))
}
