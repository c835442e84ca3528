package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
)

const testConfig = `solution:
  name: demo
  platform: win
  configuration: Release
modules:
  - name: engine
    path: src/engine
    tier: 0
  - name: game
    path: src/game
    tier: 1
libraries:
  dirs: [libs]
history:
  path: .projgen/history.db
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func setupWorkspace(t *testing.T, cfg string) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projgen.yaml"), cfg)
	writeFile(t, filepath.Join(root, "libs", "zlib", "library.yaml"),
		"configs:\n  - platforms: \"*\"\n    configs: \"*\"\n    include: [include]\n  - platforms: win\n    configs: release\n    link: [lib/zlib.lib]\n    system: [{name: ws2_32}]\n")
	writeFile(t, filepath.Join(root, "src", "engine", "base", "build.yaml"), "privatelib: zlib\n")
	writeFile(t, filepath.Join(root, "src", "engine", "render", "build.yaml"), "dependency: [base]\n")
	writeFile(t, filepath.Join(root, "src", "game", "launcher", "build.yaml"), "app: true\ndependency: [render]\n")
	return root
}

func execute(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Exit(func(int) { t.Fatalf("unexpected exit") }), kong.Vars{"version": "test"})
	require.NoError(t, err)
	ctx, err := parser.Parse(append([]string{"--config", filepath.Join(root, "projgen.yaml")}, args...))
	require.NoError(t, err)

	var buf bytes.Buffer
	err = ctx.Run(&Global{Out: &buf}, &cli)
	return buf.String(), err
}

func TestGenerateCommand(t *testing.T) {
	root := setupWorkspace(t, testConfig)

	out, err := execute(t, root, "generate")
	require.NoError(t, err)
	assert.Contains(t, out, "demo win|Release: 3/3 projects enabled, 1 libraries")
	assert.FileExists(t, filepath.Join(root, ".projgen", "out", "launcher.plan.yaml"))

	out, err = execute(t, root, "generate", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "dry run: 0 of")

	out, err = execute(t, root, "generate", "--dry-run", "--configuration", "Debug")
	require.NoError(t, err)
	assert.NotContains(t, out, "dry run: 0 of")
}

func TestGenerateIsDefaultCommand(t *testing.T) {
	root := setupWorkspace(t, testConfig)
	out, err := execute(t, root)
	require.NoError(t, err)
	assert.Contains(t, out, "artifacts rewritten")
}

func TestGenerateRejectsUnknownBuildFlavor(t *testing.T) {
	root := setupWorkspace(t, testConfig)
	_, err := execute(t, root, "generate", "--build", "shipping")
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryValidation))
}

func TestDepsCommand(t *testing.T) {
	root := setupWorkspace(t, testConfig)

	out, err := execute(t, root, "deps", "launcher")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "launcher (app, module game, tier 1)", lines[0])
	assert.Contains(t, out, "dependencies (link order):\n  base\n  render\n")
	assert.Contains(t, out, "libraries (internal): -")
	assert.Contains(t, out, "libraries (all): zlib")

	_, err = execute(t, root, "deps", "nothing")
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryValidation))
}

func TestDepsShowsExclusion(t *testing.T) {
	root := setupWorkspace(t, testConfig)
	writeFile(t, filepath.Join(root, "src", "engine", "net", "build.yaml"), "publiclib: openssl\n")

	out, err := execute(t, root, "deps", "net")
	require.NoError(t, err)
	assert.Contains(t, out, "excluded: missing-library (openssl)")
}

func TestLibsCommand(t *testing.T) {
	root := setupWorkspace(t, testConfig)

	out, err := execute(t, root, "libs")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "zlib")

	out, err = execute(t, root, "libs", "--library", "zlib")
	require.NoError(t, err)
	assert.Contains(t, out, "zlib [win|Release]")
	assert.Contains(t, out, filepath.Join(root, "libs", "zlib", "lib", "zlib.lib"))
	assert.Contains(t, out, "ws2_32")

	out, err = execute(t, root, "libs", "--library", "zlib", "--platform", "linux")
	require.NoError(t, err)
	assert.NotContains(t, out, "ws2_32")

	_, err = execute(t, root, "libs", "--library", "png")
	assert.True(t, perrors.IsCategory(err, perrors.CategoryValidation))
}

func TestHistoryCommand(t *testing.T) {
	root := setupWorkspace(t, testConfig)
	_, err := execute(t, root, "generate")
	require.NoError(t, err)

	out, err := execute(t, root, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "OUTCOME")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "win|Release")
}

func TestHistoryRunFlag(t *testing.T) {
	root := setupWorkspace(t, testConfig)
	_, err := execute(t, root, "generate")
	require.NoError(t, err)

	out, err := execute(t, root, "history", "--run", "unknown-run")
	require.NoError(t, err)
	assert.Contains(t, out, "run unknown-run excluded no projects")
}

func TestHistoryDisabled(t *testing.T) {
	root := setupWorkspace(t, strings.Replace(testConfig, "history:\n  path: .projgen/history.db\n", "", 1))
	_, err := execute(t, root, "history")
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryValidation))
}

func TestInitCommand(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, root, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized successfully")
	assert.FileExists(t, filepath.Join(root, "projgen.yaml"))

	_, err = execute(t, root, "init")
	require.Error(t, err)

	_, err = execute(t, root, "init", "--force")
	require.NoError(t, err)
}

func TestWatchIntervalFlag(t *testing.T) {
	root := setupWorkspace(t, testConfig)
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	_, err = parser.Parse([]string{"--config", filepath.Join(root, "projgen.yaml"), "watch", "--interval", "5m"})
	require.NoError(t, err)
	assert.Equal(t, "5m0s", cli.Watch.Interval.String())
}
