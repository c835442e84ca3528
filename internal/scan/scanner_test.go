package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/project"
)

func declare(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DeclarationFile), []byte(content), 0o600))
}

func TestScanDiscoversProjects(t *testing.T) {
	root := t.TempDir()
	engine := filepath.Join(root, "engine")
	game := filepath.Join(root, "game")

	declare(t, filepath.Join(engine, "core", "math"), `
tests: true
dependency: [core_types]
publiclib: [zlib]
privatelib: [lz4]
options:
  pch: generate
  defines: [A, B]
`)
	declare(t, filepath.Join(engine, "core", "types"), "")
	declare(t, filepath.Join(engine, "core", "math", "simd"), "devonly: true\n")
	declare(t, filepath.Join(engine, ".hidden", "skip"), "app: true\n")
	declare(t, filepath.Join(game, "launcher"), "app: true\ndependency: [\"core_*\"]\n")
	declare(t, engine, "") // module root is never a project

	modules := []*project.Module{
		{Name: "engine", Root: engine, Tier: 0},
		{Name: "game", Root: game, Tier: 1},
	}
	projects, err := NewScanner(nil, 4).Scan(context.Background(), modules)
	require.NoError(t, err)

	var names []string
	for _, p := range projects {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"core_math", "core_math_simd", "core_types", "launcher"}, names)

	math := projects[0]
	assert.True(t, math.Attrs.HasTests)
	assert.Equal(t, []string{"core_types"}, math.Attrs.Dependencies)
	assert.Equal(t, "generate", math.Attrs.Extra.First("pch"))
	assert.Equal(t, []string{"A", "B"}, math.Attrs.Extra.Get("defines"))
	assert.Len(t, math.Deps, 3)
	assert.Equal(t, filepath.Join(engine, "core", "math"), math.Dir)

	assert.True(t, projects[1].DevOnly())
	assert.True(t, projects[3].IsApp())
	assert.Equal(t, 1, projects[3].Tier())
}

func TestScanAcceptsScalarLists(t *testing.T) {
	root := t.TempDir()
	declare(t, filepath.Join(root, "codec"), "publiclib: zlib\ndependency: core\nprivatelib: lz4\n")
	declare(t, filepath.Join(root, "core"), "")

	projects, err := NewScanner(nil, 1).Scan(context.Background(), []*project.Module{{Name: "engine", Root: root}})
	require.NoError(t, err)
	require.Len(t, projects, 2)

	codec := projects[0]
	assert.Equal(t, "codec", codec.Name)
	assert.Equal(t, []string{"zlib"}, codec.Attrs.PublicLibs)
	assert.Equal(t, []string{"core"}, codec.Attrs.Dependencies)
	assert.Equal(t, []string{"lz4"}, codec.Attrs.PrivateLibs)
}

func TestScanInvalidDeclarationIsFatal(t *testing.T) {
	tests := map[string]string{
		"syntax":      "dependency: [unterminated\n",
		"unknown key": "depends: [a]\n",
		"empty name":  "dependency: [\"\"]\n",
		"bad option":  "options:\n  pch: { nested: map }\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			declare(t, filepath.Join(root, "broken"), content)
			_, err := NewScanner(nil, 2).Scan(context.Background(), []*project.Module{{Name: "m", Root: root}})
			require.Error(t, err)
			assert.True(t, perrors.IsCategory(err, perrors.CategoryConfig), "got %v", err)
			assert.Contains(t, err.Error(), "project declaration invalid")
		})
	}
}

func TestScanDuplicateMergedNames(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	declare(t, filepath.Join(a, "core"), "")
	declare(t, filepath.Join(b, "core"), "")

	_, err := NewScanner(nil, 1).Scan(context.Background(), []*project.Module{
		{Name: "a", Root: a},
		{Name: "b", Root: b, Tier: 1},
	})
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryValidation))
}

func TestScanMissingModuleRoot(t *testing.T) {
	_, err := NewScanner(nil, 1).Scan(context.Background(), []*project.Module{
		{Name: "ghost", Root: filepath.Join(t.TempDir(), "missing")},
	})
	require.Error(t, err)
}
