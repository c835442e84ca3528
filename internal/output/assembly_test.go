package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
)

func TestCommitWritesOnlyChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "core.plan.yaml")

	first := NewAssembly()
	art, err := first.Create(path)
	require.NoError(t, err)
	art.Writeln("name: core")
	n, err := first.Commit(false)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "missing files are written, parents created")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: core\n", string(data))

	// Identical content: zero writes.
	same := NewAssembly()
	art, err = same.Create(path)
	require.NoError(t, err)
	art.Writeln("name: core")
	changed, err := same.Changed()
	require.NoError(t, err)
	assert.Empty(t, changed)
	n, err = same.Commit(false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, same.Len())

	// One byte different: one rewrite.
	diff := NewAssembly()
	art, err = diff.Create(path)
	require.NoError(t, err)
	art.Writeln("name: cora")
	changed, err = diff.Changed()
	require.NoError(t, err)
	assert.Equal(t, []string{path}, changed)
	n, err = diff.Commit(false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: cora\n", string(data))
}

func TestCommitContinuesPastFailedArtifact(t *testing.T) {
	dir := t.TempDir()
	// A regular file where a directory is expected makes the first artifact unwritable.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("file"), 0o600))
	blocked := filepath.Join(dir, "a", "blocked.plan.yaml")
	ok := filepath.Join(dir, "b.plan.yaml")

	asm := NewAssembly()
	for _, p := range []string{blocked, ok} {
		art, err := asm.Create(p)
		require.NoError(t, err)
		art.Writeln("name: x")
	}

	n, err := asm.Commit(false)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), blocked)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryFileSystem))

	data, readErr := os.ReadFile(ok)
	require.NoError(t, readErr)
	assert.Equal(t, "name: x\n", string(data))
}

func TestCommitTouchesUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0o600))
	old := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	asm := NewAssembly()
	fixed := time.Now().Add(-time.Hour).Truncate(time.Second)
	asm.now = func() time.Time { return fixed }
	art, err := asm.Create(path)
	require.NoError(t, err)
	_, _ = art.WriteString("same")

	n, err := asm.Commit(false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "unchanged files keep their time without touch")

	n, err = asm.Commit(true)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(fixed), "touch bumps the time, got %v", info.ModTime())
}

func TestCreateRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	asm := NewAssembly()
	_, err := asm.Create(filepath.Join(dir, "x.yaml"))
	require.NoError(t, err)
	_, err = asm.Create(filepath.Join(dir, "sub", "..", "x.yaml"))
	require.True(t, errors.Is(err, ErrDuplicateArtifact), "got %v", err)
}

func TestConcurrentCreate(t *testing.T) {
	dir := t.TempDir()
	asm := NewAssembly()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			art, err := asm.Create(filepath.Join(dir, fmt.Sprintf("p%02d.txt", i)))
			if assert.NoError(t, err) {
				art.Writelnf("project %d", i)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, asm.Len())

	arts := asm.Artifacts()
	assert.Equal(t, filepath.Join(dir, "p00.txt"), arts[0].Path())
	assert.Equal(t, "project 0\n", string(arts[0].Bytes()))

	n, err := asm.Commit(false)
	require.NoError(t, err)
	assert.Equal(t, 32, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 32, "no temporary files left behind")
}
