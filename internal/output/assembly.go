// Package output collects generated files in memory and writes to disk only
// the ones whose content changed, so build tools watching timestamps do not
// rebuild for no reason.
package output

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
)

// ErrDuplicateArtifact is returned when two renderers claim the same path.
var ErrDuplicateArtifact = errors.New("artifact already registered")

// Artifact is a named in-memory file. It is written by a single renderer.
type Artifact struct {
	path string
	buf  bytes.Buffer
}

// Path returns the absolute destination path.
func (a *Artifact) Path() string { return a.path }

// Bytes returns the content written so far.
func (a *Artifact) Bytes() []byte { return a.buf.Bytes() }

func (a *Artifact) Write(p []byte) (int, error) { return a.buf.Write(p) }

func (a *Artifact) WriteString(s string) (int, error) { return a.buf.WriteString(s) }

// Writeln writes s followed by a newline.
func (a *Artifact) Writeln(s string) {
	a.buf.WriteString(s)
	a.buf.WriteByte('\n')
}

// Writelnf writes a formatted line.
func (a *Artifact) Writelnf(format string, args ...any) {
	fmt.Fprintf(&a.buf, format, args...)
	a.buf.WriteByte('\n')
}

// Assembly is the set of artifacts produced by one generator run.
type Assembly struct {
	mu        sync.Mutex
	artifacts []*Artifact
	paths     map[string]struct{}
	now       func() time.Time
}

// NewAssembly creates an empty assembly.
func NewAssembly() *Assembly {
	return &Assembly{paths: make(map[string]struct{}), now: time.Now}
}

// Create registers a new artifact at path. Safe for concurrent use.
func (a *Assembly) Create(path string) (*Artifact, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("artifact path %s: %w", path, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.paths[abs]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateArtifact, abs)
	}
	art := &Artifact{path: abs}
	a.paths[abs] = struct{}{}
	a.artifacts = append(a.artifacts, art)
	return art, nil
}

// Len returns the number of registered artifacts.
func (a *Assembly) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.artifacts)
}

// Artifacts returns the registered artifacts sorted by path.
func (a *Assembly) Artifacts() []*Artifact {
	a.mu.Lock()
	out := slices.Clone(a.artifacts)
	a.mu.Unlock()
	slices.SortFunc(out, func(x, y *Artifact) int { return cmp.Compare(x.path, y.path) })
	return out
}

// Changed returns the paths Commit would rewrite.
func (a *Assembly) Changed() ([]string, error) {
	var out []string
	for _, art := range a.Artifacts() {
		same, err := unchanged(art)
		if err != nil {
			return nil, err
		}
		if !same {
			out = append(out, art.path)
		}
	}
	return out, nil
}

// Commit writes every artifact whose content differs from disk and returns
// how many were rewritten. With touchUnchanged the modification time of
// identical files is bumped instead. A failed artifact does not stop the
// others; the returned error joins one error per stale path.
func (a *Assembly) Commit(touchUnchanged bool) (int, error) {
	rewritten := 0
	var errs []error
	for _, art := range a.Artifacts() {
		same, err := unchanged(art)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if same {
			if touchUnchanged {
				now := a.now()
				if err := os.Chtimes(art.path, now, now); err != nil {
					errs = append(errs, perrors.WriteFailed(art.path, err))
				}
			}
			continue
		}
		if err := writeAtomic(art.path, art.buf.Bytes()); err != nil {
			errs = append(errs, perrors.WriteFailed(art.path, err))
			continue
		}
		rewritten++
	}
	return rewritten, errors.Join(errs...)
}

func unchanged(art *Artifact) (bool, error) {
	current, err := os.ReadFile(art.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, perrors.WriteFailed(art.path, fmt.Errorf("read existing: %w", err))
	}
	return bytes.Equal(current, art.buf.Bytes()), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temporary file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
