// Package library implements the library catalog: manifest registration,
// name lookup and per-platform/per-configuration state merging.
package library

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/logfields"
)

// Catalog is the set of libraries known to one generator run. It is safe
// for concurrent registration.
type Catalog struct {
	mu     sync.RWMutex
	libs   map[string]*Library
	order  []string
	logger *slog.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{libs: make(map[string]*Library), logger: logger}
}

// Register parses the manifest in dir and adds the library. A manifest
// that cannot be parsed is a fatal error. A manifest naming an unset
// external location still registers, as an ill-defined library.
func (c *Catalog) Register(dir string) (*Library, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, perrors.ManifestInvalid(dir, err)
	}
	path := filepath.Join(abs, ManifestFile)
	m, err := readManifest(path)
	if err != nil {
		return nil, perrors.ManifestInvalid(path, err)
	}

	name := m.Name
	if name == "" {
		name = filepath.Base(abs)
	}

	root := abs
	wellDefined := true
	if m.External != "" {
		if ext := os.Getenv(m.External); ext != "" {
			root = resolvePath(abs, ext)
		} else {
			wellDefined = false
			c.logger.Warn("Library external location not set",
				logfields.Library(name),
				slog.String("env", m.External),
				logfields.Path(abs))
		}
	}

	var lib *Library
	if wellDefined {
		lib = m.build(name, abs, root)
	} else {
		lib = &Library{Name: name, Dir: abs, Root: root, External: m.External}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.libs[name]; ok {
		if existing.Dir != abs {
			c.logger.Warn("Duplicate library ignored",
				logfields.Library(name),
				slog.String("kept", existing.Dir),
				logfields.Path(abs))
		}
		return existing, nil
	}
	c.libs[name] = lib
	c.order = append(c.order, name)
	c.logger.Debug("Registered library", logfields.Library(name), logfields.Path(root), slog.Bool("well_defined", lib.WellDefined))
	return lib, nil
}

// RegisterDir registers the manifest in every immediate subdirectory of root.
// Subdirectories without a manifest are skipped.
func (c *Catalog) RegisterDir(root string) ([]*Library, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read library dir %s: %w", root, err)
	}
	var out []*Library
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if !HasManifest(dir) {
			continue
		}
		lib, err := c.Register(dir)
		if err != nil {
			return out, err
		}
		out = append(out, lib)
	}
	return out, nil
}

// Lookup returns the library registered under name.
func (c *Catalog) Lookup(name string) (*Library, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lib, ok := c.libs[name]
	return lib, ok
}

// Libraries returns every registered library sorted by name.
func (c *Catalog) Libraries() []*Library {
	c.mu.RLock()
	out := make([]*Library, 0, len(c.libs))
	for _, name := range c.order {
		out = append(out, c.libs[name])
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Library) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Len returns the number of registered libraries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.libs)
}
