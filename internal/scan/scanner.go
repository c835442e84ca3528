// Package scan discovers projects below module roots. A project is any
// directory holding a build.yaml declaration; its merged name is the
// directory path below the module root with separators replaced by "_".
package scan

import (
	"cmp"
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/logfields"
	"git.home.luguber.info/inful/projgen/internal/project"
)

// Scanner walks module roots and parses declarations in parallel.
type Scanner struct {
	logger  *slog.Logger
	workers int
}

// NewScanner creates a scanner parsing up to workers declarations at once.
func NewScanner(logger *slog.Logger, workers int) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Scanner{logger: logger, workers: workers}
}

type candidate struct {
	module *project.Module
	dir    string
	name   string
}

// Scan returns the projects of every module sorted by merged name. Any
// unreadable or invalid declaration fails the scan, as does a merged name
// claimed twice.
func (s *Scanner) Scan(ctx context.Context, modules []*project.Module) ([]*project.Project, error) {
	var found []candidate
	for _, m := range modules {
		c, err := s.walk(m)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Scanned module", logfields.Module(m.Name), logfields.Path(m.Root), logfields.Count(len(c)))
		found = append(found, c...)
	}

	seen := make(map[string]string, len(found))
	for _, c := range found {
		if prev, dup := seen[c.name]; dup {
			return nil, perrors.DuplicateProject(c.name, prev, c.dir)
		}
		seen[c.name] = c.dir
	}

	projects := make([]*project.Project, len(found))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range found {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(c.dir, DeclarationFile)
			attrs, err := parseDeclaration(path)
			if err != nil {
				return perrors.DeclarationInvalid(path, err)
			}
			projects[i] = project.New(c.name, c.dir, c.module, attrs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(projects, func(a, b *project.Project) int { return cmp.Compare(a.Name, b.Name) })
	return projects, nil
}

func (s *Scanner) walk(m *project.Module) ([]candidate, error) {
	var out []candidate
	err := filepath.WalkDir(m.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != m.Root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != DeclarationFile {
			return nil
		}
		dir := filepath.Dir(path)
		rel, err := filepath.Rel(m.Root, dir)
		if err != nil {
			return err
		}
		if rel == "." {
			s.logger.Warn("Ignoring declaration at module root", logfields.Module(m.Name), logfields.Path(path))
			return nil
		}
		out = append(out, candidate{module: m, dir: dir, name: project.MergedName(filepath.ToSlash(rel))})
		return nil
	})
	if err != nil {
		return nil, perrors.ConfigInvalid(m.Root, err).WithContext("module", m.Name)
	}
	return out, nil
}
