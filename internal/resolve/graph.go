// Package resolve turns discovered projects into a consistent build plan.
//
// A Graph is built once per generator run. Resolve binds every declared edge
// through a NameResolver, Propagate spreads exclusions until a full pass
// changes nothing, and only then may callers ask for transitive dependency
// orders and library sets. Those answers are memoized per Graph.
package resolve

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/projgen/internal/logfields"
	"git.home.luguber.info/inful/projgen/internal/project"
)

// ErrNotSettled is returned by queries that need the propagation fixed point.
var ErrNotSettled = errors.New("dependency graph not settled: call Propagate first")

// Graph is the arena of projects of one generator run, keyed by merged name.
type Graph struct {
	projects []*project.Project
	byName   map[string]*project.Project
	resolver NameResolver
	logger   *slog.Logger
	maxTier  int
	resolved bool
	settled  bool

	mu       sync.Mutex
	sorted   map[string][]*project.Project
	diags    []Diagnostic
	diagKeys map[string]struct{}
}

// PropagationStats summarizes a Propagate call.
type PropagationStats struct {
	Passes   int
	Excluded int
}

// New creates a graph over projects. Merged names must be unique.
func New(projects []*project.Project, resolver NameResolver, logger *slog.Logger) (*Graph, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Graph{
		projects: slices.Clone(projects),
		byName:   make(map[string]*project.Project, len(projects)),
		resolver: resolver,
		logger:   logger,
		sorted:   make(map[string][]*project.Project),
		diagKeys: make(map[string]struct{}),
	}
	slices.SortFunc(g.projects, byName)
	for _, p := range g.projects {
		if prev, dup := g.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate project %q in %s and %s", p.Name, prev.Dir, p.Dir)
		}
		g.byName[p.Name] = p
		if t := p.Tier(); t > g.maxTier {
			g.maxTier = t
		}
	}
	return g, nil
}

// Projects returns every project sorted by name, including excluded ones.
func (g *Graph) Projects() []*project.Project { return slices.Clone(g.projects) }

// Project returns the project with the given merged name.
func (g *Graph) Project(name string) (*project.Project, bool) {
	p, ok := g.byName[name]
	return p, ok
}

// Enabled returns the projects still enabled, sorted by name.
func (g *Graph) Enabled() []*project.Project {
	var out []*project.Project
	for _, p := range g.projects {
		if p.Enabled() {
			out = append(out, p)
		}
	}
	return out
}

// Exclusions returns the exclusion record of every disabled project, sorted by name.
func (g *Graph) Exclusions() []project.Exclusion {
	var out []project.Exclusion
	for _, p := range g.projects {
		if ex := p.Exclusion(); ex != nil {
			out = append(out, *ex)
		}
	}
	return out
}

// Settled reports whether Propagate has reached its fixed point.
func (g *Graph) Settled() bool { return g.settled }

// MaxTier is the tier ceiling applications resolve against.
func (g *Graph) MaxTier() int { return g.maxTier }

// Resolve binds every dependency edge. A library edge that cannot be
// resolved excludes its owner. A project edge that cannot be resolved is
// marked invalid and excludes its owner only when the edge is hard.
func (g *Graph) Resolve() {
	for _, p := range g.projects {
		ceiling := p.Tier()
		if p.IsApp() {
			ceiling = g.maxTier
		}
		for _, d := range p.Deps {
			g.resolveDependency(p, d, ceiling)
		}
	}
	g.resolved = true
}

func (g *Graph) resolveDependency(owner *project.Project, d *project.Dependency, ceiling int) {
	if d.IsLibrary() {
		lib := g.resolver.ResolveLibrary(d.Target)
		if lib == nil {
			d.Valid = false
			if owner.Disable(project.ReasonMissingLibrary, d.Target) {
				g.logger.Warn("Project excluded: library not found",
					logfields.Project(owner.Name), logfields.Library(d.Target))
			}
			return
		}
		d.Library = lib
		d.Valid = true
		return
	}

	matches := g.resolver.ResolveProjects(d.Target, ceiling)
	if matches == nil {
		d.Valid = false
		if d.Hard {
			if owner.Disable(project.ReasonMissingDependency, d.Target) {
				g.logger.Warn("Project excluded: dependency not resolved",
					logfields.Project(owner.Name), logfields.Dependency(d.Target), slog.Int("max_tier", ceiling))
			}
			return
		}
		g.logger.Debug("Optional dependency matched nothing",
			logfields.Project(owner.Name), logfields.Dependency(d.Target))
		return
	}

	targets := make([]*project.Project, 0, len(matches))
	for _, m := range matches {
		switch {
		case m == owner:
			continue
		case m.IsApp():
			g.logger.Warn("Applications cannot be dependencies",
				logfields.Project(owner.Name), logfields.Dependency(m.Name))
			continue
		}
		targets = append(targets, m)
	}
	d.Projects = targets
	d.Valid = true
}

// Propagate repeats validation passes over every enabled project until a
// pass excludes nothing. The pass count is bounded by the project count plus
// the final no-change pass.
func (g *Graph) Propagate() PropagationStats {
	if !g.resolved {
		g.Resolve()
	}
	var stats PropagationStats
	limit := len(g.projects) + 1
	for stats.Passes < limit {
		stats.Passes++
		changed := 0
		for _, p := range g.projects {
			if p.Enabled() && g.validateDependency(p) {
				changed++
			}
		}
		g.logger.Debug("Propagation pass", logfields.Pass(stats.Passes), logfields.Count(changed))
		if changed == 0 {
			break
		}
		stats.Excluded += changed
	}
	g.settled = true
	return stats
}

// validateDependency drops disabled targets from the owner's project edges.
// A hard edge losing a target with the owner's dev-only classification
// excludes the owner; a classification mismatch is tolerated. Reports
// whether the owner was excluded.
func (g *Graph) validateDependency(owner *project.Project) bool {
	for _, d := range owner.ProjectDeps() {
		if !d.Valid {
			continue
		}
		kept := make([]*project.Project, 0, len(d.Projects))
		for _, t := range d.Projects {
			if t.Enabled() {
				kept = append(kept, t)
				continue
			}
			if !d.Hard {
				continue
			}
			if owner.DevOnly() == t.DevOnly() {
				owner.Disable(project.ReasonPropagated, t.Name)
				g.logger.Warn("Project excluded: dependency excluded",
					logfields.Project(owner.Name), logfields.Dependency(t.Name))
				return true
			}
			g.logger.Info("Dropped excluded dependency of different build flavor",
				logfields.Project(owner.Name), logfields.Dependency(t.Name),
				slog.Bool("owner_dev_only", owner.DevOnly()))
		}
		d.Projects = kept
		if len(d.Projects) == 0 && !d.Hard {
			d.Valid = false
		}
	}
	return false
}

// DependencyNames returns the merged names of projects, for logs and plans.
func DependencyNames(projects []*project.Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.Name
	}
	return out
}

func formatPath(path []string) string {
	return strings.Join(path, " -> ")
}
