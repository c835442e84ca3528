package resolve

import (
	"cmp"
	"slices"

	"git.home.luguber.info/inful/projgen/internal/library"
	"git.home.luguber.info/inful/projgen/internal/logfields"
	"git.home.luguber.info/inful/projgen/internal/project"
	"git.home.luguber.info/inful/projgen/internal/util/sets"
)

// DiagnosticKind classifies traversal findings.
type DiagnosticKind string

const DiagnosticCycle DiagnosticKind = "cycle"

// Diagnostic is a non-fatal finding reported while walking the graph.
type Diagnostic struct {
	Kind DiagnosticKind
	// Project is the traversal root the finding was made from.
	Project string
	// Path is the dependency chain, starting and ending at the same project for cycles.
	Path []string
}

func (d Diagnostic) String() string {
	return string(d.Kind) + ": " + formatPath(d.Path)
}

// LibraryKind selects which libraries Libraries collects.
type LibraryKind int

const (
	// LibrariesInternal is the project's own public and private libraries
	// plus the public libraries of its transitive dependencies.
	LibrariesInternal LibraryKind = iota
	// LibrariesAll adds the private libraries of transitive dependencies.
	LibrariesAll
)

// SortedDependencies returns the enabled transitive project dependencies of
// p, deepest first, ties broken by name. The root and applications are never
// part of the result. Cycles are skipped and reported as diagnostics.
func (g *Graph) SortedDependencies(p *project.Project) ([]*project.Project, error) {
	if !g.settled {
		return nil, ErrNotSettled
	}

	g.mu.Lock()
	cached, ok := g.sorted[p.Name]
	g.mu.Unlock()
	if ok {
		return slices.Clone(cached), nil
	}

	w := &walker{
		graph:   g,
		root:    p,
		depths:  map[string]int{},
		onStack: sets.New(p.Name),
		path:    []string{p.Name},
	}
	w.visit(p, 0)

	out := make([]*project.Project, 0, len(w.depths))
	for name := range w.depths {
		dep := g.byName[name]
		if dep == nil || dep == p || dep.IsApp() {
			continue
		}
		out = append(out, dep)
	}
	slices.SortFunc(out, func(a, b *project.Project) int {
		if c := cmp.Compare(w.depths[b.Name], w.depths[a.Name]); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	g.mu.Lock()
	if prev, ok := g.sorted[p.Name]; ok {
		out = prev
	} else {
		g.sorted[p.Name] = out
	}
	g.mu.Unlock()
	return slices.Clone(out), nil
}

type walker struct {
	graph   *Graph
	root    *project.Project
	depths  map[string]int
	onStack sets.Set[string]
	path    []string
}

// visit records the deepest level each project is reached at. A project
// already reached at least as deep is not walked again.
func (w *walker) visit(node *project.Project, depth int) {
	for _, d := range node.ProjectDeps() {
		if !d.Valid {
			continue
		}
		for _, t := range d.Projects {
			if !t.Enabled() {
				continue
			}
			if w.onStack.Has(t.Name) {
				w.graph.reportCycle(w.root.Name, append(slices.Clone(w.path), t.Name))
				continue
			}
			next := depth + 1
			if seen, ok := w.depths[t.Name]; ok && seen >= next {
				continue
			}
			w.depths[t.Name] = next

			w.onStack.Add(t.Name)
			w.path = append(w.path, t.Name)
			w.visit(t, next)
			w.path = w.path[:len(w.path)-1]
			w.onStack.Delete(t.Name)
		}
	}
}

// reportCycle records a cycle once, whatever traversal root found it.
func (g *Graph) reportCycle(root string, path []string) {
	start := slices.Index(path[:len(path)-1], path[len(path)-1])
	cycle := path[start:]
	key := cycleKey(cycle)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, seen := g.diagKeys[key]; seen {
		return
	}
	g.diagKeys[key] = struct{}{}
	g.diags = append(g.diags, Diagnostic{Kind: DiagnosticCycle, Project: root, Path: cycle})
	g.logger.Warn("Dependency cycle skipped", logfields.Project(root), logfields.Dependency(formatPath(cycle)))
}

// cycleKey rotates a closed path so it starts at its smallest member.
func cycleKey(cycle []string) string {
	members := cycle[:len(cycle)-1]
	if len(members) == 0 {
		return ""
	}
	minIdx := 0
	for i, m := range members {
		if m < members[minIdx] {
			minIdx = i
		}
	}
	rotated := append(slices.Clone(members[minIdx:]), members[:minIdx]...)
	return formatPath(rotated)
}

// Diagnostics returns the findings reported so far, sorted for stable output.
func (g *Graph) Diagnostics() []Diagnostic {
	g.mu.Lock()
	out := slices.Clone(g.diags)
	g.mu.Unlock()
	slices.SortFunc(out, func(a, b Diagnostic) int {
		return cmp.Compare(cycleKey(a.Path), cycleKey(b.Path))
	})
	return out
}

// Walk computes the sorted dependencies of every enabled project so that
// all reachable cycles are reported before rendering starts.
func (g *Graph) Walk() error {
	for _, p := range g.Enabled() {
		if _, err := g.SortedDependencies(p); err != nil {
			return err
		}
	}
	return nil
}

// Libraries collects the libraries visible to p, de-duplicated and sorted
// by root path, then name.
func (g *Graph) Libraries(p *project.Project, kind LibraryKind) ([]*library.Library, error) {
	deps, err := g.SortedDependencies(p)
	if err != nil {
		return nil, err
	}

	seen := sets.New[*library.Library]()
	var out []*library.Library
	add := func(libs []*library.Library) {
		for _, l := range libs {
			if seen.Add(l) {
				out = append(out, l)
			}
		}
	}

	add(p.Libraries(project.PublicLibrary))
	add(p.Libraries(project.PrivateLibrary))
	for _, d := range deps {
		add(d.Libraries(project.PublicLibrary))
		if kind == LibrariesAll {
			add(d.Libraries(project.PrivateLibrary))
		}
	}

	slices.SortFunc(out, func(a, b *library.Library) int {
		if c := cmp.Compare(a.Root, b.Root); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}
