package resolve

import (
	"cmp"
	"slices"
	"strings"

	"git.home.luguber.info/inful/projgen/internal/library"
	"git.home.luguber.info/inful/projgen/internal/project"
)

// NameResolver maps dependency targets to projects and libraries.
type NameResolver interface {
	// ResolveProjects returns the projects a target names, or nil when the
	// target cannot be resolved. An empty non-nil slice is a resolved
	// target with no members.
	ResolveProjects(pattern string, maxTier int) []*project.Project
	// ResolveLibrary returns the named library, or nil.
	ResolveLibrary(name string) *library.Library
}

// Index is the default NameResolver backed by the discovered projects and
// a library catalog.
type Index struct {
	projects []*project.Project
	byName   map[string]*project.Project
	catalog  *library.Catalog
}

// NewIndex builds an index over projects. Later duplicates are ignored;
// the graph rejects them before an index is consulted.
func NewIndex(projects []*project.Project, catalog *library.Catalog) *Index {
	idx := &Index{
		projects: slices.Clone(projects),
		byName:   make(map[string]*project.Project, len(projects)),
		catalog:  catalog,
	}
	slices.SortFunc(idx.projects, byName)
	for _, p := range idx.projects {
		if _, ok := idx.byName[p.Name]; !ok {
			idx.byName[p.Name] = p
		}
	}
	return idx
}

func (idx *Index) ResolveProjects(pattern string, maxTier int) []*project.Project {
	switch {
	case pattern == project.AllTestsTarget:
		out := []*project.Project{}
		for _, p := range idx.projects {
			if p.Attrs.HasTests && p.Tier() == maxTier {
				out = append(out, p)
			}
		}
		return out

	case strings.HasSuffix(pattern, "*"):
		prefix := strings.TrimSuffix(pattern, "*")
		var out []*project.Project
		for _, p := range idx.projects {
			if strings.HasPrefix(p.Name, prefix) && p.Tier() <= maxTier && !p.IsApp() {
				out = append(out, p)
			}
		}
		return out

	default:
		p, ok := idx.byName[pattern]
		if !ok || p.Tier() > maxTier {
			return nil
		}
		return []*project.Project{p}
	}
}

func (idx *Index) ResolveLibrary(name string) *library.Library {
	if idx.catalog == nil {
		return nil
	}
	lib, ok := idx.catalog.Lookup(name)
	if !ok {
		return nil
	}
	return lib
}

func byName(a, b *project.Project) int { return cmp.Compare(a.Name, b.Name) }
