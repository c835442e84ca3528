package project

import (
	"strings"

	"git.home.luguber.info/inful/projgen/internal/library"
)

// DependencyType classifies a dependency edge.
type DependencyType int

const (
	ProjectReference DependencyType = iota
	PublicLibrary
	PrivateLibrary
)

func (t DependencyType) String() string {
	switch t {
	case ProjectReference:
		return "project"
	case PublicLibrary:
		return "public-library"
	case PrivateLibrary:
		return "private-library"
	default:
		return "unknown"
	}
}

// AllTestsTarget is the sentinel target that expands to every test-bearing
// project at the caller's tier.
const AllTestsTarget = "*all_tests*"

// Dependency is one declared edge. Resolution fills Projects or Library and
// Valid; propagation may later shrink Projects.
type Dependency struct {
	Type   DependencyType
	Target string
	// Hard edges exclude their owner when they cannot be satisfied.
	// Only trailing-wildcard targets are soft.
	Hard bool

	Projects []*Project
	Library  *library.Library
	Valid    bool
}

// NewDependency creates an unresolved edge.
func NewDependency(t DependencyType, target string) *Dependency {
	return &Dependency{
		Type:   t,
		Target: target,
		Hard:   target == AllTestsTarget || !strings.HasSuffix(target, "*"),
	}
}

// IsWildcard reports whether the target is a "prefix*" pattern.
func (d *Dependency) IsWildcard() bool {
	return d.Target != AllTestsTarget && strings.HasSuffix(d.Target, "*")
}

// IsLibrary reports whether the edge points at the library catalog.
func (d *Dependency) IsLibrary() bool {
	return d.Type == PublicLibrary || d.Type == PrivateLibrary
}
