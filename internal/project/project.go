// Package project holds the in-memory model of buildable units: modules,
// projects, their typed attributes and their dependency edges.
//
// Projects are created by discovery and mutated only through exclusion
// (Disable). Exclusion is monotonic: once a project is disabled it is never
// enabled again, which is what lets the resolver reach a fixed point.
package project

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/projgen/internal/library"
)

// Module is a source root with a dependency tier. Projects may only depend
// on modules at their own tier or below.
type Module struct {
	Name string
	Root string
	Tier int
}

// ExclusionReason records why a project was disabled.
type ExclusionReason string

const (
	ReasonMissingLibrary    ExclusionReason = "missing-library"
	ReasonMissingDependency ExclusionReason = "missing-dependency"
	ReasonPropagated        ExclusionReason = "propagated"
	ReasonFiltered          ExclusionReason = "filtered"
)

// Exclusion is the first reason a project was disabled for.
type Exclusion struct {
	Project string
	Reason  ExclusionReason
	Detail  string
}

func (e Exclusion) String() string {
	return fmt.Sprintf("%s: %s (%s)", e.Project, e.Reason, e.Detail)
}

// Project is a buildable unit discovered under a module root.
type Project struct {
	// Name is the merged name: directory names below the module root joined by "_".
	Name   string
	Dir    string
	Module *Module
	Attrs  Attributes
	Deps   []*Dependency

	enabled   bool
	exclusion *Exclusion
}

// New creates an enabled project and derives its dependency edges from attrs.
func New(name, dir string, module *Module, attrs Attributes) *Project {
	p := &Project{
		Name:    name,
		Dir:     dir,
		Module:  module,
		Attrs:   attrs,
		enabled: true,
	}
	for _, target := range attrs.Dependencies {
		p.Deps = append(p.Deps, NewDependency(ProjectReference, target))
	}
	for _, name := range attrs.PublicLibs {
		p.Deps = append(p.Deps, NewDependency(PublicLibrary, name))
	}
	for _, name := range attrs.PrivateLibs {
		p.Deps = append(p.Deps, NewDependency(PrivateLibrary, name))
	}
	return p
}

// MergedName builds a project name from its directory path relative to the module root.
func MergedName(rel string) string {
	rel = strings.Trim(strings.ReplaceAll(rel, "\\", "/"), "/")
	return strings.ReplaceAll(rel, "/", "_")
}

// Tier returns the owning module's tier.
func (p *Project) Tier() int {
	if p.Module == nil {
		return 0
	}
	return p.Module.Tier
}

func (p *Project) Enabled() bool { return p.enabled }

// IsApp reports whether the project is an application. Applications are
// roots only: they can never be a dependency target.
func (p *Project) IsApp() bool { return p.Attrs.App }

// DevOnly reports whether the project only exists in dev builds.
func (p *Project) DevOnly() bool { return p.Attrs.DevOnly }

// Disable excludes the project. Only the first call records a reason; it
// reports whether the project was enabled before the call.
func (p *Project) Disable(reason ExclusionReason, detail string) bool {
	if !p.enabled {
		return false
	}
	p.enabled = false
	p.exclusion = &Exclusion{Project: p.Name, Reason: reason, Detail: detail}
	return true
}

// Exclusion returns why the project was disabled, or nil while enabled.
func (p *Project) Exclusion() *Exclusion { return p.exclusion }

// ProjectDeps returns the project-reference edges.
func (p *Project) ProjectDeps() []*Dependency {
	return p.depsOfType(ProjectReference)
}

// LibraryDeps returns the library edges of the given type.
func (p *Project) LibraryDeps(t DependencyType) []*Dependency {
	return p.depsOfType(t)
}

func (p *Project) depsOfType(t DependencyType) []*Dependency {
	var out []*Dependency
	for _, d := range p.Deps {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

// Libraries returns the resolved libraries of valid edges of the given type.
func (p *Project) Libraries(t DependencyType) []*library.Library {
	var out []*library.Library
	for _, d := range p.depsOfType(t) {
		if d.Valid && d.Library != nil {
			out = append(out, d.Library)
		}
	}
	return out
}

func (p *Project) String() string { return p.Name }
