package render

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/projgen/internal/library"
	"git.home.luguber.info/inful/projgen/internal/project"
	"git.home.luguber.info/inful/projgen/internal/resolve"
)

// PlanSuffix is appended to the name of every plan artifact.
const PlanSuffix = ".plan.yaml"

// PlanRenderer writes a YAML build plan per project plus one solution plan.
// The plan holds everything a backend generator needs: the ordered
// dependency list, visible libraries and their merged state.
type PlanRenderer struct{}

func (PlanRenderer) Name() string { return "plan" }

type projectPlan struct {
	Name          string                  `yaml:"name"`
	GUID          string                  `yaml:"guid"`
	Module        string                  `yaml:"module"`
	Tier          int                     `yaml:"tier"`
	Dir           string                  `yaml:"dir"`
	Kind          string                  `yaml:"kind"`
	DevOnly       bool                    `yaml:"devonly,omitempty"`
	EngineOnly    bool                    `yaml:"engineonly,omitempty"`
	Tests         bool                    `yaml:"tests,omitempty"`
	Platform      string                  `yaml:"platform"`
	Configuration string                  `yaml:"configuration"`
	Dependencies  []planRef               `yaml:"dependencies,omitempty"`
	Libraries     []string                `yaml:"libraries,omitempty"`
	Include       []string                `yaml:"include,omitempty"`
	Link          []string                `yaml:"link,omitempty"`
	Deploy        []library.DeployFile    `yaml:"deploy,omitempty"`
	System        []library.SystemLibrary `yaml:"system,omitempty"`
	Options       map[string][]string     `yaml:"options,omitempty"`
}

type planRef struct {
	Name string `yaml:"name"`
	GUID string `yaml:"guid"`
}

// RenderProject writes <output>/<project>.plan.yaml. Include paths come from
// the project's own libraries and the public libraries of its dependencies;
// link paths, deploy files and system libraries also cover private libraries
// reached transitively.
func (PlanRenderer) RenderProject(rc *Context, p *project.Project) error {
	deps, err := rc.Graph.SortedDependencies(p)
	if err != nil {
		return err
	}
	internal, err := rc.Graph.Libraries(p, resolve.LibrariesInternal)
	if err != nil {
		return err
	}
	all, err := rc.Graph.Libraries(p, resolve.LibrariesAll)
	if err != nil {
		return err
	}

	var compile, link library.MergedState
	for _, l := range internal {
		compile.Merge(l.EffectiveState(rc.Platform, rc.Configuration))
	}
	for _, l := range all {
		link.Merge(l.EffectiveState(rc.Platform, rc.Configuration))
	}

	plan := projectPlan{
		Name:          p.Name,
		GUID:          ProjectGUID(p.Name).String(),
		Module:        moduleName(p),
		Tier:          p.Tier(),
		Dir:           p.Dir,
		Kind:          projectKind(p),
		DevOnly:       p.DevOnly(),
		EngineOnly:    p.Attrs.EngineOnly,
		Tests:         p.Attrs.HasTests,
		Platform:      rc.Platform,
		Configuration: rc.Configuration,
		Include:       compile.IncludePaths,
		Link:          link.LinkPaths,
		Deploy:        link.DeployFiles,
		System:        link.SystemLibs,
	}
	for _, d := range deps {
		plan.Dependencies = append(plan.Dependencies, planRef{Name: d.Name, GUID: ProjectGUID(d.Name).String()})
	}
	for _, l := range all {
		plan.Libraries = append(plan.Libraries, l.Name)
	}
	if keys := p.Attrs.Extra.Keys(); len(keys) > 0 {
		plan.Options = make(map[string][]string, len(keys))
		for _, k := range keys {
			plan.Options[k] = p.Attrs.Extra.Get(k)
		}
	}

	return writeYAML(rc, p.Name+PlanSuffix, plan)
}

type solutionPlan struct {
	Name          string     `yaml:"name"`
	Platform      string     `yaml:"platform"`
	Configuration string     `yaml:"configuration"`
	Projects      []planRef  `yaml:"projects"`
	Excluded      []excluded `yaml:"excluded,omitempty"`
	Cycles        []string   `yaml:"cycles,omitempty"`
}

type excluded struct {
	Name   string `yaml:"name"`
	Reason string `yaml:"reason"`
	Detail string `yaml:"detail,omitempty"`
}

// RenderSolution writes <output>/<solution>.plan.yaml listing the enabled
// projects with their GUIDs and every exclusion.
func (PlanRenderer) RenderSolution(rc *Context, projects []*project.Project) error {
	sol := solutionPlan{
		Name:          rc.Solution,
		Platform:      rc.Platform,
		Configuration: rc.Configuration,
	}
	for _, p := range projects {
		sol.Projects = append(sol.Projects, planRef{Name: p.Name, GUID: ProjectGUID(p.Name).String()})
	}
	for _, e := range rc.Graph.Exclusions() {
		sol.Excluded = append(sol.Excluded, excluded{Name: e.Project, Reason: string(e.Reason), Detail: e.Detail})
	}
	for _, d := range rc.Graph.Diagnostics() {
		sol.Cycles = append(sol.Cycles, d.String())
	}
	return writeYAML(rc, rc.Solution+PlanSuffix, sol)
}

func moduleName(p *project.Project) string {
	if p.Module == nil {
		return ""
	}
	return p.Module.Name
}

func projectKind(p *project.Project) string {
	if p.IsApp() {
		return "app"
	}
	return "library"
}

func writeYAML(rc *Context, name string, v any) error {
	art, err := rc.Assembly.Create(rc.Path(name))
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(art)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return enc.Close()
}
