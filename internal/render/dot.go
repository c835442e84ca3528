package render

import (
	"strconv"

	"git.home.luguber.info/inful/projgen/internal/project"
)

// DotRenderer writes the direct project dependency graph of the enabled
// projects as Graphviz source to <output>/<solution>.deps.dot.
type DotRenderer struct{}

func (DotRenderer) Name() string { return "dot" }

func (DotRenderer) RenderProject(*Context, *project.Project) error { return nil }

func (DotRenderer) RenderSolution(rc *Context, projects []*project.Project) error {
	art, err := rc.Assembly.Create(rc.Path(rc.Solution + ".deps.dot"))
	if err != nil {
		return err
	}
	art.Writelnf("digraph %s {", strconv.Quote(rc.Solution))
	art.Writeln("  rankdir=LR;")
	for _, p := range projects {
		shape := "box"
		if p.IsApp() {
			shape = "doubleoctagon"
		}
		art.Writelnf("  %s [shape=%s];", strconv.Quote(p.Name), shape)
	}
	for _, p := range projects {
		for _, d := range p.ProjectDeps() {
			if !d.Valid {
				continue
			}
			style := ""
			if !d.Hard {
				style = " [style=dashed]"
			}
			for _, target := range d.Projects {
				if !target.Enabled() {
					continue
				}
				art.Writelnf("  %s -> %s%s;", strconv.Quote(p.Name), strconv.Quote(target.Name), style)
			}
		}
	}
	art.Writeln("}")
	return nil
}
