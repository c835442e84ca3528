package commands

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/projgen/internal/config"
	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/generate"
	"git.home.luguber.info/inful/projgen/internal/library"
	"git.home.luguber.info/inful/projgen/internal/resolve"
)

// DepsCmd implements the 'deps' command.
type DepsCmd struct {
	ResolveOptions `embed:""`

	Project string `arg:"" help:"Project name (merged directory name)"`
}

func (d *DepsCmd) Run(global *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	opts, err := d.options()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := generate.NewService().WithLogger(logger(global)).Resolve(ctx, cfg, opts)
	if err != nil {
		return err
	}
	p, ok := res.Graph.Project(d.Project)
	if !ok {
		return perrors.ValidationFailed("project", fmt.Sprintf("unknown project %q", d.Project))
	}

	w := out(global)
	kind := "library"
	if p.IsApp() {
		kind = "app"
	}
	_, _ = fmt.Fprintf(w, "%s (%s, module %s, tier %d)\n", p.Name, kind, p.Module.Name, p.Tier())
	if ex := p.Exclusion(); ex != nil {
		_, _ = fmt.Fprintf(w, "excluded: %s (%s)\n", ex.Reason, ex.Detail)
		return nil
	}

	deps, err := res.Graph.SortedDependencies(p)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, "dependencies (link order):")
	for _, dep := range deps {
		_, _ = fmt.Fprintf(w, "  %s\n", dep.Name)
	}
	internal, err := res.Graph.Libraries(p, resolve.LibrariesInternal)
	if err != nil {
		return err
	}
	all, err := res.Graph.Libraries(p, resolve.LibrariesAll)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "libraries (internal): %s\n", libraryNames(internal))
	_, _ = fmt.Fprintf(w, "libraries (all): %s\n", libraryNames(all))
	for _, diag := range res.Graph.Diagnostics() {
		if diag.Project == p.Name {
			_, _ = fmt.Fprintf(w, "cycle: %s\n", diag)
		}
	}
	return nil
}

func libraryNames(libs []*library.Library) string {
	if len(libs) == 0 {
		return "-"
	}
	names := make([]string, len(libs))
	for i, l := range libs {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}
