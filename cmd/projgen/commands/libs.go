package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/projgen/internal/config"
	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/generate"
	"git.home.luguber.info/inful/projgen/internal/library"
)

// LibsCmd implements the 'libs' command.
type LibsCmd struct {
	ResolveOptions `embed:""`

	Library string `short:"l" help:"Show the full effective state of one library"`
}

func (l *LibsCmd) Run(global *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	opts, err := l.options()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := generate.NewService().WithLogger(logger(global)).Resolve(ctx, cfg, opts)
	if err != nil {
		return err
	}

	w := out(global)
	if l.Library != "" {
		lib, ok := res.Catalog.Lookup(l.Library)
		if !ok {
			return perrors.ValidationFailed("library", fmt.Sprintf("unknown library %q", l.Library))
		}
		printState(w, lib, lib.EffectiveState(res.Platform, res.Configuration), res.Platform, res.Configuration)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tINCLUDE\tLINK\tDEPLOY\tSYSTEM\tDIR")
	for _, lib := range res.Catalog.Libraries() {
		st := lib.EffectiveState(res.Platform, res.Configuration)
		dir := lib.Dir
		if !lib.WellDefined {
			dir += " (external " + lib.External + " missing)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", lib.Name,
			len(st.IncludePaths), len(st.LinkPaths), len(st.DeployFiles), len(st.SystemLibs), dir)
	}
	return tw.Flush()
}

func printState(w io.Writer, lib *library.Library, st library.MergedState, platform, configuration string) {
	_, _ = fmt.Fprintf(w, "%s [%s|%s]\n", lib.Name, platform, configuration)
	_, _ = fmt.Fprintf(w, "  dir: %s\n", lib.Dir)
	if lib.External != "" {
		_, _ = fmt.Fprintf(w, "  external: %s (found: %t)\n", lib.External, lib.WellDefined)
	}
	list := func(label string, vals []string) {
		if len(vals) == 0 {
			return
		}
		_, _ = fmt.Fprintf(w, "  %s:\n    %s\n", label, strings.Join(vals, "\n    "))
	}
	list("include", st.IncludePaths)
	list("link", st.LinkPaths)
	deploy := make([]string, len(st.DeployFiles))
	for i, d := range st.DeployFiles {
		deploy[i] = d.Source + " -> " + d.Target
	}
	list("deploy", deploy)
	system := make([]string, len(st.SystemLibs))
	for i, s := range st.SystemLibs {
		system[i] = s.Name
		if s.Kind != "" {
			system[i] += " (" + s.Kind + ")"
		}
	}
	list("system", system)
	if st.Empty() {
		_, _ = fmt.Fprintln(w, "  (no configuration matches)")
	}
}
