package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"git.home.luguber.info/inful/projgen/internal/config"
	"git.home.luguber.info/inful/projgen/internal/generate"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	ResolveOptions `embed:""`

	DryRun bool `name:"dry-run" help:"Render and report changed artifacts without writing them"`
	Touch  bool `help:"Bump the modification time of unchanged artifacts"`
}

func (g *GenerateCmd) Run(global *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	opts, err := g.options()
	if err != nil {
		return err
	}
	opts.DryRun = g.DryRun
	opts.Touch = g.Touch
	opts.Trigger = "cli"

	ctx, cancel := signalContext()
	defer cancel()
	return RunGenerate(ctx, global, cfg, opts)
}

// RunGenerate performs one run and prints its summary.
func RunGenerate(ctx context.Context, global *Global, cfg *config.Config, opts generate.Options) error {
	svc, err := generate.NewFromConfig(cfg, logger(global))
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	res, err := svc.Run(ctx, generate.Request{Config: cfg, Options: opts})
	if err != nil {
		return err
	}

	w := out(global)
	_, _ = fmt.Fprintf(w, "%s %s|%s: %d/%d projects enabled, %d libraries, %d passes\n",
		cfg.Solution.Name, res.Platform, res.Configuration, res.Enabled, res.Projects, res.Libraries, res.Passes)
	for _, e := range res.Exclusions {
		_, _ = fmt.Fprintf(w, "  excluded %s\n", e)
	}
	for _, d := range res.Diagnostics {
		_, _ = fmt.Fprintf(w, "  cycle %s\n", d)
	}
	for _, name := range slices.Sorted(maps.Keys(res.FailedPackages)) {
		_, _ = fmt.Fprintf(w, "  package %s unavailable: %v\n", name, res.FailedPackages[name])
	}
	if opts.DryRun {
		_, _ = fmt.Fprintf(w, "dry run: %d of %d artifacts would change\n", len(res.Changed), res.Artifacts)
		for _, p := range res.Changed {
			_, _ = fmt.Fprintf(w, "  %s\n", p)
		}
		return nil
	}
	_, _ = fmt.Fprintf(w, "%d of %d artifacts rewritten\n", res.Rewritten, res.Artifacts)
	return nil
}
