package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/projgen/internal/config"
	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to show" default:"10"`
	RunID string `name:"run" help:"Show the exclusions recorded for one run"`
}

func (h *HistoryCmd) Run(global *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return perrors.ValidationFailed("history.path", "run history is not enabled in the configuration")
	}
	store, err := history.NewSQLiteStore(cfg.Resolve(cfg.History.Path))
	if err != nil {
		return perrors.Wrap(err, perrors.CategoryRuntime, perrors.SeverityFatal, "open run history")
	}
	defer func() { _ = store.Close() }()

	return RunHistory(context.Background(), global, store, h.Limit, h.RunID)
}

// RunHistory prints recent runs, or the exclusions of runID when set.
func RunHistory(ctx context.Context, global *Global, store history.Store, limit int, runID string) error {
	w := out(global)
	if runID != "" {
		excl, err := store.Exclusions(ctx, runID)
		if err != nil {
			return err
		}
		if len(excl) == 0 {
			_, _ = fmt.Fprintf(w, "run %s excluded no projects\n", runID)
			return nil
		}
		for _, e := range excl {
			_, _ = fmt.Fprintf(w, "%s\n", e)
		}
		return nil
	}

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tRUN\tOUTCOME\tTARGET\tENABLED\tREWRITTEN\tCYCLES\tDURATION")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s|%s\t%d/%d\t%d/%d\t%d\t%s\n",
			r.Started.Local().Format(time.DateTime), r.RunID, r.Outcome,
			r.Platform, r.Configuration, r.Enabled, r.Projects,
			r.Rewritten, r.Artifacts, r.Cycles, r.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}
