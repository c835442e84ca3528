package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/projgen/internal/config"
	"git.home.luguber.info/inful/projgen/internal/generate"
	"git.home.luguber.info/inful/projgen/internal/logfields"
	"git.home.luguber.info/inful/projgen/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	ResolveOptions `embed:""`

	Interval time.Duration `help:"Also regenerate on this interval (overrides watch.interval)"`
}

func (c *WatchCmd) Run(global *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	opts, err := c.options()
	if err != nil {
		return err
	}
	log := logger(global)

	// History and notification targets are fixed for the lifetime of the watcher.
	svc, err := generate.NewFromConfig(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	run := func(ctx context.Context, t watch.Trigger) error {
		current, err := config.Load(root.Config)
		if err != nil {
			return err
		}
		o := opts
		o.Trigger = string(t)
		res, err := svc.Run(ctx, generate.Request{Config: current, Options: o})
		if err != nil {
			return err
		}
		log.Info("Solution regenerated", logfields.RunID(res.RunID),
			slog.Int("enabled", res.Enabled), slog.Int("excluded", len(res.Exclusions)),
			slog.Int("rewritten", res.Rewritten))
		return nil
	}

	interval := cfg.Watch.Interval.D()
	if c.Interval > 0 {
		interval = c.Interval
	}
	w, err := watch.New(run, watch.Options{
		Paths:    watchPaths(cfg, root.Config),
		Files:    []string{filepath.Base(root.Config)},
		Debounce: cfg.Watch.Debounce.D(),
		Interval: interval,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	log.Info("Watching for changes", logfields.Path(cfg.BaseDir()), slog.Duration("interval", interval))
	return w.Run(ctx)
}

// watchPaths returns the module roots, the library directories and the
// configuration file.
func watchPaths(cfg *config.Config, configPath string) []string {
	paths := make([]string, 0, len(cfg.Modules)+len(cfg.Libraries.Dirs)+1)
	for _, m := range cfg.Modules {
		paths = append(paths, cfg.Resolve(m.Path))
	}
	for _, d := range cfg.Libraries.Dirs {
		paths = append(paths, cfg.Resolve(d))
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		paths = append(paths, abs)
	}
	return paths
}
