// Package watch regenerates the solution whenever a declaration, a library
// manifest or the configuration changes, and optionally on a fixed interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/projgen/internal/logfields"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerChange   Trigger = "change"
	TriggerSchedule Trigger = "schedule"
)

// RunFunc performs one regeneration. Errors are logged and watching goes on.
type RunFunc func(ctx context.Context, trigger Trigger) error

// Options configures a Watcher.
type Options struct {
	// Paths are watched recursively. Missing paths are skipped.
	Paths []string
	// Files are additional file names that trigger a run when changed.
	Files    []string
	Debounce time.Duration
	// Interval schedules a periodic run when positive.
	Interval time.Duration
	Logger   *slog.Logger
}

// Watcher serializes runs triggered by file changes and the schedule.
type Watcher struct {
	opts      Options
	run       RunFunc
	watcher   *fsnotify.Watcher
	scheduler gocron.Scheduler
	triggers  chan Trigger
	files     map[string]struct{}
	logger    *slog.Logger
}

// watchedFiles are the inputs of a run besides directory structure.
var watchedFiles = []string{"build.yaml", "library.yaml", ".env", ".env.local"}

// New creates a watcher. Run starts it.
func New(run RunFunc, opts Options) (*Watcher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		opts:     opts,
		run:      run,
		watcher:  fw,
		triggers: make(chan Trigger, 1),
		files:    make(map[string]struct{}),
		logger:   opts.Logger,
	}
	for _, f := range append(slices.Clone(watchedFiles), opts.Files...) {
		w.files[f] = struct{}{}
	}
	if opts.Interval > 0 {
		s, err := gocron.NewScheduler()
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
		}
		if _, err := s.NewJob(
			gocron.DurationJob(opts.Interval),
			gocron.NewTask(func() { w.trigger(TriggerSchedule) }),
			gocron.WithName("periodic-regenerate"),
		); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to create periodic job: %w", err)
		}
		w.scheduler = s
	}
	return w, nil
}

// Run performs a startup run, then blocks serving triggers until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	for _, p := range w.opts.Paths {
		if err := w.addRecursive(p); err != nil {
			return err
		}
	}
	if w.scheduler != nil {
		w.scheduler.Start()
		defer func() { _ = w.scheduler.Shutdown() }()
	}

	go w.watchLoop(ctx)

	w.execute(ctx, TriggerStartup)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping watcher")
			return nil
		case t := <-w.triggers:
			w.execute(ctx, t)
		}
	}
}

func (w *Watcher) execute(ctx context.Context, t Trigger) {
	start := time.Now()
	w.logger.Info("Regenerating", slog.String("trigger", string(t)))
	if err := w.run(ctx, t); err != nil {
		w.logger.Error("Regeneration failed", slog.String("trigger", string(t)), logfields.Error(err))
		return
	}
	w.logger.Info("Regeneration finished", slog.String("trigger", string(t)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}

// trigger queues t unless a run is already pending.
func (w *Watcher) trigger(t Trigger) {
	select {
	case w.triggers <- t:
	default:
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
					}
				}
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("Change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.opts.Debounce, func() { w.trigger(TriggerChange) })
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", logfields.Error(err))
		}
	}
}

// relevant reports whether ev can change the generated output: a watched
// file was touched, or a directory appeared or vanished.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	if _, ok := w.files[base]; ok {
		return true
	}
	if hidden(base) {
		return false
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		// The entry is gone so its type is unknown; extension-less names are likely directories.
		return filepath.Ext(base) == ""
	}
	if ev.Has(fsnotify.Create) {
		info, err := os.Stat(ev.Name)
		return err == nil && info.IsDir()
	}
	return false
}

func (w *Watcher) addRecursive(root string) error {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn("Watch path missing", logfields.Path(root))
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func hidden(name string) bool { return strings.HasPrefix(name, ".") && name != "." }
