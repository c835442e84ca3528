package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/projgen/internal/config"
	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/generate"
)

// LogLevelEnv overrides the log level (debug, info, warn, error).
const LogLevelEnv = "PROJGEN_LOG_LEVEL"

// Global is shared state passed to every command.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"projgen.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate GenerateCmd `cmd:"" default:"1" help:"Generate the solution from discovered projects"`
	Deps     DepsCmd     `cmd:"" help:"Show the resolved dependencies of a project"`
	Libs     LibsCmd     `cmd:"" help:"List registered libraries and their effective state"`
	History  HistoryCmd  `cmd:"" help:"Show recent generator runs"`
	Watch    WatchCmd    `cmd:"" help:"Regenerate whenever declarations, manifests or the configuration change"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if raw := strings.TrimSpace(os.Getenv(LogLevelEnv)); raw != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(raw)); err == nil {
			level = parsed
		}
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// ResolveOptions holds the flags shared by commands that resolve the graph.
type ResolveOptions struct {
	Platform      string `short:"p" help:"Target platform (overrides solution.platform)"`
	Configuration string `short:"C" name:"configuration" help:"Build configuration (overrides solution.configuration)"`
	Build         string `short:"b" help:"Build flavor: dev or standalone (overrides solution.build)"`
}

func (o ResolveOptions) options() (generate.Options, error) {
	opts := generate.Options{Platform: o.Platform, Configuration: o.Configuration}
	if o.Build != "" {
		opts.Build = config.NormalizeBuildFlavor(o.Build)
		if opts.Build == "" {
			return opts, perrors.ValidationFailed("build", fmt.Sprintf("unknown build flavor %q", o.Build))
		}
	}
	return opts, nil
}

func logger(g *Global) *slog.Logger {
	if g != nil && g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

func out(g *Global) io.Writer {
	if g != nil && g.Out != nil {
		return g.Out
	}
	return os.Stdout
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
