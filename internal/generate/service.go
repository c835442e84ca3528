// Package generate provides the canonical generator run. Every entry point
// (CLI commands, watch mode, tests) routes through Service.
package generate

import (
	"context"
	"time"

	"git.home.luguber.info/inful/projgen/internal/config"
	"git.home.luguber.info/inful/projgen/internal/library"
	"git.home.luguber.info/inful/projgen/internal/metrics"
	"git.home.luguber.info/inful/projgen/internal/project"
	"git.home.luguber.info/inful/projgen/internal/resolve"
)

// Service runs the generator: catalog → packages → scan → resolve → render → commit.
type Service interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request contains all inputs of one run.
type Request struct {
	Config  *config.Config
	Options Options
}

// Options modify a run without touching the configuration.
type Options struct {
	// DryRun renders and diffs but writes nothing.
	DryRun bool

	// Touch bumps the modification time of unchanged artifacts.
	Touch bool

	// Platform, Configuration and Build override the configured values when set.
	Platform      string
	Configuration string
	Build         config.BuildFlavor

	// Trigger names what started the run (cli, change, schedule).
	Trigger string
}

// Result contains the outcome of a run.
type Result struct {
	RunID   string
	Outcome metrics.RunOutcome

	Platform      string
	Configuration string

	Projects    int
	Enabled     int
	Libraries   int
	Passes      int
	Exclusions  []project.Exclusion
	Diagnostics []resolve.Diagnostic

	// FailedPackages holds the soft failures of remote package fetches.
	FailedPackages map[string]error

	// Artifacts is the number of artifacts rendered; Rewritten how many of
	// them differed from disk and were written.
	Artifacts int
	Rewritten int
	// Changed lists the artifacts a dry run would rewrite.
	Changed []string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Resolution is the settled state of a run before rendering.
type Resolution struct {
	Catalog        *library.Catalog
	Graph          *resolve.Graph
	Stats          resolve.PropagationStats
	FailedPackages map[string]error
	Platform       string
	Configuration  string
	Build          config.BuildFlavor
}
