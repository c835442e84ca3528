// Package history keeps a record of generator runs and the projects each
// run excluded, so regressions in the project set can be spotted over time.
package history

import (
	"context"
	"time"

	"git.home.luguber.info/inful/projgen/internal/project"
)

// Run is one recorded generator run.
type Run struct {
	RunID         string
	Started       time.Time
	Duration      time.Duration
	Solution      string
	Platform      string
	Configuration string
	Outcome       string
	Projects      int
	Enabled       int
	Artifacts     int
	Rewritten     int
	Passes        int
	Cycles        int
	Exclusions    []project.Exclusion
}

// Store persists runs.
type Store interface {
	// Record stores a run with its exclusions.
	Record(ctx context.Context, run Run) error

	// Recent returns up to limit runs, newest first, without exclusions.
	Recent(ctx context.Context, limit int) ([]Run, error)

	// Exclusions returns the exclusions recorded for a run.
	Exclusions(ctx context.Context, runID string) ([]project.Exclusion, error)

	// Close releases the store.
	Close() error
}
