// Package render turns a settled dependency graph into artifacts.
//
// Renderers only ever see enabled projects: Render refuses to run before the
// graph reached its fixed point. Project rendering fans out over a bounded
// worker pool; solution-level renderers run once afterwards.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/logfields"
	"git.home.luguber.info/inful/projgen/internal/output"
	"git.home.luguber.info/inful/projgen/internal/project"
	"git.home.luguber.info/inful/projgen/internal/resolve"
)

// Context is the shared input of one render pass.
type Context struct {
	Graph         *resolve.Graph
	Assembly      *output.Assembly
	OutputDir     string
	Solution      string
	Platform      string
	Configuration string
	Logger        *slog.Logger
}

// Path returns the artifact path for a file name below the output directory.
func (c *Context) Path(name string) string { return filepath.Join(c.OutputDir, name) }

// Renderer writes the artifacts of a single project. Implementations must be
// safe for concurrent use across projects.
type Renderer interface {
	Name() string
	RenderProject(rc *Context, p *project.Project) error
}

// SolutionRenderer is implemented by renderers that also emit one artifact
// covering the whole solution.
type SolutionRenderer interface {
	Renderer
	RenderSolution(rc *Context, projects []*project.Project) error
}

// guidNamespace is the UUIDv5 namespace of project GUIDs.
var guidNamespace = uuid.MustParse("6f1d3c4e-2b8a-5e7f-9a0c-1d2e3f4a5b6c")

// ProjectGUID returns the stable GUID of a project name.
func ProjectGUID(name string) uuid.UUID {
	return uuid.NewSHA1(guidNamespace, []byte(name))
}

// Render runs every renderer over every enabled project using up to workers
// goroutines, then the solution renderers in order.
func Render(ctx context.Context, rc *Context, renderers []Renderer, workers int) error {
	if !rc.Graph.Settled() {
		return perrors.InternalError("render before propagation", resolve.ErrNotSettled)
	}
	if rc.Logger == nil {
		rc.Logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}

	projects := rc.Graph.Enabled()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range projects {
		for _, r := range renderers {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := r.RenderProject(rc, p); err != nil {
					return perrors.RenderFailed(r.Name(), fmt.Errorf("project %s: %w", p.Name, err))
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range renderers {
		sr, ok := r.(SolutionRenderer)
		if !ok {
			continue
		}
		if err := sr.RenderSolution(rc, projects); err != nil {
			return perrors.RenderFailed(r.Name(), err)
		}
	}
	rc.Logger.Debug("Rendered projects", logfields.Count(len(projects)), slog.Int("renderers", len(renderers)))
	return nil
}
