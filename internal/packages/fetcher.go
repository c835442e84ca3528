// Package packages downloads remote library packages into a local cache and
// registers the manifests they contain with a library catalog.
//
// A package is either a flat archive (zip or tar.gz) or a git repository whose
// immediate subdirectories each hold one library manifest. A package is
// fetched at most once per Fetcher and never re-downloaded while its cache
// directory exists. Download and extraction failures are soft: the package
// stays unregistered and the caller decides whether that matters. A broken
// manifest inside a fetched package is fatal.
package packages

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/projgen/internal/config"
	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/library"
	"git.home.luguber.info/inful/projgen/internal/logfields"
	"git.home.luguber.info/inful/projgen/internal/metrics"
	"git.home.luguber.info/inful/projgen/internal/retry"
)

// Fetcher obtains remote packages. Safe for concurrent use.
type Fetcher struct {
	catalog     *library.Catalog
	cacheDir    string
	client      *http.Client
	policy      retry.Policy
	concurrency int
	recorder    metrics.Recorder
	logger      *slog.Logger

	mu      sync.Mutex
	fetches map[string]*fetch
}

type fetch struct {
	once sync.Once
	libs []*library.Library
	err  error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }

func WithPolicy(p retry.Policy) Option { return func(f *Fetcher) { f.policy = p } }

func WithRecorder(r metrics.Recorder) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithConcurrency bounds the number of packages FetchAll downloads at once.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// NewFetcher creates a fetcher that unpacks into cacheDir and registers into catalog.
func NewFetcher(catalog *library.Catalog, cacheDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		catalog:     catalog,
		cacheDir:    cacheDir,
		client:      &http.Client{Timeout: 2 * time.Minute},
		policy:      retry.DefaultPolicy(),
		concurrency: 4,
		recorder:    metrics.NoopRecorder{},
		logger:      slog.Default(),
		fetches:     make(map[string]*fetch),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// FromConfig creates a fetcher from the packages configuration block.
func FromConfig(catalog *library.Catalog, cfg config.PackagesConfig, opts ...Option) *Fetcher {
	base := []Option{
		WithPolicy(retry.FromConfig(cfg.Retry)),
		WithConcurrency(cfg.Concurrency),
	}
	if d := cfg.Timeout.D(); d > 0 {
		base = append(base, WithHTTPClient(&http.Client{Timeout: d}))
	}
	return NewFetcher(catalog, cfg.CacheDir, append(base, opts...)...)
}

// Dir returns the cache directory a package is unpacked into.
func (f *Fetcher) Dir(name string) string { return filepath.Join(f.cacheDir, name) }

// Fetch downloads pkg unless it is already cached, then registers its
// libraries. Repeated calls for the same name return the first outcome.
func (f *Fetcher) Fetch(ctx context.Context, pkg config.RemotePackage) ([]*library.Library, error) {
	f.mu.Lock()
	ft, ok := f.fetches[pkg.Name]
	if !ok {
		ft = &fetch{}
		f.fetches[pkg.Name] = ft
	}
	f.mu.Unlock()

	ft.once.Do(func() { ft.libs, ft.err = f.fetchOnce(ctx, pkg) })
	return ft.libs, ft.err
}

func (f *Fetcher) fetchOnce(ctx context.Context, pkg config.RemotePackage) ([]*library.Library, error) {
	dest := f.Dir(pkg.Name)
	log := f.logger.With(logfields.Package(pkg.Name), logfields.URL(pkg.URL))

	if _, err := os.Stat(dest); err == nil {
		log.Debug("Package already cached", logfields.Path(dest))
	} else {
		start := time.Now()
		err := f.download(ctx, pkg, dest)
		f.recorder.ObservePackageFetch(pkg.Name, time.Since(start), err == nil)
		if err != nil {
			log.Warn("Package fetch failed", logfields.Error(err))
			return nil, err
		}
		log.Info("Package fetched", logfields.Path(dest), logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	}

	libs, err := f.catalog.RegisterDir(dest)
	if err != nil {
		return libs, err
	}
	log.Debug("Package registered", logfields.Count(len(libs)))
	return libs, nil
}

func (f *Fetcher) download(ctx context.Context, pkg config.RemotePackage, dest string) error {
	if err := os.MkdirAll(f.cacheDir, 0o750); err != nil {
		return perrors.FetchFailed(pkg.Name, pkg.URL, fmt.Errorf("create cache dir: %w", err))
	}
	staging, err := os.MkdirTemp(f.cacheDir, "."+pkg.Name+".staging-*")
	if err != nil {
		return perrors.FetchFailed(pkg.Name, pkg.URL, fmt.Errorf("create staging dir: %w", err))
	}
	defer func() { _ = os.RemoveAll(staging) }()

	switch pkg.Kind {
	case config.PackageGit:
		err = f.policy.Do(ctx, isPermanentGitError, func(attempt int) error {
			if attempt > 0 {
				f.logger.Info("Retrying package clone", logfields.Package(pkg.Name), slog.Int("attempt", attempt))
				if err := resetDir(staging); err != nil {
					return err
				}
			}
			return cloneInto(ctx, pkg, staging)
		})
		if err != nil {
			return perrors.CloneFailed(pkg.Name, pkg.URL, err)
		}
	default:
		err = f.policy.Do(ctx, isPermanentHTTPError, func(attempt int) error {
			if attempt > 0 {
				f.logger.Info("Retrying package download", logfields.Package(pkg.Name), slog.Int("attempt", attempt))
				if err := resetDir(staging); err != nil {
					return err
				}
			}
			return f.downloadArchive(ctx, pkg, staging)
		})
		if err != nil {
			return perrors.FetchFailed(pkg.Name, pkg.URL, err)
		}
	}

	if err := os.Rename(staging, dest); err != nil {
		return perrors.FetchFailed(pkg.Name, pkg.URL, fmt.Errorf("move into cache: %w", err))
	}
	return nil
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o750)
}

// Result summarises a FetchAll call.
type Result struct {
	Libraries []*library.Library
	Failed    map[string]error
}

// FetchAll fetches every package concurrently. Soft failures are collected in
// Result.Failed; the returned error is set only for fatal failures.
func (f *Fetcher) FetchAll(ctx context.Context, pkgs []config.RemotePackage) (Result, error) {
	res := Result{Failed: make(map[string]error)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, pkg := range pkgs {
		g.Go(func() error {
			libs, err := f.Fetch(gctx, pkg)
			mu.Lock()
			defer mu.Unlock()
			res.Libraries = append(res.Libraries, libs...)
			if err == nil {
				return nil
			}
			if perrors.IsFatal(err) {
				return err
			}
			res.Failed[pkg.Name] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

// IsSoftFailure reports whether err leaves the run usable.
func IsSoftFailure(err error) bool {
	return err != nil && !perrors.IsFatal(err)
}
