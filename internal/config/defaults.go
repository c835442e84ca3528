package config

import (
	"runtime"
	"time"
)

const (
	defaultOutputDir     = ".projgen/out"
	defaultCacheDir      = ".projgen/packages"
	defaultConfiguration = "Debug"
	defaultSubject       = "projgen.runs"
	defaultFetchTimeout  = 2 * time.Minute
	defaultDebounce      = 2 * time.Second
	defaultFetchWorkers  = 4
)

func applyDefaults(cfg *Config) {
	s := &cfg.Solution
	if s.Name == "" {
		s.Name = "solution"
	}
	if s.Platform == "" {
		s.Platform = runtime.GOOS
	}
	if s.Configuration == "" {
		s.Configuration = defaultConfiguration
	}
	if s.Build == "" {
		s.Build = BuildDev
	}
	if s.Output == "" {
		s.Output = defaultOutputDir
	}
	if s.Concurrency <= 0 {
		s.Concurrency = runtime.NumCPU()
	}

	p := &cfg.Packages
	if p.CacheDir == "" {
		p.CacheDir = defaultCacheDir
	}
	if p.Concurrency <= 0 {
		p.Concurrency = defaultFetchWorkers
	}
	if p.Timeout <= 0 {
		p.Timeout = Duration(defaultFetchTimeout)
	}
	if p.Retry == (RetryConfig{}) {
		p.Retry = RetryConfig{
			Backoff:    RetryBackoffExponential,
			Initial:    Duration(time.Second),
			Max:        Duration(10 * time.Second),
			MaxRetries: 2,
		}
	}
	for i := range p.Remote {
		if p.Remote[i].Kind == "" {
			p.Remote[i].Kind = PackageArchive
		}
	}

	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultSubject
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = Duration(defaultDebounce)
	}
}
