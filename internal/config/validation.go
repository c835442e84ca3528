package config

import (
	"fmt"
	"strings"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
)

// Validate checks the configuration for impossible or ambiguous settings.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, step := range []func() error{
		v.validateSolution,
		v.validateModules,
		v.validatePackages,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validateSolution() error {
	s := cv.config.Solution
	if NormalizeBuildFlavor(string(s.Build)) == "" {
		return perrors.ValidationFailed("solution.build", fmt.Sprintf("unknown build flavor %q (want dev or standalone)", s.Build))
	}
	if strings.ContainsAny(s.Platform, ";*") {
		return perrors.ValidationFailed("solution.platform", "must name a single platform")
	}
	if strings.ContainsAny(s.Configuration, ";*") {
		return perrors.ValidationFailed("solution.configuration", "must name a single configuration")
	}
	return nil
}

func (cv *configurationValidator) validateModules() error {
	if len(cv.config.Modules) == 0 {
		return perrors.ValidationFailed("modules", "at least one module must be configured")
	}
	seen := make(map[string]struct{}, len(cv.config.Modules))
	for i, m := range cv.config.Modules {
		field := fmt.Sprintf("modules[%d]", i)
		if m.Name == "" {
			return perrors.ValidationFailed(field+".name", "required")
		}
		if m.Path == "" {
			return perrors.ValidationFailed(field+".path", "required")
		}
		if m.Tier < 0 {
			return perrors.ValidationFailed(field+".tier", "must not be negative")
		}
		if _, dup := seen[m.Name]; dup {
			return perrors.ValidationFailed(field+".name", fmt.Sprintf("duplicate module %q", m.Name))
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

func (cv *configurationValidator) validatePackages() error {
	p := cv.config.Packages
	if p.Retry.Backoff != "" && NormalizeRetryBackoff(string(p.Retry.Backoff)) == "" {
		return perrors.ValidationFailed("packages.retry.backoff", fmt.Sprintf("unknown mode %q", p.Retry.Backoff))
	}
	if p.Retry.MaxRetries < 0 {
		return perrors.ValidationFailed("packages.retry.max_retries", "must not be negative")
	}
	seen := make(map[string]struct{}, len(p.Remote))
	for i, r := range p.Remote {
		field := fmt.Sprintf("packages.remote[%d]", i)
		if r.Name == "" {
			return perrors.ValidationFailed(field+".name", "required")
		}
		if r.URL == "" {
			return perrors.ValidationFailed(field+".url", "required")
		}
		if r.Kind != PackageArchive && r.Kind != PackageGit {
			return perrors.ValidationFailed(field+".kind", fmt.Sprintf("unknown kind %q", r.Kind))
		}
		if _, dup := seen[r.Name]; dup {
			return perrors.ValidationFailed(field+".name", fmt.Sprintf("duplicate package %q", r.Name))
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}
