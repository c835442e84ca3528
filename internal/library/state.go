package library

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Wildcard matches any platform or configuration.
const Wildcard = "*"

// DeployFile is a file copied next to the built binaries.
type DeployFile struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// SystemLibrary is an OS-provided library linked by name.
type SystemLibrary struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind,omitempty"`
}

// MergedState is the build information a library contributes for one
// platform/configuration pair.
type MergedState struct {
	IncludePaths []string
	LinkPaths    []string
	DeployFiles  []DeployFile
	SystemLibs   []SystemLibrary
}

// Merge folds other into s. Paths and deploy files are unioned in order
// with duplicates dropped by value; system libraries are keyed by name and
// the first occurrence wins.
func (s *MergedState) Merge(other MergedState) {
	s.IncludePaths = appendUnique(s.IncludePaths, other.IncludePaths...)
	s.LinkPaths = appendUnique(s.LinkPaths, other.LinkPaths...)
	s.DeployFiles = appendUnique(s.DeployFiles, other.DeployFiles...)
	for _, sys := range other.SystemLibs {
		if !slices.ContainsFunc(s.SystemLibs, func(e SystemLibrary) bool { return e.Name == sys.Name }) {
			s.SystemLibs = append(s.SystemLibs, sys)
		}
	}
}

// Empty reports whether the state contributes nothing.
func (s MergedState) Empty() bool {
	return len(s.IncludePaths) == 0 && len(s.LinkPaths) == 0 &&
		len(s.DeployFiles) == 0 && len(s.SystemLibs) == 0
}

func appendUnique[T comparable](dst []T, vals ...T) []T {
	for _, v := range vals {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// Selector restricts a Config to platform and configuration sets. A nil set
// is the wildcard.
type Selector struct {
	Platforms []string
	Configs   []string
}

// ParseSelector parses ";"-separated lists. Empty input and "*" mean any; a
// list of separators only names nothing and matches nothing.
func ParseSelector(platforms, configs string) Selector {
	return Selector{Platforms: parseSet(platforms), Configs: parseSet(configs)}
}

func parseSet(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == Wildcard {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == Wildcard {
			return nil
		}
		if part != "" {
			out = append(out, fold(part))
		}
	}
	return out
}

// Matches reports whether the selector applies to platform and config.
// Comparison is case-insensitive.
func (s Selector) Matches(platform, config string) bool {
	return matchSet(s.Platforms, platform) && matchSet(s.Configs, config)
}

func matchSet(set []string, value string) bool {
	if set == nil {
		return true
	}
	return slices.Contains(set, fold(value))
}

func (s Selector) String() string {
	return formatSet(s.Platforms) + "/" + formatSet(s.Configs)
}

func formatSet(set []string) string {
	if set == nil {
		return Wildcard
	}
	if len(set) == 0 {
		return "-"
	}
	return strings.Join(set, ";")
}

// fold applies Unicode case folding. Casers are stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
