package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
)

// DefaultFile is the configuration file name looked up when --config is not given.
const DefaultFile = "projgen.yaml"

// Config represents the generator configuration.
type Config struct {
	Solution  SolutionConfig  `yaml:"solution"`
	Modules   []ModuleConfig  `yaml:"modules"`
	Libraries LibrariesConfig `yaml:"libraries,omitempty"`
	Packages  PackagesConfig  `yaml:"packages,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	Notify    NotifyConfig    `yaml:"notify,omitempty"`
	Watch     WatchConfig     `yaml:"watch,omitempty"`

	// baseDir is the directory holding the config file; relative paths resolve against it.
	baseDir string
}

// SolutionConfig describes the solution being generated.
type SolutionConfig struct {
	Name           string      `yaml:"name"`
	Platform       string      `yaml:"platform"`
	Configuration  string      `yaml:"configuration"`
	Build          BuildFlavor `yaml:"build,omitempty"`
	Output         string      `yaml:"output,omitempty"`
	TouchUnchanged bool        `yaml:"touch_unchanged,omitempty"`
	StrictCycles   bool        `yaml:"strict_cycles,omitempty"`
	Concurrency    int         `yaml:"concurrency,omitempty"`
	Report         bool        `yaml:"report,omitempty"`
}

// ModuleConfig is a source root with its dependency tier.
type ModuleConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	Tier int    `yaml:"tier"`
}

// LibrariesConfig lists local directories whose immediate subdirectories hold library manifests.
type LibrariesConfig struct {
	Dirs []string `yaml:"dirs,omitempty"`
}

// PackagesConfig controls remote package fetching.
type PackagesConfig struct {
	CacheDir    string          `yaml:"cache_dir,omitempty"`
	Concurrency int             `yaml:"concurrency,omitempty"`
	Timeout     Duration        `yaml:"timeout,omitempty"`
	Retry       RetryConfig     `yaml:"retry,omitempty"`
	Remote      []RemotePackage `yaml:"remote,omitempty"`
}

// RetryConfig holds backoff settings for package downloads.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff,omitempty"`
	Initial    Duration         `yaml:"initial,omitempty"`
	Max        Duration         `yaml:"max,omitempty"`
	MaxRetries int              `yaml:"max_retries,omitempty"`
}

// PackageKind selects how a remote package is obtained.
type PackageKind string

const (
	PackageArchive PackageKind = "archive"
	PackageGit     PackageKind = "git"
)

// RemotePackage describes a flat archive or git repository holding library manifests.
type RemotePackage struct {
	Name   string      `yaml:"name"`
	URL    string      `yaml:"url"`
	Kind   PackageKind `yaml:"kind,omitempty"`
	Ref    string      `yaml:"ref,omitempty"`
	SHA256 string      `yaml:"sha256,omitempty"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// NotifyConfig controls run summary publishing.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce Duration `yaml:"debounce,omitempty"`
	Interval Duration `yaml:"interval,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, perrors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, perrors.ConfigInvalid(configPath, fmt.Errorf("read: %w", err))
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, perrors.ConfigInvalid(configPath, err)
	}

	abs, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, perrors.ConfigInvalid(configPath, err)
	}
	cfg.baseDir = abs

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration content after environment expansion and applies defaults.
// Relative paths resolve against the working directory.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Resolve turns a config-relative path into an absolute one.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if c.baseDir == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return path
		}
		return abs
	}
	return filepath.Join(c.baseDir, path)
}

// BaseDir returns the directory relative paths resolve against.
func (c *Config) BaseDir() string {
	if c.baseDir == "" {
		wd, _ := os.Getwd()
		return wd
	}
	return c.baseDir
}

// SetBaseDir overrides the directory relative paths resolve against.
func (c *Config) SetBaseDir(dir string) { c.baseDir = dir }

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Solution: SolutionConfig{
			Name:          "engine",
			Platform:      "windows",
			Configuration: "Debug",
			Build:         BuildDev,
			Output:        ".projgen/out",
			Report:        true,
		},
		Modules: []ModuleConfig{
			{Name: "engine", Path: "src", Tier: 0},
			{Name: "game", Path: "game/src", Tier: 1},
		},
		Libraries: LibrariesConfig{Dirs: []string{"third_party"}},
		Packages: PackagesConfig{
			CacheDir: ".projgen/packages",
			Retry: RetryConfig{
				Backoff:    RetryBackoffExponential,
				Initial:    Duration(time.Second),
				Max:        Duration(10 * time.Second),
				MaxRetries: 2,
			},
			Remote: []RemotePackage{
				{Name: "sdk", URL: "https://example.com/packages/sdk.zip", Kind: PackageArchive},
			},
		},
		Watch: WatchConfig{Debounce: Duration(2 * time.Second)},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
