// Package config loads and validates the per-invocation configuration.
// The rest of the core treats the resulting struct as immutable plain data.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/keywarden/keywarden/pkg/types"
)

// DefaultFileName is looked up in the scan root when no --config is given.
const DefaultFileName = ".keywarden.yml"

// Config is the full configuration for one invocation.
type Config struct {
	ExcludeExtensions []string `yaml:"exclude_extensions" validate:"dive,startswith=."`
	ExcludeDirs       []string `yaml:"exclude_dirs"`

	// IgnoreGit controls whether tree scans honor .gitignore. Off means
	// gitignored files (a stray .env, say) are scanned too.
	IgnoreGit  bool `yaml:"ignore_git"`
	MaxCommits int  `yaml:"max_commits" validate:"gte=0"`

	Entropy    EntropyConfig    `yaml:"entropy"`
	Validation ValidationConfig `yaml:"validation"`
	Reporting  ReportingConfig  `yaml:"reporting"`
	Slack      SlackConfig      `yaml:"slack"`
}

// EntropyConfig holds the generic-token scoring thresholds.
type EntropyConfig struct {
	MinLength int     `yaml:"min_length" validate:"gte=8"`
	Threshold float64 `yaml:"threshold" validate:"gt=0"`
}

// ValidationConfig controls the live key checks.
type ValidationConfig struct {
	Enabled            bool `yaml:"enabled"`
	TimeoutSeconds     int  `yaml:"timeout_seconds" validate:"gte=1,lte=300"`
	WorkersPerProvider int  `yaml:"workers_per_provider" validate:"gte=1,lte=32"`
	VerdictTTLMinutes  int  `yaml:"verdict_ttl_minutes" validate:"gte=1"`
}

// ReportingConfig controls which findings reach the renderers.
type ReportingConfig struct {
	MinConfidence string `yaml:"min_confidence" validate:"oneof=low medium high"`
	// Redact keeps source-context snippets out of reports. The matched
	// key itself is masked in every output regardless of this setting.
	Redact bool `yaml:"redact"`
}

// SlackConfig holds the Slack report destination. The API token comes from
// the SLACK_API_TOKEN environment variable, never from the file.
type SlackConfig struct {
	WebhookChannel string `yaml:"webhook_channel"`
}

// defaultExcludeExtensions covers binary and media formats the scanner
// would only waste time sniffing.
var defaultExcludeExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".svg",
	".pdf", ".zip", ".tar", ".gz", ".7z", ".jar",
	".exe", ".dll", ".so", ".dylib", ".bin",
	".mp3", ".mp4", ".avi", ".mov",
	".woff", ".woff2", ".ttf", ".eot",
	".pyc", ".class", ".o", ".a",
}

// defaultExcludeDirs are directory names skipped at any depth.
var defaultExcludeDirs = []string{
	"node_modules", "vendor", "venv", ".venv", "__pycache__",
	"dist", "build", "target", ".idea", ".vscode",
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ExcludeExtensions: append([]string(nil), defaultExcludeExtensions...),
		ExcludeDirs:       append([]string(nil), defaultExcludeDirs...),
		IgnoreGit:         true,
		MaxCommits:        0,
		Entropy: EntropyConfig{
			MinLength: 16,
			Threshold: 3.5,
		},
		Validation: ValidationConfig{
			Enabled:            false,
			TimeoutSeconds:     10,
			WorkersPerProvider: 4,
			VerdictTTLMinutes:  60,
		},
		Reporting: ReportingConfig{
			MinConfidence: "low",
			Redact:        true,
		},
	}
}

// Load reads a YAML config file over the defaults. File entries for
// exclude lists are merged with the defaults, not substituted, so a user
// adding one extension does not silently start scanning PNGs.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var o overlay
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.merge(&o)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists, otherwise returns validated
// defaults with env overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		cfg := Default()
		applyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

// overlay mirrors Config with pointer scalars so merge can tell an
// omitted key from an explicit zero: a file that never mentions
// ignore_git must not flip it off.
type overlay struct {
	ExcludeExtensions []string          `yaml:"exclude_extensions"`
	ExcludeDirs       []string          `yaml:"exclude_dirs"`
	IgnoreGit         *bool             `yaml:"ignore_git"`
	MaxCommits        *int              `yaml:"max_commits"`
	Entropy           entropyOverlay    `yaml:"entropy"`
	Validation        validationOverlay `yaml:"validation"`
	Reporting         reportingOverlay  `yaml:"reporting"`
	Slack             slackOverlay      `yaml:"slack"`
}

type entropyOverlay struct {
	MinLength *int     `yaml:"min_length"`
	Threshold *float64 `yaml:"threshold"`
}

type validationOverlay struct {
	Enabled            *bool `yaml:"enabled"`
	TimeoutSeconds     *int  `yaml:"timeout_seconds"`
	WorkersPerProvider *int  `yaml:"workers_per_provider"`
	VerdictTTLMinutes  *int  `yaml:"verdict_ttl_minutes"`
}

type reportingOverlay struct {
	MinConfidence *string `yaml:"min_confidence"`
	Redact        *bool   `yaml:"redact"`
}

type slackOverlay struct {
	WebhookChannel *string `yaml:"webhook_channel"`
}

func (c *Config) merge(o *overlay) {
	c.ExcludeExtensions = append(c.ExcludeExtensions, o.ExcludeExtensions...)
	c.ExcludeDirs = append(c.ExcludeDirs, o.ExcludeDirs...)
	if o.IgnoreGit != nil {
		c.IgnoreGit = *o.IgnoreGit
	}
	if o.MaxCommits != nil {
		c.MaxCommits = *o.MaxCommits
	}
	if o.Entropy.MinLength != nil {
		c.Entropy.MinLength = *o.Entropy.MinLength
	}
	if o.Entropy.Threshold != nil {
		c.Entropy.Threshold = *o.Entropy.Threshold
	}
	if o.Validation.Enabled != nil {
		c.Validation.Enabled = *o.Validation.Enabled
	}
	if o.Validation.TimeoutSeconds != nil {
		c.Validation.TimeoutSeconds = *o.Validation.TimeoutSeconds
	}
	if o.Validation.WorkersPerProvider != nil {
		c.Validation.WorkersPerProvider = *o.Validation.WorkersPerProvider
	}
	if o.Validation.VerdictTTLMinutes != nil {
		c.Validation.VerdictTTLMinutes = *o.Validation.VerdictTTLMinutes
	}
	if o.Reporting.MinConfidence != nil {
		c.Reporting.MinConfidence = *o.Reporting.MinConfidence
	}
	if o.Reporting.Redact != nil {
		c.Reporting.Redact = *o.Reporting.Redact
	}
	if o.Slack.WebhookChannel != nil {
		c.Slack.WebhookChannel = *o.Slack.WebhookChannel
	}
}

// applyEnvOverrides reads the small set of KEYWARDEN_* variables that make
// sense to flip per-run in CI.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("KEYWARDEN_VALIDATION"); v != "" {
		c.Validation.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("KEYWARDEN_MIN_CONFIDENCE"); v != "" {
		c.Reporting.MinConfidence = strings.ToLower(v)
	}
	if v := os.Getenv("KEYWARDEN_MAX_COMMITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.MaxCommits = n
		}
	}
}

// Validate fails fast before any scanning starts. Beyond the struct tags
// it compiles every exclude pattern so a malformed glob is caught here,
// not mid-traversal.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := types.ParseConfidence(c.Reporting.MinConfidence); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, dir := range c.ExcludeDirs {
		if _, err := glob.Compile(dir); err != nil {
			return fmt.Errorf("invalid exclude_dirs pattern %q: %w", dir, err)
		}
	}
	return nil
}

// MinConfidence returns the parsed reporting floor. Validate has already
// checked the string.
func (c *Config) MinConfidence() types.Confidence {
	conf, err := types.ParseConfidence(c.Reporting.MinConfidence)
	if err != nil {
		return types.ConfidenceLow
	}
	return conf
}

// Excluder is the standalone exclusion matcher consumed by the filesystem
// adapter: precompiled globs over directory names plus an extension set.
type Excluder struct {
	extensions map[string]struct{}
	dirs       []glob.Glob
}

// NewExcluder compiles the config's exclusion rules.
func (c *Config) NewExcluder() (*Excluder, error) {
	e := &Excluder{extensions: make(map[string]struct{}, len(c.ExcludeExtensions))}
	for _, ext := range c.ExcludeExtensions {
		e.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, dir := range c.ExcludeDirs {
		g, err := glob.Compile(dir)
		if err != nil {
			return nil, fmt.Errorf("compiling exclude_dirs pattern %q: %w", dir, err)
		}
		e.dirs = append(e.dirs, g)
	}
	return e, nil
}

// ExcludesExtension reports whether a file extension (with leading dot) is
// excluded. Matching is case-insensitive.
func (e *Excluder) ExcludesExtension(ext string) bool {
	_, ok := e.extensions[strings.ToLower(ext)]
	return ok
}

// ExcludesDir reports whether a directory name matches an exclude glob.
func (e *Excluder) ExcludesDir(name string) bool {
	for _, g := range e.dirs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
