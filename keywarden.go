// Package keywarden provides leaked AI provider API key detection as a
// library.
//
// # Basic Usage
//
// Create a scanner and scan content:
//
//	scanner, err := keywarden.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	findings, err := scanner.ScanString(`OPENAI_API_KEY=sk-...`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range findings {
//	    fmt.Printf("%s key %s at offset %d\n", f.Provider, f.KeyPreview(), f.Location.Offset.Start)
//	}
//
// # With Validation
//
// Enable validation to check found keys against the issuing provider's
// read-only endpoint:
//
//	scanner, err := keywarden.NewScanner(keywarden.WithValidation())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	findings, err := scanner.ScanString(content)
//	for _, f := range findings {
//	    if f.Validated() {
//	        fmt.Printf("%s: %s\n", f.Provider, f.Verdict.Status)
//	    }
//	}
package keywarden

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/keywarden/keywarden/pkg/detect"
	"github.com/keywarden/keywarden/pkg/entropy"
	"github.com/keywarden/keywarden/pkg/rule"
	"github.com/keywarden/keywarden/pkg/types"
	"github.com/keywarden/keywarden/pkg/validator"
)

// Version is the library and CLI version.
const Version = "0.1.0"

// Re-export the types callers touch, so importing just
// "github.com/keywarden/keywarden" suffices for library use.
type (
	// Detection is a content-relative match.
	Detection = types.Detection

	// Finding is a detection bound to where it was seen, optionally
	// carrying a validation verdict.
	Finding = types.Finding

	// ValidationVerdict is the outcome of checking a key against its
	// provider.
	ValidationVerdict = types.ValidationVerdict

	// Provider identifies the AI vendor a key shape belongs to.
	Provider = types.Provider

	// Confidence is the qualitative certainty band of a finding.
	Confidence = types.Confidence
)

// Re-export the confidence bands and verdict statuses.
const (
	ConfidenceLow    = types.ConfidenceLow
	ConfidenceMedium = types.ConfidenceMedium
	ConfidenceHigh   = types.ConfidenceHigh

	StatusValid       = types.StatusValid
	StatusInvalid     = types.StatusInvalid
	StatusRateLimited = types.StatusRateLimited
	StatusNetworkErr  = types.StatusNetworkErr
	StatusUnsupported = types.StatusUnsupported
)

// Scanner detects leaked keys in content handed to it directly. For
// tree, history, diff, and CI scans use the keywarden CLI or wire
// pkg/scan and pkg/enum yourself.
type Scanner struct {
	detector *detect.Detector
	engine   *validator.Engine
	config   *scannerConfig
}

type scannerConfig struct {
	contextLines     int
	minConfidence    types.Confidence
	entropyMinLength int
	entropyThreshold float64
	enableValidation bool
	validationOpts   []validator.Option
	logger           *slog.Logger
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithContextLines sets how many lines of context each finding's
// snippet carries. Default is 2.
func WithContextLines(lines int) Option {
	return func(c *scannerConfig) { c.contextLines = lines }
}

// WithMinConfidence drops findings below the given band. Default keeps
// everything.
func WithMinConfidence(min Confidence) Option {
	return func(c *scannerConfig) { c.minConfidence = min }
}

// WithEntropyThreshold tunes the generic-token entropy gate.
func WithEntropyThreshold(minLength int, threshold float64) Option {
	return func(c *scannerConfig) {
		c.entropyMinLength = minLength
		c.entropyThreshold = threshold
	}
}

// WithValidation enables live key checks. Found keys are sent only to
// their issuing provider's read-only endpoint.
func WithValidation(opts ...validator.Option) Option {
	return func(c *scannerConfig) {
		c.enableValidation = true
		c.validationOpts = opts
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *scannerConfig) { c.logger = logger }
}

// NewScanner creates a Scanner over the builtin provider patterns.
func NewScanner(opts ...Option) (*Scanner, error) {
	config := &scannerConfig{
		contextLines:     2,
		minConfidence:    ConfidenceLow,
		entropyMinLength: entropy.DefaultMinLength,
		entropyThreshold: entropy.DefaultThreshold,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(config)
	}

	registry, err := rule.NewLoader().LoadBuiltin()
	if err != nil {
		return nil, fmt.Errorf("loading builtin rules: %w", err)
	}

	detector, err := detect.NewDetector(registry,
		detect.WithContextLines(config.contextLines),
		detect.WithScorer(&entropy.Scorer{
			MinLength: config.entropyMinLength,
			Threshold: config.entropyThreshold,
		}))
	if err != nil {
		return nil, fmt.Errorf("building detector: %w", err)
	}

	var engine *validator.Engine
	if config.enableValidation {
		engine = validator.NewEngine(append([]validator.Option{
			validator.WithLogger(config.logger),
		}, config.validationOpts...)...)
	}

	return &Scanner{
		detector: detector,
		engine:   engine,
		config:   config,
	}, nil
}

// ScanString scans a string for leaked keys.
func (s *Scanner) ScanString(content string) ([]*Finding, error) {
	return s.ScanBytesWithContext(context.Background(), []byte(content), "")
}

// ScanStringWithContext scans a string with a context for validation
// cancellation.
func (s *Scanner) ScanStringWithContext(ctx context.Context, content string) ([]*Finding, error) {
	return s.ScanBytesWithContext(ctx, []byte(content), "")
}

// ScanBytes scans raw bytes for leaked keys.
func (s *Scanner) ScanBytes(content []byte) ([]*Finding, error) {
	return s.ScanBytesWithContext(context.Background(), content, "")
}

// ScanFile reads and scans one file.
func (s *Scanner) ScanFile(path string) ([]*Finding, error) {
	return s.ScanFileWithContext(context.Background(), path)
}

// ScanFileWithContext reads and scans one file with a context.
func (s *Scanner) ScanFileWithContext(ctx context.Context, path string) ([]*Finding, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return s.ScanBytesWithContext(ctx, content, filepath.ToSlash(path))
}

// ScanBytesWithContext is the full-control entry point: scans content,
// labels findings with the given path (empty means anonymous content),
// validates when enabled.
func (s *Scanner) ScanBytesWithContext(ctx context.Context, content []byte, path string) ([]*Finding, error) {
	detections, err := s.detector.Detect(content)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = "(content)"
	}

	var findings []*Finding
	for _, det := range detections {
		if det.Confidence < s.config.minConfidence {
			continue
		}
		findings = append(findings, &Finding{
			Detection:  det,
			Provenance: types.FileProvenance{FilePath: path},
		})
	}

	if s.engine != nil && len(findings) > 0 {
		s.engine.Validate(ctx, findings)
	}
	return findings, nil
}

// ValidationEnabled reports whether live key checks are on.
func (s *Scanner) ValidationEnabled() bool {
	return s.engine != nil
}

// Close releases scanner resources. Always call Close when done.
func (s *Scanner) Close() error {
	if s.engine != nil {
		s.engine.Close()
	}
	return nil
}
