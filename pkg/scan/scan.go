package scan

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/keywarden/keywarden/pkg/cache"
	"github.com/keywarden/keywarden/pkg/detect"
	"github.com/keywarden/keywarden/pkg/enum"
	"github.com/keywarden/keywarden/pkg/types"
)

// Source is any content adapter the orchestrator can drain.
type Source interface {
	Enumerate(ctx context.Context, fn enum.UnitFunc) error
}

// Multi chains sources into one: units flow in source order. A fatal
// error in any source aborts the whole enumeration.
func Multi(sources ...Source) Source {
	return multiSource(sources)
}

type multiSource []Source

func (m multiSource) Enumerate(ctx context.Context, fn enum.UnitFunc) error {
	for _, s := range m {
		if err := s.Enumerate(ctx, fn); err != nil {
			return err
		}
	}
	return nil
}

// ScanError is one recoverable problem encountered during a run. A report
// with findings and a non-empty error list is a partial result, which is
// distinct from both a clean scan and a fatal failure.
type ScanError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Report is the outcome of one orchestrated run.
type Report struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Findings  []*types.Finding `json:"-"`
	Errors    []ScanError      `json:"errors,omitempty"`
}

// Filter returns the findings at or above min confidence, preserving
// order.
func (r *Report) Filter(min types.Confidence) []*types.Finding {
	var out []*types.Finding
	for _, f := range r.Findings {
		if f.Confidence >= min {
			out = append(out, f)
		}
	}
	return out
}

// ErrorCollector gathers recoverable errors concurrently. Its OnSkip
// method satisfies the adapter skip-hook signature, so one collector can
// receive both enumeration skips and worker-side failures.
type ErrorCollector struct {
	mu   sync.Mutex
	errs []ScanError
}

// NewErrorCollector creates an empty collector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{}
}

// OnSkip records one recoverable error.
func (c *ErrorCollector) OnSkip(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.errs = append(c.errs, ScanError{Path: path, Message: msg})
}

// Drain returns the collected errors and resets the collector.
func (c *ErrorCollector) Drain() []ScanError {
	c.mu.Lock()
	defer c.mu.Unlock()
	errs := c.errs
	c.errs = nil
	return errs
}

// Orchestrator drives a scan: drains a source into a worker pool,
// answers from the cache when the fingerprint is known, detects
// otherwise, then merges workers' findings into one deduplicated,
// deterministically ordered list.
type Orchestrator struct {
	detector  *detect.Detector
	cache     cache.Cache
	locks     *cache.KeyMutex
	collector *ErrorCollector
	workers   int
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithErrorCollector shares a collector with the source adapters, so
// enumeration skips land in the same Report.Errors as worker failures.
func WithErrorCollector(c *ErrorCollector) Option {
	return func(o *Orchestrator) { o.collector = c }
}

// New creates an Orchestrator over a detector and a cache. The
// orchestrator owns the cache lifecycle during a run but not the
// handle itself; callers close it.
func New(detector *detect.Detector, c cache.Cache, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		detector:  detector,
		cache:     c,
		locks:     cache.NewKeyMutex(),
		collector: NewErrorCollector(),
		workers:   runtime.NumCPU(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Collector returns the run's error collector, for wiring into adapter
// skip hooks.
func (o *Orchestrator) Collector() *ErrorCollector {
	return o.collector
}

// Run drains the source and returns the report. A fatal traversal error
// (bad path, unresolvable ref) returns an error with no report;
// recoverable problems are collected into Report.Errors alongside the
// findings that were still produced.
func (o *Orchestrator) Run(ctx context.Context, source Source) (*Report, error) {
	started := time.Now()
	runID := uuid.NewString()
	o.logger.Info("scan started", "run_id", runID, "workers", o.workers)

	units := make(chan types.ScannableUnit)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(units)
		return source.Enumerate(gctx, func(u types.ScannableUnit) error {
			select {
			case units <- u:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	var mu sync.Mutex
	var all []*types.Finding

	for i := 0; i < o.workers; i++ {
		g.Go(func() error {
			for unit := range units {
				findings, err := o.process(unit)
				if err != nil {
					o.collector.OnSkip(unit.Provenance.Path(), err)
					continue
				}
				if len(findings) == 0 {
					continue
				}
				mu.Lock()
				all = append(all, findings...)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", runID, err)
	}

	report := &Report{
		RunID:     runID,
		StartedAt: started,
		Duration:  time.Since(started),
		Findings:  dedupe(all),
		Errors:    o.collector.Drain(),
	}
	o.logger.Info("scan finished",
		"run_id", runID,
		"findings", len(report.Findings),
		"errors", len(report.Errors),
		"duration", report.Duration)
	return report, nil
}

// process resolves one unit: cache hit re-binds the stored detections to
// this unit's provenance, a miss runs detection and stores the result.
// The per-fingerprint lock makes two workers holding identical content
// detect once.
func (o *Orchestrator) process(unit types.ScannableUnit) ([]*types.Finding, error) {
	o.locks.Lock(unit.Fingerprint)
	defer o.locks.Unlock(unit.Fingerprint)

	result, hit, err := o.cache.Get(unit.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("cache read: %w", err)
	}
	if !hit {
		detections, err := o.detector.Detect(unit.Content)
		if err != nil {
			return nil, fmt.Errorf("detection: %w", err)
		}
		result = cache.Result{Detections: detections, CachedAt: time.Now().UTC()}
		if err := o.cache.Put(unit.Fingerprint, result); err != nil {
			return nil, fmt.Errorf("cache write: %w", err)
		}
	}

	findings := make([]*types.Finding, 0, len(result.Detections))
	for _, det := range result.Detections {
		findings = append(findings, &types.Finding{
			Detection:  det,
			Provenance: unit.Provenance,
		})
	}
	return findings, nil
}

// dedupe collapses findings with identical (provider, key material) to
// the earliest occurrence under the (source kind, path, offset) order,
// then sorts the survivors deterministically.
func dedupe(findings []*types.Finding) []*types.Finding {
	byKey := make(map[string]*types.Finding)
	for _, f := range findings {
		key := f.DedupKey()
		if prior, ok := byKey[key]; ok && types.CompareFindings(prior, f) <= 0 {
			continue
		}
		byKey[key] = f
	}

	out := make([]*types.Finding, 0, len(byKey))
	for _, f := range byKey {
		out = append(out, f)
	}
	slices.SortFunc(out, types.CompareFindings)
	return out
}
