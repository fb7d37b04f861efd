package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/pkg/cache"
	"github.com/keywarden/keywarden/pkg/config"
	"github.com/keywarden/keywarden/pkg/detect"
	"github.com/keywarden/keywarden/pkg/entropy"
	"github.com/keywarden/keywarden/pkg/report"
	"github.com/keywarden/keywarden/pkg/rule"
	"github.com/keywarden/keywarden/pkg/scan"
	"github.com/keywarden/keywarden/pkg/types"
	"github.com/keywarden/keywarden/pkg/validator"
)

// outputFlags are the reporting and validation flags shared by the scan
// commands.
type outputFlags struct {
	validate      bool
	jsonPath      string
	sarifPath     string
	htmlPath      string
	slackChannel  string
	minConfidence string
	cachePath     string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.validate, "validate", false, "Check found keys against their provider's read-only endpoint")
	cmd.Flags().StringVar(&o.jsonPath, "json", "", "Write a JSON report to FILE")
	cmd.Flags().StringVar(&o.sarifPath, "sarif", "", "Write a SARIF 2.1.0 report to FILE")
	cmd.Flags().StringVar(&o.htmlPath, "html", "", "Write an HTML report to FILE")
	cmd.Flags().StringVar(&o.slackChannel, "slack-report", "", "Post a digest to this Slack channel (needs SLACK_API_TOKEN)")
	cmd.Flags().StringVar(&o.minConfidence, "min-confidence", "", "Report only findings at or above this confidence (low, medium, high)")
	cmd.Flags().StringVar(&o.cachePath, "cache", "", "Result cache file (.json or .db); empty keeps results in memory")
}

// minConfidence resolves the floor: flag beats config.
func (o *outputFlags) resolveMinConfidence(cfg *config.Config) (types.Confidence, error) {
	if o.minConfidence != "" {
		return types.ParseConfidence(o.minConfidence)
	}
	return cfg.MinConfidence(), nil
}

// newOrchestrator assembles the detection pipeline from configuration.
// The returned cache must be closed by the caller.
func newOrchestrator(cfg *config.Config, o *outputFlags) (*scan.Orchestrator, cache.Cache, error) {
	registry, err := rule.NewLoader().LoadBuiltin()
	if err != nil {
		return nil, nil, fmt.Errorf("loading rules: %w", err)
	}

	detector, err := detect.NewDetector(registry, detect.WithScorer(&entropy.Scorer{
		MinLength: cfg.Entropy.MinLength,
		Threshold: cfg.Entropy.Threshold,
	}))
	if err != nil {
		return nil, nil, fmt.Errorf("building detector: %w", err)
	}

	c, err := cache.New(cache.Config{Path: o.cachePath})
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}

	return scan.New(detector, c), c, nil
}

// finishRun validates (when asked), emits every requested report, and
// maps findings to the exit-code sentinel.
func finishRun(cmd *cobra.Command, cfg *config.Config, o *outputFlags, rep *scan.Report) error {
	min, err := o.resolveMinConfidence(cfg)
	if err != nil {
		return err
	}

	if o.validate || cfg.Validation.Enabled {
		engine := validator.NewEngine(
			validator.WithTimeout(time.Duration(cfg.Validation.TimeoutSeconds)*time.Second),
			validator.WithWorkersPerProvider(cfg.Validation.WorkersPerProvider),
			validator.WithVerdictTTL(time.Duration(cfg.Validation.VerdictTTLMinutes)*time.Minute),
		)
		defer engine.Close()
		engine.Validate(cmd.Context(), rep.Filter(min))
	}

	if err := emitReports(cmd.Context(), cfg, o, rep, min); err != nil {
		return err
	}

	if len(rep.Filter(min)) > 0 {
		return errFindingsFound
	}
	return nil
}

func emitReports(ctx context.Context, cfg *config.Config, o *outputFlags, rep *scan.Report, min types.Confidence) error {
	console := report.NewConsole(os.Stdout)
	console.Snippets = !cfg.Reporting.Redact
	if err := console.Render(rep, min); err != nil {
		return err
	}

	if o.jsonPath != "" {
		if err := writeReportFile(o.jsonPath, func(f *os.File) error {
			return report.WriteJSON(f, rep, min)
		}); err != nil {
			return fmt.Errorf("writing JSON report: %w", err)
		}
	}
	if o.sarifPath != "" {
		if err := writeReportFile(o.sarifPath, func(f *os.File) error {
			return report.WriteSARIF(f, rep, version, min)
		}); err != nil {
			return fmt.Errorf("writing SARIF report: %w", err)
		}
	}
	if o.htmlPath != "" {
		if err := writeReportFile(o.htmlPath, func(f *os.File) error {
			return report.WriteHTML(f, rep, min)
		}); err != nil {
			return fmt.Errorf("writing HTML report: %w", err)
		}
	}

	channel := o.slackChannel
	if channel == "" {
		channel = cfg.Slack.WebhookChannel
	}
	if channel != "" {
		token := os.Getenv("SLACK_API_TOKEN")
		if token == "" {
			return fmt.Errorf("slack report requested but SLACK_API_TOKEN is not set")
		}
		if err := report.NewSlack(token, channel).Post(ctx, rep, min); err != nil {
			return err
		}
	}
	return nil
}

func writeReportFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
