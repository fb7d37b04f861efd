package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/keywarden/keywarden/pkg/scan"
	"github.com/keywarden/keywarden/pkg/types"
)

// Console renders a human-readable report to a terminal.
type Console struct {
	out io.Writer

	// Snippets adds a source-context line per finding. The matched key
	// inside the snippet is always masked; the switch only controls
	// whether surrounding code reaches the output at all.
	Snippets bool

	header    *color.Color
	high      *color.Color
	medium    *color.Color
	low       *color.Color
	liveMark  *color.Color
	deadMark  *color.Color
	otherMark *color.Color
	dim       *color.Color
}

// NewConsole creates a console renderer. Color is suppressed globally
// through color.NoColor, which the CLI sets from --no-color and TTY
// detection.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:       out,
		header:    color.New(color.Bold),
		high:      color.New(color.FgRed, color.Bold),
		medium:    color.New(color.FgYellow),
		low:       color.New(color.FgWhite),
		liveMark:  color.New(color.FgRed, color.Bold),
		deadMark:  color.New(color.FgGreen),
		otherMark: color.New(color.FgYellow),
		dim:       color.New(color.Faint),
	}
}

// Render prints the findings at or above min confidence plus a summary.
func (c *Console) Render(report *scan.Report, min types.Confidence) error {
	findings := filtered(report, min)

	if len(findings) == 0 {
		if len(report.Errors) == 0 {
			fmt.Fprintln(c.out, "No leaked keys found.")
		} else {
			fmt.Fprintf(c.out, "No leaked keys found (%d paths skipped).\n", len(report.Errors))
		}
		return nil
	}

	c.header.Fprintf(c.out, "Found %d leaked key(s)\n\n", len(findings))

	for _, f := range findings {
		c.confidenceColor(f.Confidence).Fprintf(c.out, "[%s] %s\n", f.Confidence, f.Provider)
		fmt.Fprintf(c.out, "  key:      %s\n", f.KeyPreview())
		fmt.Fprintf(c.out, "  location: %s:%d\n", f.Provenance.Path(), f.LineOrOffset())
		if c.Snippets {
			if snippet := oneLine(f.Snippet.Redacted()); snippet != "" {
				c.dim.Fprintf(c.out, "  context:  %s\n", snippet)
			}
		}
		if f.Validated() {
			fmt.Fprint(c.out, "  status:   ")
			c.statusColor(f.Verdict.Status).Fprintln(c.out, string(f.Verdict.Status))
		}
		fmt.Fprintln(c.out)
	}

	summary := Summarize(findings)
	c.header.Fprintln(c.out, "Summary")
	for _, provider := range providersByCount(summary) {
		fmt.Fprintf(c.out, "  %-12s %d\n", provider, summary.ByProvider[provider])
	}
	if summary.Validated > 0 {
		fmt.Fprintf(c.out, "  validated: %d, live: %d\n", summary.Validated, summary.Live)
	}
	if len(report.Errors) > 0 {
		c.dim.Fprintf(c.out, "  %d path(s) skipped with warnings\n", len(report.Errors))
	}
	return nil
}

// oneLine flattens a snippet for single-line display.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (c *Console) confidenceColor(conf types.Confidence) *color.Color {
	switch conf {
	case types.ConfidenceHigh:
		return c.high
	case types.ConfidenceMedium:
		return c.medium
	}
	return c.low
}

func (c *Console) statusColor(status types.VerdictStatus) *color.Color {
	switch status {
	case types.StatusValid:
		return c.liveMark
	case types.StatusInvalid:
		return c.deadMark
	}
	return c.otherMark
}
