package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/keywarden/keywarden/pkg/scan"
	"github.com/keywarden/keywarden/pkg/types"
)

// jsonDocument is the machine-readable report shape. Findings carry only
// the masked key prefix.
type jsonDocument struct {
	Tool        string               `json:"tool"`
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Summary     Summary              `json:"summary"`
	Findings    []types.ExportRecord `json:"findings"`
	Errors      []scan.ScanError     `json:"errors,omitempty"`
}

// WriteJSON renders the report as indented JSON.
func WriteJSON(w io.Writer, report *scan.Report, min types.Confidence) error {
	findings := filtered(report, min)

	doc := jsonDocument{
		Tool:        toolName,
		RunID:       report.RunID,
		GeneratedAt: time.Now().UTC(),
		Summary:     Summarize(findings),
		Findings:    make([]types.ExportRecord, 0, len(findings)),
		Errors:      report.Errors,
	}
	for _, f := range findings {
		doc.Findings = append(doc.Findings, f.Export())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
