package report

import (
	"html/template"
	"io"
	"time"

	"github.com/keywarden/keywarden/pkg/scan"
	"github.com/keywarden/keywarden/pkg/types"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>keywarden report</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1a1a2e; }
  h1 { font-size: 1.4rem; }
  table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
  th, td { text-align: left; padding: 0.4rem 0.8rem; border-bottom: 1px solid #ddd; }
  th { background: #f4f4f8; }
  .high { color: #c0392b; font-weight: bold; }
  .medium { color: #b9770e; }
  .low { color: #555; }
  .valid { color: #c0392b; font-weight: bold; }
  .invalid { color: #1e8449; }
  .meta { color: #888; font-size: 0.85rem; margin-top: 1.5rem; }
</style>
</head>
<body>
<h1>keywarden scan report</h1>
<p>{{ .Summary.Total }} finding(s){{ if .Summary.Validated }}, {{ .Summary.Live }} live{{ end }}</p>
<table>
  <tr><th>Provider</th><th>Key</th><th>Confidence</th><th>Location</th><th>Line</th><th>Status</th></tr>
  {{ range .Findings }}
  <tr>
    <td>{{ .Provider }}</td>
    <td><code>{{ .KeyPreview }}</code></td>
    <td class="{{ .Confidence }}">{{ .Confidence }}</td>
    <td>{{ .FileOrCommit }}</td>
    <td>{{ .LineOrOffset }}</td>
    <td class="{{ .Status }}">{{ if .Validated }}{{ .Status }}{{ else }}&mdash;{{ end }}</td>
  </tr>
  {{ end }}
</table>
{{ if .Errors }}
<p class="meta">{{ len .Errors }} path(s) skipped during the scan.</p>
{{ end }}
<p class="meta">run {{ .RunID }} &middot; generated {{ .GeneratedAt.Format "2006-01-02 15:04:05 MST" }}</p>
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Parse(htmlTemplate))

type htmlData struct {
	RunID       string
	GeneratedAt time.Time
	Summary     Summary
	Findings    []types.ExportRecord
	Errors      []scan.ScanError
}

// WriteHTML renders a standalone HTML report.
func WriteHTML(w io.Writer, report *scan.Report, min types.Confidence) error {
	findings := filtered(report, min)

	data := htmlData{
		RunID:       report.RunID,
		GeneratedAt: time.Now(),
		Summary:     Summarize(findings),
		Findings:    make([]types.ExportRecord, 0, len(findings)),
		Errors:      report.Errors,
	}
	for _, f := range findings {
		data.Findings = append(data.Findings, f.Export())
	}
	return htmlTmpl.Execute(w, data)
}
