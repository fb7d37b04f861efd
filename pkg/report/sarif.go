package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/keywarden/keywarden/pkg/scan"
	"github.com/keywarden/keywarden/pkg/types"
)

// SARIF 2.1.0 constants.
const (
	sarifSchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	sarifVersion   = "2.1.0"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ShortDescription sarifText `json:"shortDescription"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifText       `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// WriteSARIF renders the report as SARIF 2.1.0, one rule per provider
// seen, suitable for code-scanning upload. Messages carry the masked
// preview, never the key.
func WriteSARIF(w io.Writer, report *scan.Report, version string, min types.Confidence) error {
	findings := filtered(report, min)

	rulesSeen := make(map[string]bool)
	var rules []sarifRule
	results := make([]sarifResult, 0, len(findings))

	for _, f := range findings {
		ruleID := toolName + "/" + string(f.Provider)
		if !rulesSeen[ruleID] {
			rulesSeen[ruleID] = true
			rules = append(rules, sarifRule{
				ID:   ruleID,
				Name: fmt.Sprintf("Leaked %s API key", f.Provider),
				ShortDescription: sarifText{
					Text: fmt.Sprintf("An API key for %s committed or present in scanned content", f.Provider),
				},
			})
		}

		results = append(results, sarifResult{
			RuleID: ruleID,
			Level:  sarifLevel(f.Confidence),
			Message: sarifText{
				Text: fmt.Sprintf("Possible %s API key (%s), confidence %s", f.Provider, f.KeyPreview(), f.Confidence),
			},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: sarifURI(f.Provenance.Path())},
					Region: sarifRegion{
						StartLine:   f.Location.Source.Start.Line,
						StartColumn: f.Location.Source.Start.Column,
						EndLine:     f.Location.Source.End.Line,
						EndColumn:   f.Location.Source.End.Column,
					},
				},
			}},
		})
	}

	doc := sarifReport{
		Schema:  sarifSchemaURI,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    toolName,
				Version: version,
				Rules:   rules,
			}},
			Results: results,
		}},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func sarifLevel(conf types.Confidence) string {
	switch conf {
	case types.ConfidenceHigh:
		return "error"
	case types.ConfidenceMedium:
		return "warning"
	}
	return "note"
}

// sarifURI converts a path to SARIF URI form: absolute paths get a
// file:// scheme, relative paths stay relative.
func sarifURI(path string) string {
	if filepath.IsAbs(path) {
		path = filepath.ToSlash(path)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	return filepath.ToSlash(path)
}
