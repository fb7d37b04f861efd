package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywarden/keywarden/pkg/scan"
	"github.com/keywarden/keywarden/pkg/types"
)

const reportOpenAIKey = "sk-Qm3vX9Lr7Tk2Wd5Yh8Zb4Nc6Pf1RgAj5Ue0Iw3Os7Mt9KxBv"

func testFinding(provider types.Provider, key, path string, conf types.Confidence) *types.Finding {
	content := []byte("x = " + key + "\n")
	return &types.Finding{
		Detection: types.Detection{
			Provider:   provider,
			Key:        key,
			Confidence: conf,
			Location:   types.LocationFor(content, 4, 4+len(key)),
		},
		Provenance: types.FileProvenance{FilePath: path},
	}
}

func testReport(findings ...*types.Finding) *scan.Report {
	return &scan.Report{
		RunID:     "11111111-2222-3333-4444-555555555555",
		StartedAt: time.Now(),
		Findings:  findings,
	}
}

func TestSummarize(t *testing.T) {
	a := testFinding(types.ProviderOpenAI, reportOpenAIKey, "a.py", types.ConfidenceHigh)
	a.Verdict = types.NewVerdict(types.StatusValid, "key accepted")
	b := testFinding(types.ProviderAnthropic, "sk-ant-REDACTED", "b.py", types.ConfidenceHigh)
	b.Verdict = types.NewVerdict(types.StatusInvalid, "key rejected")
	c := testFinding(types.ProviderOpenAI, "sk-Wd5Yh8Zb4Nc6Pf1RgAj5Ue0Iw3Os7Mt9KxBvQm3vX9Lr7Tk2", "c.py", types.ConfidenceMedium)

	s := Summarize([]*types.Finding{a, b, c})
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Validated)
	assert.Equal(t, 1, s.Live)
	assert.Equal(t, 2, s.ByProvider["openai"])
	assert.Equal(t, 1, s.ByProvider["anthropic"])
	assert.Equal(t, 2, s.ByConfidence["high"])
	assert.Equal(t, 1, s.ByConfidence["medium"])
}

func TestConsoleNeverPrintsRawKey(t *testing.T) {
	f := testFinding(types.ProviderOpenAI, reportOpenAIKey, "config.py", types.ConfidenceHigh)
	f.Verdict = types.NewVerdict(types.StatusValid, "key accepted")

	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Render(testReport(f), types.ConfidenceLow))

	out := buf.String()
	assert.NotContains(t, out, reportOpenAIKey)
	assert.Contains(t, out, "sk-Qm3vX...")
	assert.Contains(t, out, "config.py:1")
	assert.Contains(t, out, "openai")
	assert.Contains(t, out, "valid")
}

func TestConsoleSnippets(t *testing.T) {
	f := testFinding(types.ProviderOpenAI, reportOpenAIKey, "config.py", types.ConfidenceHigh)
	f.Snippet = types.Snippet{
		Before:   []byte("openai_key = \""),
		Matching: []byte(reportOpenAIKey),
		After:    []byte("\"\n"),
	}

	// Off by default: no source context reaches the output.
	var plain bytes.Buffer
	require.NoError(t, NewConsole(&plain).Render(testReport(f), types.ConfidenceLow))
	assert.NotContains(t, plain.String(), "context:")

	var buf bytes.Buffer
	console := NewConsole(&buf)
	console.Snippets = true
	require.NoError(t, console.Render(testReport(f), types.ConfidenceLow))

	out := buf.String()
	assert.Contains(t, out, "context:")
	assert.Contains(t, out, "openai_key")
	assert.Contains(t, out, "[sk-Qm3vX...]", "key inside the snippet stays masked")
	assert.NotContains(t, out, reportOpenAIKey)
}

func TestConsoleCleanReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Render(testReport(), types.ConfidenceLow))
	assert.Contains(t, buf.String(), "No leaked keys found")
}

func TestConsoleAppliesConfidenceFloor(t *testing.T) {
	low := testFinding(types.ProviderGeneric, "api_key-hq7Jm2Xw9Lr4Tk8Vd3Yb6Zn1Pc5Rf0Sg", "a.txt", types.ConfidenceLow)

	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Render(testReport(low), types.ConfidenceHigh))
	assert.Contains(t, buf.String(), "No leaked keys found")
}

func TestWriteJSON(t *testing.T) {
	f := testFinding(types.ProviderOpenAI, reportOpenAIKey, "config.py", types.ConfidenceHigh)
	report := testReport(f)
	report.Errors = []scan.ScanError{{Path: "bad.bin", Message: "permission denied"}}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, report, types.ConfidenceLow))

	var doc struct {
		Tool    string `json:"tool"`
		RunID   string `json:"run_id"`
		Summary struct {
			Total      int            `json:"total"`
			ByProvider map[string]int `json:"by_provider"`
		} `json:"summary"`
		Findings []map[string]any `json:"findings"`
		Errors   []map[string]any `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "keywarden", doc.Tool)
	assert.Equal(t, report.RunID, doc.RunID)
	assert.Equal(t, 1, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.ByProvider["openai"])
	require.Len(t, doc.Findings, 1)
	assert.Equal(t, "sk-Qm3vX...", doc.Findings[0]["key_prefix"])
	assert.Equal(t, "config.py", doc.Findings[0]["file_or_commit"])
	assert.NotContains(t, buf.String(), reportOpenAIKey)
	require.Len(t, doc.Errors, 1)
}

func TestWriteSARIF(t *testing.T) {
	high := testFinding(types.ProviderOpenAI, reportOpenAIKey, "src/config.py", types.ConfidenceHigh)
	medium := testFinding(types.ProviderGeneric, "api_key-hq7Jm2Xw9Lr4Tk8Vd3Yb6Zn1Pc5Rf0Sg", "a.txt", types.ConfidenceMedium)

	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, testReport(high, medium), "0.1.0", types.ConfidenceLow))

	var doc struct {
		Schema  string `json:"$schema"`
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name  string `json:"name"`
					Rules []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				Level     string `json:"level"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
						Region struct {
							StartLine int `json:"startLine"`
						} `json:"region"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]
	assert.Equal(t, "keywarden", run.Tool.Driver.Name)
	require.Len(t, run.Results, 2)
	assert.Equal(t, "keywarden/openai", run.Results[0].RuleID)
	assert.Equal(t, "error", run.Results[0].Level)
	assert.Equal(t, "warning", run.Results[1].Level)
	assert.Equal(t, "src/config.py", run.Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, 1, run.Results[0].Locations[0].PhysicalLocation.Region.StartLine)
	assert.NotContains(t, buf.String(), reportOpenAIKey)
}

func TestWriteHTML(t *testing.T) {
	f := testFinding(types.ProviderOpenAI, reportOpenAIKey, "a/<script>.py", types.ConfidenceHigh)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, testReport(f), types.ConfidenceLow))

	out := buf.String()
	assert.Contains(t, out, "sk-Qm3vX...")
	assert.NotContains(t, out, reportOpenAIKey)
	assert.NotContains(t, out, "<script>.py", "paths must be HTML-escaped")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestSlackPost(t *testing.T) {
	var received slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer xoxb-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var findings []*types.Finding
	for i := 0; i < 12; i++ {
		key := fmt.Sprintf("sk-Qm3vX9Lr7Tk2Wd5Yh8Zb4Nc6Pf1RgAj5Ue0Iw3Os7Mt9Kx%02d", i)
		findings = append(findings, testFinding(types.ProviderOpenAI, key, fmt.Sprintf("f%02d.py", i), types.ConfidenceHigh))
	}

	s := NewSlack("xoxb-token", "#security")
	s.apiURL = server.URL
	require.NoError(t, s.Post(context.Background(), testReport(findings...), types.ConfidenceLow))

	assert.Equal(t, "#security", received.Channel)
	assert.Contains(t, received.Text, "12 leaked key(s)")

	var sections int
	var truncated bool
	for _, b := range received.Blocks {
		if b.Type == "section" {
			sections++
			if strings.Contains(b.Text.Text, "more") {
				truncated = true
			}
		}
		if b.Text != nil {
			assert.NotContains(t, b.Text.Text, "Mt9Kx00", "raw key material must not reach slack")
		}
	}
	assert.Equal(t, slackMaxFindings+1, sections, "10 findings plus the truncation note")
	assert.True(t, truncated)
}

func TestSlackRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer server.Close()

	s := NewSlack("xoxb-token", "#missing")
	s.apiURL = server.URL
	err := s.Post(context.Background(), testReport(), types.ConfidenceLow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}
