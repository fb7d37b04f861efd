package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "keywarden v")
	assert.Contains(t, out, "Go version")
}

func TestScanExitsWithFindingsSentinel(t *testing.T) {
	dir := t.TempDir()
	content := "OPENAI_API_KEY=sk-Qm3vX9Lr7Tk2Wd5Yh8Zb4Nc6Pf1RgAj5Ue0Iw3Os7Mt9KxBv\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leak.env"), []byte(content), 0o644))

	_, err := executeCommand(t, "scan", dir, "--quiet")
	assert.ErrorIs(t, err, errFindingsFound)
}

func TestScanCleanTreeSucceeds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("hello\n"), 0o644))

	_, err := executeCommand(t, "scan", dir, "--quiet")
	assert.NoError(t, err)
}

func TestScanMissingTargetIsFatal(t *testing.T) {
	_, err := executeCommand(t, "scan", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errFindingsFound)
}

func TestScanWritesJSONReport(t *testing.T) {
	dir := t.TempDir()
	content := "ANTHROPIC_API_KEY=sk-ant-REDACTED\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leak.txt"), []byte(content), 0o644))

	jsonPath := filepath.Join(t.TempDir(), "report.json")
	_, err := executeCommand(t, "scan", dir, "--quiet", "--json", jsonPath)
	assert.ErrorIs(t, err, errFindingsFound)

	data, readErr := os.ReadFile(jsonPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `"anthropic"`)
	assert.NotContains(t, string(data), "Pf1RgAj5Ue0Iw3Os", "raw key must not reach the report")
	scanFlags.jsonPath = ""
}

func TestGitDiffRequiresBase(t *testing.T) {
	_, err := executeCommand(t, "git-diff")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base")
}

func TestSetupRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	require.NoError(t, os.WriteFile(".keywarden.yml", []byte("reporting:\n  min_confidence: high\n"), 0o644))
	_, err = executeCommand(t, "setup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestScanRespectsMinConfidenceFlag(t *testing.T) {
	dir := t.TempDir()
	// Generic medium-confidence token only.
	content := fmt.Sprintf("credential = api_key-%s\n", "hq7Jm2Xw9Lr4Tk8Vd3Yb6Zn1Pc5Rf0Sg")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cfg.txt"), []byte(content), 0o644))

	_, err := executeCommand(t, "scan", dir, "--quiet", "--min-confidence", "high")
	assert.NoError(t, err)
	scanFlags.minConfidence = ""
}
