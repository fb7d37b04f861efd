package enum

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/keywarden/keywarden/pkg/types"
)

// CIFile is one CI configuration document, local or fetched.
type CIFile struct {
	// System is "github-actions" or "gitlab-ci".
	System string
	// Source is the workflow file path or remote project reference.
	Source string
	// Content is the raw YAML.
	Content []byte
}

// CIEnumerator walks CI configuration structurally: env values, run
// scripts, and variables become units with provenance naming the job and
// step, so a hit reports "job 'deploy' env 'API_KEY'" instead of a byte
// offset into YAML.
type CIEnumerator struct {
	config Config
	files  []CIFile
}

// NewCIEnumerator creates an adapter over explicit CI documents (e.g.
// remote-fetched ones).
func NewCIEnumerator(config Config, files []CIFile) *CIEnumerator {
	return &CIEnumerator{config: config, files: files}
}

// NewLocalCIEnumerator discovers .github/workflows/*.yml and
// .gitlab-ci.yml under the root.
func NewLocalCIEnumerator(config Config) (*CIEnumerator, error) {
	var files []CIFile

	workflowDir := filepath.Join(config.Root, ".github", "workflows")
	entries, err := os.ReadDir(workflowDir)
	if err == nil {
		for _, entry := range entries {
			ext := filepath.Ext(entry.Name())
			if entry.IsDir() || (ext != ".yml" && ext != ".yaml") {
				continue
			}
			path := filepath.Join(workflowDir, entry.Name())
			content, err := os.ReadFile(path)
			if err != nil {
				config.skip(path, err)
				continue
			}
			files = append(files, CIFile{
				System:  "github-actions",
				Source:  filepath.ToSlash(filepath.Join(".github", "workflows", entry.Name())),
				Content: content,
			})
		}
	}

	gitlabPath := filepath.Join(config.Root, ".gitlab-ci.yml")
	if content, err := os.ReadFile(gitlabPath); err == nil {
		files = append(files, CIFile{
			System:  "gitlab-ci",
			Source:  ".gitlab-ci.yml",
			Content: content,
		})
	}

	return &CIEnumerator{config: config, files: files}, nil
}

// Enumerate walks each document. Invalid YAML is a recoverable skip.
func (e *CIEnumerator) Enumerate(ctx context.Context, fn UnitFunc) error {
	for _, file := range e.files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var doc map[string]any
		if err := yaml.Unmarshal(file.Content, &doc); err != nil {
			e.config.skip(file.Source, err)
			continue
		}

		var err error
		switch file.System {
		case "github-actions":
			err = walkGitHubActions(file, doc, fn)
		case "gitlab-ci":
			err = walkGitLabCI(file, doc, fn)
		default:
			err = fmt.Errorf("unknown CI system %q", file.System)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// yield builds a CI unit for one extracted value.
func yield(file CIFile, section, value string, fn UnitFunc) error {
	return fn(types.NewScannableUnit([]byte(value), types.CIProvenance{
		System:  file.System,
		Source:  file.Source,
		Section: section,
	}))
}

// walkGitHubActions covers workflow-level env, job env, step env, and run
// scripts.
func walkGitHubActions(file CIFile, doc map[string]any, fn UnitFunc) error {
	for _, name := range sortedKeys(asMap(doc["env"])) {
		if v, ok := asMap(doc["env"])[name].(string); ok {
			if err := yield(file, fmt.Sprintf("workflow env %q", name), v, fn); err != nil {
				return err
			}
		}
	}

	jobs := asMap(doc["jobs"])
	for _, jobName := range sortedKeys(jobs) {
		job := asMap(jobs[jobName])

		env := asMap(job["env"])
		for _, name := range sortedKeys(env) {
			if v, ok := env[name].(string); ok {
				if err := yield(file, fmt.Sprintf("job %q env %q", jobName, name), v, fn); err != nil {
					return err
				}
			}
		}

		steps, _ := job["steps"].([]any)
		for i, rawStep := range steps {
			step := asMap(rawStep)

			stepEnv := asMap(step["env"])
			for _, name := range sortedKeys(stepEnv) {
				if v, ok := stepEnv[name].(string); ok {
					if err := yield(file, fmt.Sprintf("job %q step %d env %q", jobName, i, name), v, fn); err != nil {
						return err
					}
				}
			}

			if run, ok := step["run"].(string); ok {
				if err := yield(file, fmt.Sprintf("job %q step %d run", jobName, i), run, fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// gitlabReserved are top-level keys that are not job definitions.
var gitlabReserved = map[string]bool{
	"stages": true, "variables": true, "workflow": true,
	"default": true, "include": true, "image": true,
}

// walkGitLabCI covers the global variables section plus each job's
// variables and script lines.
func walkGitLabCI(file CIFile, doc map[string]any, fn UnitFunc) error {
	vars := asMap(doc["variables"])
	for _, name := range sortedKeys(vars) {
		if v, ok := vars[name].(string); ok {
			if err := yield(file, fmt.Sprintf("variables %q", name), v, fn); err != nil {
				return err
			}
		}
	}

	for _, jobName := range sortedKeys(doc) {
		if gitlabReserved[jobName] {
			continue
		}
		job := asMap(doc[jobName])
		if job == nil {
			continue
		}

		jobVars := asMap(job["variables"])
		for _, name := range sortedKeys(jobVars) {
			if v, ok := jobVars[name].(string); ok {
				if err := yield(file, fmt.Sprintf("job %q variable %q", jobName, name), v, fn); err != nil {
					return err
				}
			}
		}

		for _, scriptKey := range []string{"before_script", "script", "after_script"} {
			lines, _ := job[scriptKey].([]any)
			for i, rawLine := range lines {
				if line, ok := rawLine.(string); ok {
					if err := yield(file, fmt.Sprintf("job %q %s line %d", jobName, scriptKey, i), line, fn); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// sortedKeys keeps the walk order deterministic across runs.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
