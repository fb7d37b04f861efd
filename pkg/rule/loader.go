package rule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/keywarden/keywarden/pkg/types"
)

// Loader handles loading rules from YAML files.
type Loader struct {
	fs fs.FS
}

// NewLoader creates a loader backed by the embedded built-in rules.
func NewLoader() *Loader {
	return &Loader{fs: builtinRulesFS}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{fs: fsys}
}

// LoadRules parses all rules from YAML bytes.
func (l *Loader) LoadRules(data []byte) ([]*Rule, error) {
	var yamlFile yamlRulesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(yamlFile.Rules) == 0 {
		return nil, fmt.Errorf("no rules found in YAML")
	}

	rules := make([]*Rule, 0, len(yamlFile.Rules))
	for _, yr := range yamlFile.Rules {
		r, err := convertYAMLRule(yr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// LoadRuleFile loads rules from a YAML file path.
func (l *Loader) LoadRuleFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.LoadRules(data)
}

// LoadBuiltin loads the embedded rule set into a validated registry.
func (l *Loader) LoadBuiltin() (*Registry, error) {
	var rules []*Rule

	err := fs.WalkDir(l.fs, "rules", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		loaded, err := l.LoadRules(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		rules = append(rules, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(rules)
	if err := ValidateRegistry(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// convertYAMLRule converts the YAML shape to a Rule, resolving the
// provider tag.
func convertYAMLRule(yr yamlRule) (*Rule, error) {
	provider, err := types.ParseProvider(yr.Provider)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", yr.ID, err)
	}

	return &Rule{
		ID:               yr.ID,
		Name:             yr.Name,
		Provider:         provider,
		Pattern:          strings.TrimSpace(yr.Pattern),
		Keywords:         yr.Keywords,
		ContextKeywords:  yr.ContextKeywords,
		Examples:         yr.Examples,
		NegativeExamples: yr.NegativeExamples,
		References:       yr.References,
	}, nil
}
