package rule

import (
	"fmt"
	"regexp"

	"github.com/keywarden/keywarden/pkg/types"
)

// ValidateRule checks rule consistency and required fields.
func ValidateRule(r *Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}

	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule pattern is required")
	}

	if _, err := regexp.Compile(r.Pattern); err != nil {
		return fmt.Errorf("invalid pattern regex for rule %s: %w", r.ID, err)
	}

	if r.Provider == types.ProviderGeneric && r.RequiresContext() {
		return fmt.Errorf("rule %s: the generic rule cannot require context keywords", r.ID)
	}

	return nil
}

// ValidateRegistry checks the whole rule set: every rule valid, IDs
// unique, and exactly one generic rule present (the entropy path depends
// on it).
func ValidateRegistry(reg *Registry) error {
	seen := make(map[string]bool)
	generics := 0

	for _, r := range reg.Rules() {
		if err := ValidateRule(r); err != nil {
			return err
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule ID %s", r.ID)
		}
		seen[r.ID] = true
		if r.Provider == types.ProviderGeneric {
			generics++
		}
	}

	if generics != 1 {
		return fmt.Errorf("registry needs exactly one generic rule, found %d", generics)
	}

	return nil
}
