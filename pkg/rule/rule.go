// Package rule defines the provider detection rules and loads them from
// embedded YAML. Rules are pure data; compilation and matching live in
// pkg/detect.
package rule

import (
	"github.com/keywarden/keywarden/pkg/types"
)

// Rule is one provider recognizer: a match expression plus the metadata
// the detector needs to gate and test it.
type Rule struct {
	ID       string
	Name     string
	Provider types.Provider
	Pattern  string

	// Keywords gate the rule through the prefilter: the rule only runs
	// against content containing one of them. A rule with no keywords at
	// all always runs.
	Keywords []string

	// ContextKeywords, when present, must appear near the match for the
	// rule to claim its provider tag. Used by anonymous shapes (a bare
	// 64-char token) that would otherwise tag every digest in sight.
	ContextKeywords []string

	Examples         []string
	NegativeExamples []string
	References       []string
}

// RequiresContext reports whether the rule only claims matches with a
// context keyword nearby.
func (r *Rule) RequiresContext() bool {
	return len(r.ContextKeywords) > 0
}

// PrefilterKeywords returns the strings whose presence lets the rule run:
// match keywords plus context keywords.
func (r *Rule) PrefilterKeywords() []string {
	out := make([]string, 0, len(r.Keywords)+len(r.ContextKeywords))
	out = append(out, r.Keywords...)
	out = append(out, r.ContextKeywords...)
	return out
}

// Registry is the ordered rule set. Order is precedence: when two rules
// claim identical text, the earlier rule's provider wins, and the generic
// rule always sorts last.
type Registry struct {
	rules []*Rule
}

// NewRegistry builds a registry, moving generic rules to the end while
// otherwise preserving load order.
func NewRegistry(rules []*Rule) *Registry {
	ordered := make([]*Rule, 0, len(rules))
	var generic []*Rule
	for _, r := range rules {
		if r.Provider == types.ProviderGeneric {
			generic = append(generic, r)
			continue
		}
		ordered = append(ordered, r)
	}
	return &Registry{rules: append(ordered, generic...)}
}

// Rules returns all rules in precedence order.
func (reg *Registry) Rules() []*Rule {
	return reg.rules
}

// Len returns the number of rules.
func (reg *Registry) Len() int {
	return len(reg.rules)
}

// ForProvider returns the rules claiming the given provider tag.
func (reg *Registry) ForProvider(p types.Provider) []*Rule {
	var out []*Rule
	for _, r := range reg.rules {
		if r.Provider == p {
			out = append(out, r)
		}
	}
	return out
}
