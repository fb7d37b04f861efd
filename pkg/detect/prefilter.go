package detect

import (
	"github.com/cloudflare/ahocorasick"

	"github.com/keywarden/keywarden/pkg/rule"
)

// prefilter gates which rules run against a unit: a rule with keywords only
// runs when Aho-Corasick finds one of them in the content. Rules without
// keywords always run.
type prefilter struct {
	rules        []*rule.Rule
	matcher      *ahocorasick.Matcher
	keywords     []string
	keywordRules map[string][]*rule.Rule
}

func newPrefilter(rules []*rule.Rule) *prefilter {
	pf := &prefilter{
		rules:        rules,
		keywordRules: make(map[string][]*rule.Rule),
	}

	seen := make(map[string]bool)
	for _, r := range rules {
		for _, kw := range r.PrefilterKeywords() {
			if !seen[kw] {
				seen[kw] = true
				pf.keywords = append(pf.keywords, kw)
			}
			pf.keywordRules[kw] = append(pf.keywordRules[kw], r)
		}
	}

	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}
	return pf
}

// filter returns the rules worth running against content, preserving
// registry order so rule precedence survives the gate.
func (pf *prefilter) filter(content []byte) []*rule.Rule {
	eligible := make(map[*rule.Rule]bool, len(pf.rules))
	for _, r := range pf.rules {
		if len(r.PrefilterKeywords()) == 0 {
			eligible[r] = true
		}
	}

	if pf.matcher != nil {
		for _, hit := range pf.matcher.Match(content) {
			for _, r := range pf.keywordRules[pf.keywords[hit]] {
				eligible[r] = true
			}
		}
	}

	result := make([]*rule.Rule, 0, len(eligible))
	for _, r := range pf.rules {
		if eligible[r] {
			result = append(result, r)
		}
	}
	return result
}
