// Package report renders scan results. Every renderer consumes the same
// flat export record; none of them ever sees raw key material.
package report

import (
	"sort"

	"github.com/keywarden/keywarden/pkg/scan"
	"github.com/keywarden/keywarden/pkg/types"
)

const toolName = "keywarden"

// Summary aggregates findings for the header sections of each format.
type Summary struct {
	Total        int            `json:"total"`
	Validated    int            `json:"validated"`
	Live         int            `json:"live"`
	ByProvider   map[string]int `json:"by_provider"`
	ByConfidence map[string]int `json:"by_confidence"`
}

// Summarize builds the aggregate view of a finding list.
func Summarize(findings []*types.Finding) Summary {
	s := Summary{
		Total:        len(findings),
		ByProvider:   make(map[string]int),
		ByConfidence: make(map[string]int),
	}
	for _, f := range findings {
		s.ByProvider[string(f.Provider)]++
		s.ByConfidence[f.Confidence.String()]++
		if f.Validated() {
			s.Validated++
			if f.Verdict.Status == types.StatusValid {
				s.Live++
			}
		}
	}
	return s
}

// providersByCount returns provider names ordered by finding count
// descending, name ascending, so summaries render stably.
func providersByCount(s Summary) []string {
	names := make([]string, 0, len(s.ByProvider))
	for name := range s.ByProvider {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.ByProvider[names[i]] != s.ByProvider[names[j]] {
			return s.ByProvider[names[i]] > s.ByProvider[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// filtered applies the reporting confidence floor.
func filtered(report *scan.Report, min types.Confidence) []*types.Finding {
	return report.Filter(min)
}
