// Package detect turns raw content into detection candidates: an
// Aho-Corasick keyword prefilter picks the rules worth running, compiled
// match expressions find candidate spans, shape checks and the entropy
// gate suppress placeholders, and an overlap policy resolves tokens
// claimed by more than one provider.
package detect

import (
	"fmt"
	"sort"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/keywarden/keywarden/pkg/entropy"
	"github.com/keywarden/keywarden/pkg/rule"
	"github.com/keywarden/keywarden/pkg/types"
)

const (
	// keywordRadius is how far around a match context keywords and
	// placeholder markers are searched for.
	keywordRadius = 50

	// matchTimeout caps a single expression run so a pathological input
	// cannot stall a scan worker.
	matchTimeout = 5 * time.Second

	defaultContextLines = 2
)

// genericHints are the substrings that lift a high-entropy generic token
// from low to medium confidence.
var genericHints = []string{"api", "key", "token", "secret"}

// Detector scans content against the rule registry. Detect is restartable
// per call and safe for concurrent use: all state is built at construction
// and read-only afterwards.
type Detector struct {
	registry     *rule.Registry
	scorer       *entropy.Scorer
	pf           *prefilter
	compiled     map[string]*regexp2.Regexp
	exampleKeys  map[string]bool
	contextLines int
}

// Option configures a Detector.
type Option func(*Detector)

// WithContextLines sets how many lines of context each detection's snippet
// carries. Zero disables snippets.
func WithContextLines(n int) Option {
	return func(d *Detector) { d.contextLines = n }
}

// WithScorer replaces the default entropy scorer, wiring in configured
// thresholds.
func WithScorer(s *entropy.Scorer) Option {
	return func(d *Detector) { d.scorer = s }
}

// NewDetector compiles the registry's match expressions and builds the
// keyword prefilter. Expressions compile in RE2 mode first; patterns
// needing Perl features fall back to the default engine, and every
// expression gets a match timeout.
func NewDetector(reg *rule.Registry, opts ...Option) (*Detector, error) {
	d := &Detector{
		registry:     reg,
		scorer:       entropy.NewScorer(),
		pf:           newPrefilter(reg.Rules()),
		compiled:     make(map[string]*regexp2.Regexp, reg.Len()),
		exampleKeys:  make(map[string]bool),
		contextLines: defaultContextLines,
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, r := range reg.Rules() {
		re, err := regexp2.Compile(r.Pattern, regexp2.RE2|regexp2.Multiline)
		if err != nil {
			re, err = regexp2.Compile(r.Pattern, regexp2.None)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern for rule %s: %w", r.ID, err)
			}
		}
		re.MatchTimeout = matchTimeout
		d.compiled[r.ID] = re

		// Documented example keys are known non-secrets: a scan of this
		// repository's own rule files must not report them.
		for _, ex := range r.Examples {
			d.exampleKeys[ex] = true
		}
	}
	return d, nil
}

// candidate is a detection before the unit-level overlap policy runs.
// contextual records that the claiming rule passed a context-keyword
// gate, which outranks a shape-only claim on the same span.
type candidate struct {
	det        types.Detection
	generic    bool
	contextual bool
}

// Detect runs the full rule set over content and returns the surviving
// detections ordered by offset. Each call re-runs every eligible rule; no
// rule depends on another's result.
func (d *Detector) Detect(content []byte) ([]types.Detection, error) {
	text := string(content)

	// spanKey(key, offset) -> index into candidates, for the overlap policy.
	claimed := make(map[string]int)
	var candidates []candidate

	for _, r := range d.pf.filter(content) {
		re := d.compiled[r.ID]

		m, err := re.FindStringMatch(text)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		for m != nil {
			start, end := m.Index, m.Index+m.Length
			key := m.String()

			if d.admit(r, key, content, start, end) {
				provider := r.Provider
				contextual := r.RequiresContext()
				if provider == types.ProviderGeneric {
					if rr, ok := d.retag(key, content, start, end); ok {
						provider = rr.Provider
						contextual = rr.RequiresContext()
					}
				}

				conf, keep := d.confidence(provider, key)
				if keep {
					d.place(claimed, &candidates, candidate{
						det:        d.build(provider, key, conf, content, start, end),
						generic:    provider == types.ProviderGeneric,
						contextual: contextual,
					})
				}
			}

			m, err = re.FindNextMatch(m)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.ID, err)
			}
		}
	}

	out := make([]types.Detection, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.det)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location.Offset.Start != out[j].Location.Offset.Start {
			return out[i].Location.Offset.Start < out[j].Location.Offset.Start
		}
		return out[i].Provider < out[j].Provider
	})
	return out, nil
}

// admit applies the pre-confidence gates: context keywords for anonymous
// shapes, then the shape suppression checks.
func (d *Detector) admit(r *rule.Rule, key string, content []byte, start, end int) bool {
	if r.RequiresContext() {
		window := contextWindow(content, start, end, keywordRadius)
		if !containsAnyFold(string(window), r.ContextKeywords) {
			return false
		}
	}

	before := content[:start]
	if len(before) > keywordRadius {
		before = before[len(before)-keywordRadius:]
	}
	return !suppressed(key, before, d.exampleKeys)
}

// retag re-checks a generic match against the provider rules: when the
// whole token full-matches a provider expression, the finding carries that
// rule's provider tag instead. Registry order decides ties.
func (d *Detector) retag(key string, content []byte, start, end int) (*rule.Rule, bool) {
	for _, r := range d.registry.Rules() {
		if r.Provider == types.ProviderGeneric {
			continue
		}
		if r.RequiresContext() {
			window := contextWindow(content, start, end, keywordRadius)
			if !containsAnyFold(string(window), r.ContextKeywords) {
				continue
			}
		}
		m, err := d.compiled[r.ID].FindStringMatch(key)
		if err != nil || m == nil {
			continue
		}
		if m.Index == 0 && m.Length == len(key) {
			return r, true
		}
	}
	return nil, false
}

// confidence assigns the band and reports whether the candidate is kept.
// Below-threshold generic tokens are dropped entirely, never reported.
func (d *Detector) confidence(p types.Provider, key string) (types.Confidence, bool) {
	if p.Distinctive() {
		return types.ConfidenceHigh, true
	}

	high := d.scorer.IsHighEntropy(key)
	if p == types.ProviderGeneric {
		if high && containsAnyFold(key, genericHints) {
			return types.ConfidenceMedium, true
		}
		return types.ConfidenceLow, false
	}

	if high {
		return types.ConfidenceMedium, true
	}
	return types.ConfidenceLow, true
}

// place inserts a candidate under the overlap policy: when two rules claim
// identical text at the same offset, provider-specific beats generic, a
// context-confirmed provider claim beats a shape-only one (a bare sk- 48
// token next to a "stability" keyword is stability, not openai), and the
// earlier rule in registry order keeps the span otherwise.
func (d *Detector) place(claimed map[string]int, candidates *[]candidate, c candidate) {
	span := fmt.Sprintf("%d:%s", c.det.Location.Offset.Start, c.det.Key)
	if idx, ok := claimed[span]; ok {
		prior := (*candidates)[idx]
		switch {
		case prior.generic && !c.generic:
			(*candidates)[idx] = c
		case !prior.generic && !c.generic && c.contextual && !prior.contextual:
			(*candidates)[idx] = c
		}
		return
	}
	claimed[span] = len(*candidates)
	*candidates = append(*candidates, c)
}

// build assembles the Detection value.
func (d *Detector) build(p types.Provider, key string, conf types.Confidence, content []byte, start, end int) types.Detection {
	var before, after []byte
	if d.contextLines > 0 {
		before, after = extractContext(content, start, end, d.contextLines)
	}
	return types.Detection{
		Provider:   p,
		Key:        key,
		Confidence: conf,
		Location:   types.LocationFor(content, start, end),
		Snippet: types.Snippet{
			Before:   before,
			Matching: append([]byte{}, content[start:end]...),
			After:    after,
		},
	}
}
