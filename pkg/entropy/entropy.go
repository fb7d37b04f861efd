// Package entropy scores candidate tokens for randomness. Real API keys
// have near-uniform byte distributions; prose, paths and placeholders do
// not. The combined score weighs Shannon entropy against character-class
// spread so short-alphabet tokens (hex digests) don't outrank real keys.
package entropy

import (
	"math"
	"strings"
	"unicode"
)

const (
	entropyWeight      = 0.7
	distributionWeight = 2.0

	// DefaultMinLength is the shortest token worth scoring.
	DefaultMinLength = 16
	// DefaultThreshold is the combined-score cutoff for "high entropy".
	DefaultThreshold = 3.5
)

// Scorer evaluates tokens against configurable thresholds.
type Scorer struct {
	MinLength int
	Threshold float64
}

// NewScorer returns a scorer with the default thresholds.
func NewScorer() *Scorer {
	return &Scorer{MinLength: DefaultMinLength, Threshold: DefaultThreshold}
}

// Shannon computes the Shannon entropy of s in bits per character.
func Shannon(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}

	length := float64(len([]rune(s)))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// DistributionScore measures how evenly a token spreads across the
// lowercase/uppercase/digit/other character classes, in [0, 1]. Tokens
// shorter than 8 characters score 0; single-class tokens score 0.3.
func DistributionScore(s string) float64 {
	if len(s) < 8 {
		return 0
	}

	var lower, upper, digit, other int
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower++
		case unicode.IsUpper(r):
			upper++
		case unicode.IsDigit(r):
			digit++
		default:
			other++
		}
	}

	total := float64(len([]rune(s)))
	var shares []float64
	for _, count := range []int{lower, upper, digit, other} {
		if count > 0 {
			shares = append(shares, float64(count)/total)
		}
	}

	if len(shares) == 1 {
		return 0.3
	}

	ideal := 1.0 / float64(len(shares))
	var deviation float64
	for _, p := range shares {
		deviation += math.Abs(p - ideal)
	}
	deviation /= float64(len(shares))

	return 1.0 - deviation
}

// Score returns the combined entropy/distribution score used against the
// threshold.
func (sc *Scorer) Score(token string) float64 {
	return Shannon(token)*entropyWeight + DistributionScore(token)*distributionWeight
}

// IsHighEntropy reports whether token clears the length, placeholder and
// combined-score bars.
func (sc *Scorer) IsHighEntropy(token string) bool {
	if len(token) < sc.MinLength {
		return false
	}
	if ZeroHeavy(token) {
		return false
	}
	return sc.Score(token) > sc.Threshold
}

// ZeroHeavy reports whether more than 40% of token is the character '0',
// the signature of padded placeholders and test data.
func ZeroHeavy(token string) bool {
	if token == "" {
		return false
	}
	zeros := strings.Count(token, "0")
	return float64(zeros) > float64(len(token))*0.4
}

// UniqueChars counts distinct characters in token. Candidates with fewer
// than 8 are repeated-pattern placeholders, not keys.
func UniqueChars(token string) int {
	seen := make(map[rune]struct{})
	for _, r := range token {
		seen[r] = struct{}{}
	}
	return len(seen)
}
