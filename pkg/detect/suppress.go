package detect

import (
	"bytes"
	"strings"

	"github.com/keywarden/keywarden/pkg/entropy"
)

// minUniqueChars is the distinct-character floor below which a candidate
// is a repeated-pattern placeholder, not a key.
const minUniqueChars = 8

// placeholderMarkers are visible stand-ins that commonly precede a fake
// key in documentation and sample configs.
var placeholderMarkers = [][]byte{
	[]byte("xxxx"),
	[]byte("XXXX"),
	[]byte("<your"),
	[]byte("YOUR_"),
	[]byte("REPLACE"),
	[]byte("changeme"),
}

// suppressed applies the post-match shape checks: zero-padded or
// low-diversity tokens, and matches sitting in a recognized non-secret
// context (placeholder marker immediately before, or a documented example
// key). Suppressed candidates never become findings.
func suppressed(key string, before []byte, exampleKeys map[string]bool) bool {
	if entropy.ZeroHeavy(key) {
		return true
	}
	if entropy.UniqueChars(key) < minUniqueChars {
		return true
	}
	if exampleKeys[key] {
		return true
	}

	// Only the tail of the preceding context matters: "xxxx"-style markers
	// right before the match flag it as illustrative.
	tail := before
	if len(tail) > 16 {
		tail = tail[len(tail)-16:]
	}
	for _, marker := range placeholderMarkers {
		if bytes.Contains(tail, marker) {
			return true
		}
	}
	return false
}

// containsAnyFold reports whether any needle appears in s,
// case-insensitively.
func containsAnyFold(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
