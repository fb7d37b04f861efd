package validator

import (
	"strings"

	"github.com/keywarden/keywarden/pkg/entropy"
	"github.com/keywarden/keywarden/pkg/types"
)

// knownPrefixes maps providers with a fixed key prefix. A finding tagged
// with one of these providers but not carrying the prefix cannot be a
// live key, so it is invalid without a network call.
var knownPrefixes = map[types.Provider]string{
	types.ProviderOpenAI:      "sk-",
	types.ProviderAnthropic:   "sk-ant-",
	types.ProviderGemini:      "AIza",
	types.ProviderHuggingFace: "hf_",
	types.ProviderGroq:        "gsk_",
	types.ProviderReplicate:   "r8_",
}

// testMarkers are substrings that mark deliberately fake key material.
var testMarkers = []string{"test", "example", "fake", "demo", "sample", "placeholder"}

// precheck runs the local, no-network rejections. Returns nil when the
// key deserves a real check.
func precheck(p types.Provider, key string) *types.ValidationVerdict {
	if prefix, ok := knownPrefixes[p]; ok && !strings.HasPrefix(key, prefix) {
		return types.NewVerdict(types.StatusInvalid, "key does not carry the provider prefix")
	}

	lower := strings.ToLower(key)
	for _, marker := range testMarkers {
		if strings.Contains(lower, marker) {
			return types.NewVerdict(types.StatusInvalid, "test or placeholder key")
		}
	}

	if entropy.ZeroHeavy(key) {
		return types.NewVerdict(types.StatusInvalid, "key material is mostly zeros")
	}
	return nil
}
