package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	for _, p := range AllProviders() {
		parsed, err := ParseProvider(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := ParseProvider("closedai")
	assert.Error(t, err)

	_, err = ParseProvider("OpenAI")
	assert.Error(t, err, "tags are case-sensitive")
}

func TestProvider_Distinctive(t *testing.T) {
	distinctive := []Provider{
		ProviderOpenAI, ProviderAnthropic, ProviderGemini,
		ProviderHuggingFace, ProviderReplicate, ProviderClarifai, ProviderGroq,
	}
	for _, p := range distinctive {
		assert.True(t, p.Distinctive(), p)
	}

	for _, p := range []Provider{ProviderAzure, ProviderCohere, ProviderMistral,
		ProviderStability, ProviderTogether, ProviderAI21, ProviderDeepInfra,
		ProviderAlephAlpha, ProviderGeneric} {
		assert.False(t, p.Distinctive(), p)
	}
}
