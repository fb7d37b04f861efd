package types

import "fmt"

// Provider identifies the AI vendor a key shape belongs to. The set is
// closed: detection rules, confidence policy, and validation checks all key
// off these tags.
type Provider string

const (
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderAzure       Provider = "azure"
	ProviderGemini      Provider = "gemini"
	ProviderHuggingFace Provider = "huggingface"
	ProviderCohere      Provider = "cohere"
	ProviderMistral     Provider = "mistral"
	ProviderStability   Provider = "stability"
	ProviderReplicate   Provider = "replicate"
	ProviderClarifai    Provider = "clarifai"
	ProviderTogether    Provider = "together"
	ProviderAI21        Provider = "ai21"
	ProviderDeepInfra   Provider = "deepinfra"
	ProviderAlephAlpha  Provider = "aleph_alpha"
	ProviderGroq        Provider = "groq"
	ProviderGeneric     Provider = "generic"
)

// AllProviders lists every known tag in declaration order.
func AllProviders() []Provider {
	return []Provider{
		ProviderOpenAI, ProviderAnthropic, ProviderAzure, ProviderGemini,
		ProviderHuggingFace, ProviderCohere, ProviderMistral, ProviderStability,
		ProviderReplicate, ProviderClarifai, ProviderTogether, ProviderAI21,
		ProviderDeepInfra, ProviderAlephAlpha, ProviderGroq, ProviderGeneric,
	}
}

// ParseProvider validates a provider tag.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	for _, known := range AllProviders() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Distinctive reports whether the provider's key shape is unambiguous
// enough (unique prefix, fixed length) that a bare pattern match warrants
// high confidence.
func (p Provider) Distinctive() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini,
		ProviderHuggingFace, ProviderReplicate, ProviderClarifai, ProviderGroq:
		return true
	}
	return false
}

// String implements Stringer.
func (p Provider) String() string {
	return string(p)
}
