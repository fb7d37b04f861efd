package validator

import (
	"net/http"

	"github.com/keywarden/keywarden/pkg/types"
)

// providerCheck is one row of the closed check table: a free, read-only,
// non-mutating GET that distinguishes key states for that provider.
// Providers without a row (and everything generic) are never sent to the
// network.
type providerCheck struct {
	endpoint string
	apply    func(req *http.Request, key string)

	// requireDataArray tightens the 200 case: the body must carry a JSON
	// "data" array, which the OpenAI models listing always does for a
	// live key.
	requireDataArray bool
}

func bearerAuth(req *http.Request, key string) {
	req.Header.Set("Authorization", "Bearer "+key)
}

func tokenAuth(req *http.Request, key string) {
	req.Header.Set("Authorization", "Token "+key)
}

// defaultChecks is the shipped table. The anthropic row uses the models
// listing: a GET there is read-only and free, while the messages endpoint
// would create a billable completion on a live key.
func defaultChecks() map[types.Provider]providerCheck {
	return map[types.Provider]providerCheck{
		types.ProviderOpenAI: {
			endpoint:         "https://api.openai.com/v1/models",
			apply:            bearerAuth,
			requireDataArray: true,
		},
		types.ProviderAnthropic: {
			endpoint: "https://api.anthropic.com/v1/models",
			apply: func(req *http.Request, key string) {
				req.Header.Set("x-api-key", key)
				req.Header.Set("anthropic-version", "2023-06-01")
			},
		},
		types.ProviderAzure: {
			endpoint: "https://management.azure.com/subscriptions?api-version=2020-01-01",
			apply:    bearerAuth,
		},
		types.ProviderGemini: {
			endpoint: "https://generativelanguage.googleapis.com/v1beta/models",
			apply: func(req *http.Request, key string) {
				req.Header.Set("x-goog-api-key", key)
			},
		},
		types.ProviderHuggingFace: {
			endpoint: "https://huggingface.co/api/whoami-v2",
			apply:    bearerAuth,
		},
		types.ProviderCohere: {
			endpoint: "https://api.cohere.ai/v1/models",
			apply:    bearerAuth,
		},
		types.ProviderMistral: {
			endpoint: "https://api.mistral.ai/v1/models",
			apply:    bearerAuth,
		},
		types.ProviderGroq: {
			endpoint: "https://api.groq.com/openai/v1/models",
			apply:    bearerAuth,
		},
		types.ProviderReplicate: {
			endpoint: "https://api.replicate.com/v1/account",
			apply:    tokenAuth,
		},
		types.ProviderTogether: {
			endpoint: "https://api.together.xyz/v1/models",
			apply:    bearerAuth,
		},
	}
}

// requestsPerMinute is the sustained per-provider call budget.
func requestsPerMinute(p types.Provider) int {
	switch p {
	case types.ProviderAzure, types.ProviderHuggingFace:
		return 30
	case types.ProviderGeneric:
		return 10
	}
	return 60
}
