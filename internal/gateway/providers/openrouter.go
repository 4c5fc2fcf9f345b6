package providers

import (
	"strings"

	"github.com/relaywright/gatewaycore/internal/gateway"
	"github.com/relaywright/gatewaycore/internal/pkg/httpclient"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouter builds an Adapter for OpenRouter, which speaks the same
// OpenAI-compatible wire format and bearer auth convention as NewOpenAI but
// defaults to a different base URL.
func NewOpenRouter(hc *httpclient.HttpClient) gateway.Adapter {
	return &baseAdapter{
		kind:       gateway.KindOpenRouter,
		httpClient: hc,
		buildURL: func(baseURL string, _ *gateway.MaterializedRequest) string {
			return strings.TrimSuffix(orDefault(baseURL, defaultOpenRouterBaseURL), "/") + "/chat/completions"
		},
		buildAuth: func(apiKey string) *httpclient.AuthConfig {
			return &httpclient.AuthConfig{Type: "bearer", APIKey: apiKey}
		},
	}
}
