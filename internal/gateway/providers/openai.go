package providers

import (
	"strings"

	"github.com/relaywright/gatewaycore/internal/gateway"
	"github.com/relaywright/gatewaycore/internal/pkg/httpclient"
)

// NewOpenAI builds an Adapter for api.openai.com and any OpenAI-compatible
// endpoint reachable with bearer auth (self-hosted gateways, proxies).
func NewOpenAI(hc *httpclient.HttpClient) gateway.Adapter {
	return &baseAdapter{
		kind:       gateway.KindOpenAI,
		httpClient: hc,
		buildURL: func(baseURL string, _ *gateway.MaterializedRequest) string {
			return strings.TrimSuffix(orDefault(baseURL, defaultBaseURL), "/") + "/chat/completions"
		},
		buildAuth: func(apiKey string) *httpclient.AuthConfig {
			return &httpclient.AuthConfig{Type: "bearer", APIKey: apiKey}
		},
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}

	return v
}
