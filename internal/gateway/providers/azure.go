package providers

import (
	"fmt"
	"strings"

	"github.com/relaywright/gatewaycore/internal/gateway"
	"github.com/relaywright/gatewaycore/internal/pkg/httpclient"
)

const defaultAzureAPIVersion = "2024-06-01"

// NewAzure builds an Adapter for Azure OpenAI, whose URL shape folds the
// deployment (= model) into the path and an api-version into the query,
// and which authenticates with an "api-key" header rather than a bearer
// token.
func NewAzure(hc *httpclient.HttpClient) gateway.Adapter {
	return &baseAdapter{
		kind:       gateway.KindAzure,
		httpClient: hc,
		buildURL: func(baseURL string, req *gateway.MaterializedRequest) string {
			trimmed := strings.TrimSuffix(baseURL, "/")

			return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
				trimmed, req.Model, defaultAzureAPIVersion)
		},
		buildAuth: func(apiKey string) *httpclient.AuthConfig {
			return &httpclient.AuthConfig{Type: "api_key", APIKey: apiKey, HeaderKey: "api-key"}
		},
	}
}
