package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaywright/gatewaycore/internal/gateway"
)

// ErrorResponse is the body returned on any handler failure, including
// gateway.FallbackExhaustedError's attempted-provider audit trail.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type               string                      `json:"type"`
	Message            string                      `json:"message"`
	AttemptedProviders []gateway.ProviderModelKey  `json:"attempted_providers,omitempty"`
	ProviderErrors     []gateway.AttemptError      `json:"provider_errors,omitempty"`
}

// AbortWithError aborts the request with a JSON error body shaped per §7's
// "User-visible failure" rule, and records err on the gin context for
// AccessLog to pick up.
func AbortWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)

	body := ErrorResponse{Error: ErrorBody{
		Type:    http.StatusText(status),
		Message: err.Error(),
	}}

	var fe *gateway.FallbackExhaustedError
	if gwErr, ok := err.(*gateway.Error); ok {
		if inner, ok := gwErr.Cause.(*gateway.FallbackExhaustedError); ok {
			fe = inner
		}
	}

	if fe != nil {
		body.Error.AttemptedProviders = fe.AttemptedProviders
		body.Error.ProviderErrors = fe.ProviderErrors
	}

	c.AbortWithStatusJSON(status, body)
}

// AbortWithGatewayError maps a gateway-classified error to its §7 HTTP
// status and aborts with it.
func AbortWithGatewayError(c *gin.Context, err error) {
	AbortWithError(c, gateway.ClassOf(err).HTTPStatus(), err)
}
