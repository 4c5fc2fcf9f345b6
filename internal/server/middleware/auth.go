package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrInvalidAPIKey is returned when the caller's key isn't in the
// configured allow-list.
var ErrInvalidAPIKey = errors.New("invalid API key")

// WithAPIKeyAuth is the pluggable API-key check §1's non-goals call for:
// a static allow-list, no issuance, no multi-tenant scoping.
func WithAPIKeyAuth(allowed []string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}

	return func(c *gin.Context) {
		if len(allowedSet) == 0 {
			c.Next()
			return
		}

		key, err := ExtractAPIKeyFromRequest(c.Request, nil)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, err)
			return
		}

		if _, ok := allowedSet[key]; !ok {
			AbortWithError(c, http.StatusUnauthorized, ErrInvalidAPIKey)
			return
		}

		c.Next()
	}
}
