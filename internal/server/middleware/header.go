package middleware

import (
	"errors"
	"net/http"
	"strings"
)

// APIKeyConfig controls which headers ExtractAPIKeyFromRequest checks and
// in what order.
type APIKeyConfig struct {
	Headers         []string
	AllowedPrefixes []string
}

// DefaultAPIKeyConfig checks Authorization then the common X-API-Key
// variants. A leading "Bearer " or "Api-Key " is stripped from whichever
// header matches; neither prefix is required on any of them.
var DefaultAPIKeyConfig = &APIKeyConfig{
	Headers:         []string{"Authorization", "X-API-Key", "X-Api-Key", "Api-Key"},
	AllowedPrefixes: []string{"Bearer ", "Api-Key "},
}

// ExtractAPIKeyFromRequest finds the first configured header present on r
// and strips any allowed prefix, returning the bare key.
func ExtractAPIKeyFromRequest(r *http.Request, config *APIKeyConfig) (string, error) {
	if config == nil {
		config = DefaultAPIKeyConfig
	}

	for _, header := range config.Headers {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}

		for _, prefix := range config.AllowedPrefixes {
			if strings.HasPrefix(value, prefix) {
				value = strings.TrimPrefix(value, prefix)
				break
			}
		}

		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		return value, nil
	}

	return "", errors.New("API key not found in any supported header")
}
