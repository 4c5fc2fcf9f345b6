package server

import (
	"time"

	"github.com/relaywright/gatewaycore/internal/tracing"
)

// Config controls the HTTP boundary: listen address, timeouts and CORS.
type Config struct {
	Host string `conf:"host" yaml:"host" json:"host"`
	Port int    `conf:"port" yaml:"port" json:"port"`
	Name string `conf:"name" yaml:"name" json:"name"`

	ReadTimeout time.Duration `conf:"read_timeout" yaml:"read_timeout" json:"read_timeout"`

	// RequestTimeout bounds non-LLM requests (models, eval CRUD).
	RequestTimeout time.Duration `conf:"request_timeout" yaml:"request_timeout" json:"request_timeout"`

	// LLMRequestTimeout is the unary deadline (default 60s). The chat route
	// is bounded by the larger of this and StreamFirstByteTimeout.
	LLMRequestTimeout time.Duration `conf:"llm_request_timeout" yaml:"llm_request_timeout" json:"llm_request_timeout"`

	// StreamFirstByteTimeout is the streaming deadline (default 300s). It is
	// applied to the whole chat request, not only to the first byte.
	StreamFirstByteTimeout time.Duration `conf:"stream_first_byte_timeout" yaml:"stream_first_byte_timeout" json:"stream_first_byte_timeout"`

	Trace tracing.Config `conf:"trace" yaml:"trace" json:"trace"`

	Debug bool `conf:"debug" yaml:"debug" json:"debug"`
	CORS  CORS `conf:"cors" yaml:"cors" json:"cors"`

	// APIKeys is the pluggable API-key check §1's non-goals allow: a static
	// allow-list, sufficient for "a pluggable API-key check" without a full
	// multi-tenant auth subsystem.
	APIKeys []string `conf:"api_keys" yaml:"api_keys" json:"api_keys"`
}

// CORS mirrors gin-contrib/cors's Config fields under the project's
// conf/yaml/json tag convention.
type CORS struct {
	Enabled          bool          `conf:"enabled"           yaml:"enabled"           json:"enabled"`
	AllowedOrigins   []string      `conf:"allowed_origins"   yaml:"allowed_origins"   json:"allowed_origins"`
	AllowedMethods   []string      `conf:"allowed_methods"   yaml:"allowed_methods"   json:"allowed_methods"`
	AllowedHeaders   []string      `conf:"allowed_headers"   yaml:"allowed_headers"   json:"allowed_headers"`
	ExposedHeaders   []string      `conf:"exposed_headers"   yaml:"exposed_headers"   json:"exposed_headers"`
	AllowCredentials bool          `conf:"allow_credentials" yaml:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `conf:"max_age"           yaml:"max_age"           json:"max_age"`
}

// DefaultConfig returns the §5 default timeouts (60s unary / 300s
// streaming) with a reasonable listen address.
func DefaultConfig() Config {
	return Config{
		Host:                   "0.0.0.0",
		Port:                   8080,
		Name:                   "gatewaycore",
		ReadTimeout:            30 * time.Second,
		RequestTimeout:         30 * time.Second,
		LLMRequestTimeout:      60 * time.Second,
		StreamFirstByteTimeout: 300 * time.Second,
	}
}
