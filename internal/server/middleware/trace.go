package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relaywright/gatewaycore/internal/tracing"
)

func traceHeaderName(config tracing.Config) string {
	if config.TraceHeader != "" {
		return config.TraceHeader
	}

	return "X-Trace-Id"
}

func getTraceIDFromHeader(c *gin.Context, config tracing.Config) string {
	if id := c.GetHeader(traceHeaderName(config)); id != "" {
		return id
	}

	for _, header := range config.ExtraTraceHeaders {
		if id := c.GetHeader(header); id != "" {
			return id
		}
	}

	return ""
}

// WithTrace extracts (or mints) a trace id and a fresh request id, and
// stashes both in the request context so tracing.TraceFieldsHook can
// attach them to every log line emitted while handling this request.
func WithTrace(config tracing.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := getTraceIDFromHeader(c, config)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := tracing.WithTraceID(c.Request.Context(), traceID)
		ctx = tracing.WithRequestID(ctx, uuid.NewString())
		ctx = tracing.WithOperationName(ctx, c.Request.Method+" "+c.FullPath())

		c.Request = c.Request.WithContext(ctx)
		c.Header(traceHeaderName(config), traceID)

		c.Next()
	}
}
