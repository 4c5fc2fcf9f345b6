// Package tracing carries request-scoped identifiers (trace id, request id,
// operation name) through context.Context and wires them into the log
// package so every log line emitted during a request carries them without
// explicit plumbing at each call site.
package tracing

import (
	"context"

	"github.com/relaywright/gatewaycore/internal/log"
)

// Config controls how a request's trace id is extracted at the HTTP
// boundary. TraceHeader is checked first; ExtraTraceHeaders are fallbacks
// checked in order, for callers that can't set the primary header.
type Config struct {
	TraceHeader       string   `conf:"trace_header"        yaml:"trace_header"        json:"trace_header"`
	ExtraTraceHeaders []string `conf:"extra_trace_headers" yaml:"extra_trace_headers" json:"extra_trace_headers"`
}

type ctxKey int

const (
	traceIDKey ctxKey = iota
	requestIDKey
	operationNameKey
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	return v, ok
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	return v, ok
}

func WithOperationName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationNameKey, name)
}

func GetOperationName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(operationNameKey).(string)
	return v, ok
}

// TraceFieldsHook is the log.Hook that attaches the trace id, request id
// and operation name carried on ctx (set by middleware.WithTrace) to every
// log line, so call sites never have to thread them through by hand.
var TraceFieldsHook = log.HookFunc(func(ctx context.Context, msg string, fields ...log.Field) []log.Field {
	if ctx == nil {
		return fields
	}

	if id, ok := GetTraceID(ctx); ok {
		fields = append(fields, log.String("trace_id", id))
	}

	if id, ok := GetRequestID(ctx); ok {
		fields = append(fields, log.String("request_id", id))
	}

	if name, ok := GetOperationName(ctx); ok {
		fields = append(fields, log.String("operation", name))
	}

	return fields
})
