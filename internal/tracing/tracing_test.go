package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaywright/gatewaycore/internal/log"
)

func TestTraceFieldsHook(t *testing.T) {
	t.Run("with trace ID", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "at-test-trace-id")
		fields := TraceFieldsHook.Apply(ctx, "test message")
		assert.Len(t, fields, 1)
		assert.Equal(t, "trace_id", fields[0].Key)
		assert.Equal(t, "at-test-trace-id", fields[0].String)
	})

	t.Run("with operation name", func(t *testing.T) {
		ctx := WithOperationName(context.Background(), "test-operation-name")
		fields := TraceFieldsHook.Apply(ctx, "test message")
		assert.Len(t, fields, 1)
		assert.Equal(t, "operation", fields[0].Key)
		assert.Equal(t, "test-operation-name", fields[0].String)
	})

	t.Run("with trace ID and request ID", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "at-test-trace-id")
		ctx = WithRequestID(ctx, "req-1")
		fields := TraceFieldsHook.Apply(ctx, "test message")
		assert.Len(t, fields, 2)
	})

	t.Run("with context that doesn't carry any ids", func(t *testing.T) {
		fields := TraceFieldsHook.Apply(context.Background(), "test message")
		assert.Len(t, fields, 0)
	})

	t.Run("with nil context", func(t *testing.T) {
		var hook log.Hook = TraceFieldsHook
		fields := hook.Apply(nil, "test message") //nolint:staticcheck // exercising nil-context safety explicitly
		assert.Len(t, fields, 0)
	})
}
