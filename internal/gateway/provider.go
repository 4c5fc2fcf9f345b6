package gateway

import (
	"context"

	"github.com/relaywright/gatewaycore/internal/pkg/streams"
)

// Adapter is C1's contract: speak one upstream API, translating the unified
// request/response shapes. An adapter MUST NOT retry and MUST NOT log —
// both are the Fallback Executor's (C3) and Trace Logger's (C4) job.
type Adapter interface {
	// Execute sends req and returns the complete unary response.
	Execute(ctx context.Context, req *MaterializedRequest, creds *Credentials) (*UnifiedResponse, error)
	// ExecuteStream sends req and returns a Stream of UnifiedChunks. The
	// returned stream is lazy and non-restartable; closing it releases the
	// underlying upstream connection.
	ExecuteStream(ctx context.Context, req *MaterializedRequest, creds *Credentials) (streams.Stream[*UnifiedChunk], error)
}

// knownKinds enumerates the closed set of provider kinds this build
// understands (§9: "prefer a closed sum type with a dispatcher function").
var knownKinds = map[ProviderKind]struct{}{
	KindOpenAI:     {},
	KindAzure:      {},
	KindOpenRouter: {},
}

// AdapterSet maps each configured ProviderKind to its Adapter. It is built
// once at startup (see NewAdapterSet in internal/wiring) and handed to the
// Fallback Executor; this keeps the executor polymorphic over ProviderKind
// without a package-level mutable registry.
type AdapterSet map[ProviderKind]Adapter

// Get dispatches to the Adapter for kind, failing closed for any kind
// outside the known set or not wired into this AdapterSet.
func (s AdapterSet) Get(kind ProviderKind) (Adapter, error) {
	if _, known := knownKinds[kind]; !known {
		return nil, Newf(ClassInvalidRequest, "unknown provider kind %q", kind)
	}

	a, ok := s[kind]
	if !ok {
		return nil, Newf(ClassProviderUnavailable, "no adapter configured for provider kind %q", kind)
	}

	return a, nil
}

