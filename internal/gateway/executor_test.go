package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywright/gatewaycore/internal/pkg/streams"
)

// fakeAdapter returns a scripted sequence of responses/errors, one per call,
// repeating the last entry once exhausted.
type fakeAdapter struct {
	mu      sync.Mutex
	results []adapterResult
	calls   int
}

type adapterResult struct {
	resp *UnifiedResponse
	err  error
}

func (a *fakeAdapter) Execute(ctx context.Context, req *MaterializedRequest, creds *Credentials) (*UnifiedResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.calls
	if idx >= len(a.results) {
		idx = len(a.results) - 1
	}

	a.calls++

	return a.results[idx].resp, a.results[idx].err
}

func (a *fakeAdapter) ExecuteStream(ctx context.Context, req *MaterializedRequest, creds *Credentials) (streams.Stream[*UnifiedChunk], error) {
	return nil, errors.New("not used in unary tests")
}

// fakeTraceStore records every SaveTraceRecord call for assertion.
type fakeTraceStore struct {
	mu      sync.Mutex
	records []*TraceRecord
	failAt  int // -1 means never fail
}

func newFakeTraceStore() *fakeTraceStore { return &fakeTraceStore{failAt: -1} }

func (s *fakeTraceStore) SaveTraceRecord(ctx context.Context, rec *TraceRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAt == len(s.records) {
		return "", errors.New("db down")
	}

	s.records = append(s.records, rec)

	return "log-" + rec.ModelID, nil
}

func testCreds() *Credentials {
	return NewCredentials(map[ProviderKind]string{
		KindOpenAI:     "k-openai",
		KindAzure:      "k-azure",
		KindOpenRouter: "k-openrouter",
	}, nil)
}

func policyCatching(classes ...Class) *FallbackPolicy {
	catch := map[Class]struct{}{}
	for _, c := range classes {
		catch[c] = struct{}{}
	}

	return &FallbackPolicy{
		Enabled: true,
		Targets: []FallbackTarget{
			{ProviderKind: KindOpenRouter, Model: "alt-model", Catch: catch},
		},
	}
}

func TestExecutor_UnaryHappyPath(t *testing.T) {
	adapter := &fakeAdapter{results: []adapterResult{{resp: &UnifiedResponse{ID: "r1", Model: "gpt-4o", Choices: []Choice{{FinishReason: "stop"}}}}}}
	tracer := newFakeTraceStore()
	exec := NewExecutor(AdapterSet{KindOpenAI: adapter}, testCreds(), NewTraceLogger(tracer))

	m := &MaterializedRequest{ProviderKind: KindOpenAI, Model: "gpt-4o"}

	resp, logID, attempts, err := exec.Execute(context.Background(), m, nil)
	require.NoError(t, err)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.NotEmpty(t, logID)
	assert.Len(t, attempts, 1)
	assert.Len(t, tracer.records, 1)
	assert.Equal(t, 200, tracer.records[0].Status)
}

// TestExecutor_FallbackOnRateLimit: P5 — primary fails RateLimit, one
// target catching it succeeds; two TraceRecords, log id is the second.
func TestExecutor_FallbackOnRateLimit(t *testing.T) {
	primary := &fakeAdapter{results: []adapterResult{{err: New(ClassRateLimit, errors.New("429"))}}}
	alt := &fakeAdapter{results: []adapterResult{{resp: &UnifiedResponse{ID: "r2", Model: "alt-model", Choices: []Choice{{FinishReason: "stop"}}}}}}

	tracer := newFakeTraceStore()
	exec := NewExecutor(AdapterSet{KindOpenAI: primary, KindOpenRouter: alt}, testCreds(), NewTraceLogger(tracer))

	m := &MaterializedRequest{ProviderKind: KindOpenAI, Model: "gpt-4o"}
	policy := policyCatching(ClassRateLimit)

	resp, logID, attempts, err := exec.Execute(context.Background(), m, policy)
	require.NoError(t, err)
	assert.Equal(t, "alt-model", resp.Model)
	assert.Len(t, attempts, 2)
	assert.Len(t, tracer.records, 2)
	assert.Equal(t, "log-alt-model", logID)
}

// TestExecutor_FallbackNotCatching: target's catch set doesn't include the
// primary's error class, so the primary error surfaces unchanged with no
// fallback attempted (§4.3 step 3).
func TestExecutor_FallbackNotCatching(t *testing.T) {
	primary := &fakeAdapter{results: []adapterResult{{err: New(ClassProviderUnavailable, errors.New("down"))}}}
	alt := &fakeAdapter{results: []adapterResult{{resp: &UnifiedResponse{Model: "alt-model"}}}}

	tracer := newFakeTraceStore()
	exec := NewExecutor(AdapterSet{KindOpenAI: primary, KindOpenRouter: alt}, testCreds(), NewTraceLogger(tracer))

	m := &MaterializedRequest{ProviderKind: KindOpenAI, Model: "gpt-4o"}
	policy := policyCatching(ClassRateLimit) // doesn't catch ProviderUnavailable

	_, _, attempts, err := exec.Execute(context.Background(), m, policy)
	require.Error(t, err)
	assert.Equal(t, ClassProviderUnavailable, ClassOf(err))
	assert.Len(t, attempts, 1)
	assert.Equal(t, 0, alt.calls)
}

// TestExecutor_AllProvidersFail: three TraceRecords, FallbackExhausted error
// carrying all three (provider, model) keys in order (scenario 3).
func TestExecutor_AllProvidersFail(t *testing.T) {
	primary := &fakeAdapter{results: []adapterResult{{err: New(ClassProviderUnavailable, errors.New("down"))}}}
	alt := &fakeAdapter{results: []adapterResult{{err: New(ClassProviderUnavailable, errors.New("also down"))}}}

	tracer := newFakeTraceStore()
	exec := NewExecutor(AdapterSet{KindOpenAI: primary, KindOpenRouter: alt}, testCreds(), NewTraceLogger(tracer))

	m := &MaterializedRequest{ProviderKind: KindOpenAI, Model: "gpt-4o"}
	policy := &FallbackPolicy{
		Enabled: true,
		Targets: []FallbackTarget{
			{ProviderKind: KindOpenRouter, Model: "alt-1", Catch: map[Class]struct{}{ClassProviderUnavailable: {}}},
			{ProviderKind: KindOpenRouter, Model: "alt-2", Catch: map[Class]struct{}{ClassAll: {}}},
		},
	}

	_, _, attempts, err := exec.Execute(context.Background(), m, policy)
	require.Error(t, err)
	assert.Equal(t, ClassFallbackExhausted, ClassOf(err))
	assert.Len(t, attempts, 3)
	assert.Len(t, tracer.records, 3)

	var fe *FallbackExhaustedError
	require.True(t, errors.As(err, &fe))
	require.Len(t, fe.AttemptedProviders, 3)
	assert.Equal(t, "gpt-4o", fe.AttemptedProviders[0].Model)
	assert.Equal(t, "alt-1", fe.AttemptedProviders[1].Model)
	assert.Equal(t, "alt-2", fe.AttemptedProviders[2].Model)
}

// TestExecutor_NoRecursiveFallback (P6): the MaterializedRequest built for a
// fallback target always has a nil FallbackPolicy.
func TestExecutor_NoRecursiveFallback(t *testing.T) {
	m := &MaterializedRequest{
		ProviderKind:   KindOpenAI,
		Model:          "gpt-4o",
		FallbackPolicy: policyCatching(ClassRateLimit),
	}

	target := FallbackTarget{ProviderKind: KindOpenRouter, Model: "alt-model"}
	m2 := targetFromFallback(m, target)

	assert.Nil(t, m2.FallbackPolicy)
	assert.Equal(t, KindOpenRouter, m2.ProviderKind)
	assert.Equal(t, "alt-model", m2.Model)
	assert.NotNil(t, m.FallbackPolicy, "original request must be untouched")
}

// TestExecutor_DbLoggingErrorIsFatal: a logging failure is surfaced as-is
// and never masked by a retry or fallback attempt.
func TestExecutor_DbLoggingErrorIsFatal(t *testing.T) {
	adapter := &fakeAdapter{results: []adapterResult{{resp: &UnifiedResponse{Model: "gpt-4o"}}}}
	tracer := &fakeTraceStore{failAt: 0}
	exec := NewExecutor(AdapterSet{KindOpenAI: adapter}, testCreds(), NewTraceLogger(tracer))

	m := &MaterializedRequest{ProviderKind: KindOpenAI, Model: "gpt-4o"}

	_, logID, _, err := exec.Execute(context.Background(), m, policyCatching(ClassAll))
	require.Error(t, err)
	assert.Equal(t, ClassDbLoggingError, ClassOf(err))
	assert.Empty(t, logID)
}

// TestExecutor_RetriesRetryableClassWithinTarget: a RateLimit failure is
// retried up to RetriesPerTarget times before being treated as terminal.
func TestExecutor_RetriesRetryableClassWithinTarget(t *testing.T) {
	adapter := &fakeAdapter{results: []adapterResult{
		{err: New(ClassRateLimit, errors.New("429"))},
		{err: New(ClassRateLimit, errors.New("429"))},
		{resp: &UnifiedResponse{Model: "gpt-4o"}},
	}}
	tracer := newFakeTraceStore()
	exec := NewExecutor(AdapterSet{KindOpenAI: adapter}, testCreds(), NewTraceLogger(tracer))

	m := &MaterializedRequest{ProviderKind: KindOpenAI, Model: "gpt-4o"}
	policy := &FallbackPolicy{Enabled: false, RetriesPerTarget: 2}

	resp, _, attempts, err := exec.Execute(context.Background(), m, policy)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, 3, adapter.calls)
	// Retries within one target are invisible as separate "attempts" —
	// only one TraceRecord/Attempt is produced for the whole target.
	assert.Len(t, attempts, 1)
}

// TestExecutor_NonFallbackEligibleClassSurfacesImmediately (§7 propagation
// policy): InvalidRequest/Template/SerializationError are never fallback
// material, even against a catch-all {All} target — the primary error must
// surface unchanged instead of being masked by a wasted fallback attempt.
func TestExecutor_NonFallbackEligibleClassSurfacesImmediately(t *testing.T) {
	primary := &fakeAdapter{results: []adapterResult{{err: New(ClassInvalidRequest, errors.New("bad request"))}}}
	alt := &fakeAdapter{results: []adapterResult{{resp: &UnifiedResponse{Model: "alt-model"}}}}

	tracer := newFakeTraceStore()
	exec := NewExecutor(AdapterSet{KindOpenAI: primary, KindOpenRouter: alt}, testCreds(), NewTraceLogger(tracer))

	m := &MaterializedRequest{ProviderKind: KindOpenAI, Model: "gpt-4o"}
	policy := policyCatching(ClassAll)

	_, _, attempts, err := exec.Execute(context.Background(), m, policy)
	require.Error(t, err)
	assert.Equal(t, ClassInvalidRequest, ClassOf(err))
	assert.NotEqual(t, ClassFallbackExhausted, ClassOf(err))
	assert.Len(t, attempts, 1)
	assert.Equal(t, 0, alt.calls)
}

// TestExecutor_NonFallbackEligibleClassStopsMidLoop: if a fallback target's
// own failure lands in a non-fallback-eligible class, the loop stops there
// and surfaces that error directly instead of trying further targets or
// wrapping it as FallbackExhausted.
func TestExecutor_NonFallbackEligibleClassStopsMidLoop(t *testing.T) {
	primary := &fakeAdapter{results: []adapterResult{{err: New(ClassRateLimit, errors.New("429"))}}}
	alt1 := &fakeAdapter{results: []adapterResult{{err: New(ClassSerializationError, errors.New("bad decode"))}}}
	alt2 := &fakeAdapter{results: []adapterResult{{resp: &UnifiedResponse{Model: "alt-2"}}}}

	tracer := newFakeTraceStore()
	exec := NewExecutor(AdapterSet{KindOpenAI: primary, KindAzure: alt1, KindOpenRouter: alt2}, testCreds(), NewTraceLogger(tracer))

	m := &MaterializedRequest{ProviderKind: KindOpenAI, Model: "gpt-4o"}
	policy := &FallbackPolicy{
		Enabled: true,
		Targets: []FallbackTarget{
			{ProviderKind: KindAzure, Model: "alt-1", Catch: map[Class]struct{}{ClassAll: {}}},
			{ProviderKind: KindOpenRouter, Model: "alt-2", Catch: map[Class]struct{}{ClassAll: {}}},
		},
	}

	_, _, attempts, err := exec.Execute(context.Background(), m, policy)
	require.Error(t, err)
	assert.Equal(t, ClassSerializationError, ClassOf(err))
	assert.Len(t, attempts, 2, "only the primary and the first fallback target should be attempted")
	assert.Equal(t, 0, alt2.calls)
}

// TestExecutor_NonRetryableClassNotRetried: InvalidRequest is never retried
// even with a nonzero retry budget.
func TestExecutor_NonRetryableClassNotRetried(t *testing.T) {
	adapter := &fakeAdapter{results: []adapterResult{{err: New(ClassInvalidRequest, errors.New("bad"))}}}
	tracer := newFakeTraceStore()
	exec := NewExecutor(AdapterSet{KindOpenAI: adapter}, testCreds(), NewTraceLogger(tracer))

	m := &MaterializedRequest{ProviderKind: KindOpenAI, Model: "gpt-4o"}
	policy := &FallbackPolicy{Enabled: false, RetriesPerTarget: 5}

	_, _, _, err := exec.Execute(context.Background(), m, policy)
	require.Error(t, err)
	assert.Equal(t, 1, adapter.calls)
}
