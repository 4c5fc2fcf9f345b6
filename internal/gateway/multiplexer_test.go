package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywright/gatewaycore/internal/pkg/streams"
)

// sliceChunkStream is a fixed in-memory streams.Stream[*UnifiedChunk] for
// exercising the multiplexer without a real adapter/transport.
type sliceChunkStream struct {
	items   []*UnifiedChunk
	i       int
	failErr error
	closed  bool
}

func (s *sliceChunkStream) Next() bool {
	if s.i >= len(s.items) {
		return false
	}

	s.i++

	return true
}

func (s *sliceChunkStream) Current() *UnifiedChunk { return s.items[s.i-1] }

func (s *sliceChunkStream) Err() error {
	if s.i >= len(s.items) {
		return s.failErr
	}

	return nil
}

func (s *sliceChunkStream) Close() error { s.closed = true; return nil }

func chunk(content string, usage *Usage) *UnifiedChunk {
	return &UnifiedChunk{
		ID:      "up-1",
		Model:   "gpt-4o",
		Choices: []ChunkChoice{{Delta: Message{Role: RoleAssistant, Content: content}}},
		Usage:   usage,
	}
}

// TestMultiplexer_ForwardsAndAccumulates (P7, §4.5): every chunk reaches the
// sink, content is concatenated in order, last-seen usage wins, and the
// sentinel chunk is the last item delivered.
func TestMultiplexer_ForwardsAndAccumulates(t *testing.T) {
	src := &sliceChunkStream{items: []*UnifiedChunk{
		chunk("Hel", nil),
		chunk("lo", &Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}),
		chunk("!", &Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}),
	}}
	sink := streams.NewChanStream[*UnifiedChunk](8)
	mx := NewMultiplexer()

	var result MultiplexResult

	done := make(chan struct{})
	go func() {
		result = mx.Run(context.Background(), src, sink)
		close(done)
	}()

	got, err := streams.All[*UnifiedChunk](sink)
	<-done

	require.NoError(t, err)
	require.Len(t, got, 4) // 3 forwarded + sentinel
	assert.False(t, IsDoneSentinel(got[0]))
	assert.True(t, IsDoneSentinel(got[3]), "sentinel must be last")

	assert.Equal(t, "Hello!", result.Content)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 3, result.Usage.TotalTokens, "last-seen usage wins")
	assert.Equal(t, "up-1", result.UpstreamID, "first-seen upstream id wins")
	assert.True(t, src.closed, "multiplexer must always close src")
}

// TestMultiplexer_MidStreamFailureBeforeAnyChunk: a src error before any
// chunk reaches the sink leaves the sink untouched (not Fail'd), per §4.3's
// "invisible to the sink" rule — the executor owns retrying this case.
func TestMultiplexer_MidStreamFailureBeforeAnyChunk(t *testing.T) {
	boom := errors.New("connection reset")
	src := &sliceChunkStream{items: nil, failErr: boom}
	sink := streams.NewChanStream[*UnifiedChunk](8)
	mx := NewMultiplexer()

	result := mx.Run(context.Background(), src, sink)

	assert.False(t, result.ForwardedAny)
	assert.ErrorIs(t, result.Err, boom)
}

// TestMultiplexer_MidStreamFailureAfterChunks: once chunks have flowed, a
// later src error is surfaced to the sink as a terminal StreamError instead
// of silently dropped.
func TestMultiplexer_MidStreamFailureAfterChunks(t *testing.T) {
	boom := errors.New("stream reset")
	src := &sliceChunkStream{items: []*UnifiedChunk{chunk("a", nil), chunk("b", nil)}, failErr: boom}
	sink := streams.NewChanStream[*UnifiedChunk](8)
	mx := NewMultiplexer()

	done := make(chan struct{})

	var result MultiplexResult

	go func() {
		result = mx.Run(context.Background(), src, sink)
		close(done)
	}()

	got, err := streams.All[*UnifiedChunk](sink)
	<-done

	assert.Len(t, got, 2)
	require.Error(t, err)

	var se *StreamError
	assert.ErrorAs(t, err, &se)
	assert.True(t, result.ForwardedAny)
	assert.ErrorIs(t, result.Err, boom)
}
