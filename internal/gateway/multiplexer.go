package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaywright/gatewaycore/internal/pkg/streams"
)

// StreamError wraps a mid-stream failure that is forwarded to the sink as a
// terminal, non-retried error (§4.3 streaming variant: "once chunks have
// started flowing, mid-stream failure is surfaced to the sink ... and is
// not retried").
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return fmt.Sprintf("stream error: %s", e.Err) }
func (e *StreamError) Unwrap() error { return e.Err }

// MultiplexResult is what one Multiplexer.Run call accumulated.
type MultiplexResult struct {
	ForwardedAny bool
	Usage        *Usage
	Content      string
	UpstreamID   string
	Model        string
	Err          error
}

// Multiplexer is C5: forwards one adapter chunk stream to a bounded sink,
// accumulating running usage and assistant content, and emitting the
// terminal [DONE] sentinel on a clean end of stream.
type Multiplexer struct{}

func NewMultiplexer() *Multiplexer { return &Multiplexer{} }

// Run drains src, forwarding every chunk to sink, until src is exhausted or
// either side fails. It always closes src. On a clean end of stream it
// emits the terminal sentinel and closes sink (Finish); on a mid-stream
// failure that already reached the sink, it closes sink with Fail. A
// failure observed before any chunk reached the sink leaves the sink
// untouched — per §4.3 that attempt is invisible to the sink and is the
// executor's to retry.
func (mx *Multiplexer) Run(ctx context.Context, src streams.Stream[*UnifiedChunk], sink *streams.ChanStream[*UnifiedChunk]) MultiplexResult {
	defer src.Close()

	var (
		result  MultiplexResult
		content strings.Builder
		usage   Usage
		haveUsage bool
	)

	for src.Next() {
		chunk := src.Current()

		if result.UpstreamID == "" {
			result.UpstreamID = chunk.ID
		}

		result.Model = chunk.Model

		for _, c := range chunk.Choices {
			content.WriteString(c.Delta.Content)
		}

		if chunk.Usage != nil {
			usage = *chunk.Usage
			haveUsage = true
		}

		if err := sink.Send(ctx, chunk); err != nil {
			result.ForwardedAny = true
			result.Err = err
			result.Content = content.String()

			if haveUsage {
				result.Usage = &usage
			}

			return result
		}

		result.ForwardedAny = true
	}

	result.Content = content.String()
	if haveUsage {
		result.Usage = &usage
	}

	if err := src.Err(); err != nil {
		if result.ForwardedAny {
			sink.Fail(&StreamError{Err: err})
		}

		result.Err = err

		return result
	}

	if err := sink.Send(ctx, DoneSentinel(result.UpstreamID, result.Model, 0)); err != nil {
		result.Err = err

		return result
	}

	result.ForwardedAny = true

	sink.Finish()

	return result
}
