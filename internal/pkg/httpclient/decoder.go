package httpclient

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/tmaxmax/go-sse"

	"github.com/relaywright/gatewaycore/internal/pkg/streams"
)

// StreamDecoder turns a raw response body into a Stream of StreamEvents.
type StreamDecoder = streams.Stream[*StreamEvent]

// StreamDecoderFactory builds a StreamDecoder from a response body. The
// returned decoder owns rc and must close it.
type StreamDecoderFactory func(ctx context.Context, rc io.ReadCloser) StreamDecoder

type decoderRegistry struct {
	mu       sync.RWMutex
	decoders map[string]StreamDecoderFactory
}

var globalRegistry = &decoderRegistry{
	decoders: make(map[string]StreamDecoderFactory),
}

// RegisterDecoder registers a stream decoder for a specific content type.
func RegisterDecoder(contentType string, factory StreamDecoderFactory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	globalRegistry.decoders[contentType] = factory
}

// GetDecoder returns a decoder factory for the given content type.
func GetDecoder(contentType string) (StreamDecoderFactory, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	factory, exists := globalRegistry.decoders[contentType]

	return factory, exists
}

// NewDefaultSSEDecoder decodes a body as Server-Sent Events using
// tmaxmax/go-sse's client Connection, bridged onto a streams.ChanStream so
// it satisfies the pull-based StreamDecoder contract.
func NewDefaultSSEDecoder(ctx context.Context, rc io.ReadCloser) StreamDecoder {
	d := &sseDecoder{
		rc: rc,
		ch: streams.NewChanStream[*StreamEvent](16),
	}

	conn := sse.NewConnection(&http.Response{Body: rc})

	conn.SubscribeMessages(func(ev sse.Event) {
		_ = d.ch.Send(ctx, &StreamEvent{
			LastEventID: ev.LastEventID,
			Type:        ev.Type,
			Data:        []byte(ev.Data),
		})
	})

	go func() {
		defer rc.Close()

		err := conn.Connect()
		if err != nil && err != io.EOF {
			d.ch.Fail(err)

			return
		}

		d.ch.Finish()
	}()

	return d
}

// sseDecoder adapts a ChanStream to the exported StreamDecoder alias while
// keeping a handle on the body for an explicit Close from the consumer side.
type sseDecoder struct {
	rc io.ReadCloser
	ch *streams.ChanStream[*StreamEvent]
}

func (d *sseDecoder) Next() bool           { return d.ch.Next() }
func (d *sseDecoder) Current() *StreamEvent { return d.ch.Current() }
func (d *sseDecoder) Err() error           { return d.ch.Err() }
func (d *sseDecoder) Close() error {
	_ = d.ch.Close()
	return d.rc.Close()
}

func init() {
	RegisterDecoder("text/event-stream", NewDefaultSSEDecoder)
	RegisterDecoder("text/event-stream; charset=utf-8", NewDefaultSSEDecoder)
}
