package streams

import "context"

// ChanStream is a bounded, single-consumer Stream[T] backed by a buffered
// channel. A producer calls Send for each item and Finish (or Fail) exactly
// once when done; a single consumer drives it with Next/Current/Err/Close,
// matching the base spec's "sink is a bounded, single-consumer queue" model
// for the streaming multiplexer (C5).
type ChanStream[T any] struct {
	items chan T
	done  chan struct{}

	errCh chan error
	err   error

	current T
	closed  bool
}

// NewChanStream creates a ChanStream with the given buffer capacity.
func NewChanStream[T any](capacity int) *ChanStream[T] {
	return &ChanStream[T]{
		items: make(chan T, capacity),
		done:  make(chan struct{}),
		errCh: make(chan error, 1),
	}
}

// Send enqueues an item for the consumer. It blocks if the buffer is full
// (back-pressure) and returns ctx.Err() if ctx is cancelled first, or
// ErrSinkClosed if the consumer has already closed the stream.
func (c *ChanStream[T]) Send(ctx context.Context, item T) error {
	select {
	case c.items <- item:
		return nil
	case <-c.done:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish signals clean end-of-stream; no more Send calls are permitted.
func (c *ChanStream[T]) Finish() {
	close(c.items)
}

// Fail signals the stream terminated with err; no more Send calls are permitted.
func (c *ChanStream[T]) Fail(err error) {
	c.errCh <- err
	close(c.items)
}

// Next implements Stream[T] for the consumer side.
func (c *ChanStream[T]) Next() bool {
	if c.closed || c.err != nil {
		return false
	}

	item, ok := <-c.items
	if !ok {
		select {
		case err := <-c.errCh:
			c.err = err
		default:
		}

		return false
	}

	c.current = item

	return true
}

func (c *ChanStream[T]) Current() T { return c.current }

func (c *ChanStream[T]) Err() error { return c.err }

// Close signals the producer (via the done channel) that the consumer is
// gone, so a blocked Send unblocks with ErrSinkClosed. Safe to call more
// than once.
func (c *ChanStream[T]) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	return nil
}

// sinkClosedError is a sentinel distinct type so callers can errors.Is match it.
type sinkClosedError struct{}

func (sinkClosedError) Error() string { return "streams: sink closed" }

// ErrSinkClosed is returned by Send once the consumer has called Close.
var ErrSinkClosed error = sinkClosedError{}
