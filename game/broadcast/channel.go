package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Send and Recv once the channel has been closed.
var ErrClosed = errors.New("broadcast channel closed")

// LaggedError reports that a receiver fell behind and Skipped values were
// overwritten before it could read them.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("receiver lagged, %d values skipped", e.Skipped)
}

// Channel is a bounded ring buffer broadcast channel.
type Channel[T any] struct {
	mu        sync.Mutex
	buf       []T
	tail   uint64 // sequence number of the next value to be sent
	closed bool
	notify chan struct{}
}

// New creates a channel retaining up to capacity values.
// A capacity below 1 is treated as 1.
func New[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel[T]{
		buf:    make([]T, capacity),
		notify: make(chan struct{}),
	}
}

// Send publishes v to every receiver. It never blocks on slow receivers.
func (c *Channel[T]) Send(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.buf[c.tail%uint64(len(c.buf))] = v
	c.tail++

	close(c.notify)
	c.notify = make(chan struct{})
	return nil
}

// Subscribe returns a receiver positioned after the last sent value.
// Subscribing to a closed channel yields a receiver whose Recv returns ErrClosed.
func (c *Channel[T]) Subscribe() *Receiver[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Receiver[T]{ch: c, next: c.tail}
}

// Close closes the channel and wakes every waiting receiver. Values already
// sent stay readable. Closing twice is a no-op.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.notify)
}

// Receiver reads values from a Channel. A Receiver is not safe for
// concurrent use by multiple goroutines.
type Receiver[T any] struct {
	ch     *Channel[T]
	next   uint64
	closed bool
}

// Recv returns the next value. Buffered values are returned even when ctx is
// already done, so a caller can drain what has been published before it stops.
//
// Recv returns a *LaggedError when values were overwritten before they were
// read; the receiver then resumes at the oldest retained value. It returns
// ErrClosed once the receiver is closed, or once the channel is closed and
// every value sent before that has been read. It returns ctx.Err() when ctx is
// done and nothing is buffered.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	c := r.ch

	for {
		c.mu.Lock()
		if r.closed {
			c.mu.Unlock()
			return zero, ErrClosed
		}

		capacity := uint64(len(c.buf))
		if c.tail > capacity && r.next < c.tail-capacity {
			oldest := c.tail - capacity
			skipped := oldest - r.next
			r.next = oldest
			c.mu.Unlock()
			return zero, &LaggedError{Skipped: skipped}
		}

		if r.next < c.tail {
			v := c.buf[r.next%capacity]
			r.next++
			c.mu.Unlock()
			return v, nil
		}

		if c.closed {
			c.mu.Unlock()
			return zero, ErrClosed
		}

		if err := ctx.Err(); err != nil {
			c.mu.Unlock()
			return zero, err
		}

		wait := c.notify
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
		}
	}
}

// Len returns how many values are waiting for this receiver, capped at the
// channel capacity.
func (r *Receiver[T]) Len() int {
	c := r.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.closed {
		return 0
	}
	n := c.tail - r.next
	if n > uint64(len(c.buf)) {
		n = uint64(len(c.buf))
	}
	return int(n)
}

// Close detaches the receiver from its channel.
func (r *Receiver[T]) Close() {
	c := r.ch
	c.mu.Lock()
	defer c.mu.Unlock()
	r.closed = true
}
