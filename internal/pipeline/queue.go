package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrQueueClosed is returned by Pop once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO handing items from any number of producers to a
// consumer. Push never blocks.
type Queue[T any] struct {
	depth prometheus.Gauge

	m      sync.Mutex
	buffer []T
	closed bool
	// ready holds one token while the buffer is non-empty or the queue is closed.
	ready chan struct{}
}

// NewQueue creates an empty queue. depth may be nil.
func NewQueue[T any](depth prometheus.Gauge) *Queue[T] {
	return &Queue[T]{
		depth: depth,
		ready: make(chan struct{}, 1),
	}
}

// Length returns the number of queued items.
func (q *Queue[T]) Length() int {
	q.m.Lock()
	defer q.m.Unlock()
	return len(q.buffer)
}

// Push appends data. It returns false when the queue is closed.
func (q *Queue[T]) Push(data T) bool {
	q.m.Lock()
	defer q.m.Unlock()
	if q.closed {
		return false
	}
	q.buffer = append(q.buffer, data)
	if q.depth != nil {
		q.depth.Inc()
	}
	q.signal()
	return true
}

// TryPop removes the oldest item without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.m.Lock()
	defer q.m.Unlock()

	var response T
	if len(q.buffer) == 0 {
		return response, false
	}
	response = q.buffer[0]
	var zero T
	q.buffer[0] = zero
	q.buffer = q.buffer[1:]
	if len(q.buffer) == 0 {
		// Let the backing array go instead of creeping along it forever.
		q.buffer = nil
	}
	if q.depth != nil {
		q.depth.Dec()
	}
	if len(q.buffer) > 0 || q.closed {
		q.signal()
	}
	return response, true
}

// Pop removes the oldest item, waiting while the queue is empty. It returns
// ctx.Err() on cancellation and ErrQueueClosed once closed and drained.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}
		q.m.Lock()
		closed := q.closed
		q.m.Unlock()
		if closed {
			var zero T
			return zero, ErrQueueClosed
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Close stops accepting items. Items already queued can still be popped.
func (q *Queue[T]) Close() {
	q.m.Lock()
	defer q.m.Unlock()
	q.closed = true
	q.signal()
}

// signal must be called with q.m held.
func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
