// Package queue provides an unbounded FIFO that is safe to push to from
// streaming goroutines and drain from a single consumer.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when a closed and drained queue is popped.
var ErrClosed = errors.New("queue closed")

// ErrTimeout is returned when TimedPop deadline is reached.
var ErrTimeout = errors.New("queue pop timeout")

// Queue is an unbounded FIFO. Push never blocks.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	// ready has a value when items are available or the queue is closed.
	ready chan struct{}
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Push appends the value. Values pushed after Close are dropped and false is
// returned.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, v)
	q.notify()
	return true
}

// Ready returns a channel that receives a value when the queue might have
// items or has been closed.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// TryPop returns the head of the queue without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.notify()
	}
	return v, true
}

// Pop blocks until a value is available, the queue is closed and drained or
// the context is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}
		if q.Closed() {
			return zero, ErrClosed
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TimedPop pops with a timeout. Negative timeout blocks until a value is
// available or the queue is closed.
func (q *Queue[T]) TimedPop(timeout time.Duration) (T, error) {
	if timeout < 0 {
		return q.Pop(context.Background())
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	v, err := q.Pop(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return v, ErrTimeout
	}
	return v, err
}

// Len returns number of queued values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting new values. Queued values can still be popped.
// Consequent calls do nothing.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notify()
}

// Closed reports if queue was closed.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// notify must be called with mutex held.
func (q *Queue[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
