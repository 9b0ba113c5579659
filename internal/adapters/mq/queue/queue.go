// Package queue holds pending leaderboard sync requests.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/pkg/metrics"
)

const defaultCapacity = 64

// Request is the payload flowing through the queue.
type Request = model.SyncRequest

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds r without blocking. It fails with ErrFull or ErrClosed.
	Enqueue(ctx context.Context, r Request) error

	// Dequeue returns the channel consumers read from. It is closed by Close.
	Dequeue(ctx context.Context) <-chan Request

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue over a buffered channel.
type InMemoryQueue struct {
	requests chan Request
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan Request, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds r to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Request) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejection("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejection("context_cancelled")
		return fmt.Errorf("enqueue %s: %w", r.ScoreSetSlug, err)
	}

	select {
	case q.requests <- r:
		metrics.UpdateQueueSize(len(q.requests))
		return nil
	default:
		metrics.RecordQueueRejection("full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Request {
	return q.requests
}

// Len returns the number of pending requests.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	n := len(q.requests)
	metrics.UpdateQueueSize(n)
	return n
}

// Close stops accepting requests. Pending ones remain readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
