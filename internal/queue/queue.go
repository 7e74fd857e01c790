// Package queue provides the in-process FIFO drained by the single worker.
// The queue is unbounded: enqueue never blocks the request surface. It does
// not survive a restart; interrupted work is handled by startup recovery.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue closed")

// Item is one unit of work handed to the worker.
type Item struct {
	JobID         string
	VideoURL      string
	Language      string
	NumHighlights int
}

// Queue is an unbounded FIFO with one designated consumer.
type Queue struct {
	mu     sync.Mutex
	items  []Item
	wake   chan struct{}
	closed bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue appends an item. It never blocks; it only fails once the queue has
// been closed for shutdown.
func (q *Queue) Enqueue(it Item) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes and returns the oldest item, blocking until one is
// available. It returns ok=false when the queue is closed and drained, or
// when ctx is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (Item, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return it, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Item{}, false
		}

		select {
		case <-ctx.Done():
			return Item{}, false
		case <-q.wake:
		}
	}
}

// Close stops intake. Items already queued can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
