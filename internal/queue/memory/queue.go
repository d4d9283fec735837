// Package memory provides the bounded in-memory title queue used by the worker pool.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan crawler.Title
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan crawler.Title, capacity),
	}
}

// Fill enqueues every title and closes the queue so workers stop once it drains.
func Fill(ctx context.Context, titles []crawler.Title) (*Queue, error) {
	q := NewQueue(len(titles))
	for _, t := range titles {
		if err := q.Enqueue(ctx, t); err != nil {
			q.Close()
			return q, err
		}
	}
	q.Close()
	return q, nil
}

// Enqueue pushes a title into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, title crawler.Title) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- title:
		return nil
	}
}

// Dequeue pops the next title, respecting context cancellation.
// Cancellation wins over buffered items so a canceled dispatch drops queued work.
func (q *Queue) Dequeue(ctx context.Context) (crawler.Title, error) {
	if err := ctx.Err(); err != nil {
		return crawler.Title{}, fmt.Errorf("dequeue canceled: %w", err)
	}
	select {
	case <-ctx.Done():
		return crawler.Title{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case title, ok := <-q.ch:
		if !ok {
			return crawler.Title{}, ErrClosed
		}
		return title, nil
	}
}

// Len returns the number of queued titles.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel; queued titles can still be drained.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
