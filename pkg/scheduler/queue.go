package scheduler

import (
	"context"
	"sync"
)

// Queue is the FIFO work channel feeding the worker pool. Enqueue is safe
// from any goroutine; Dequeue blocks until an item is available and hands
// each item to exactly one caller.
type Queue struct {
	mu    sync.Mutex
	items []string
	wake  chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue appends an order id and wakes one waiting worker.
func (q *Queue) Enqueue(id string) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest item, blocking until one exists
// or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				// More work waiting: pass the wakeup along.
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.wake:
		}
	}
}

// Len returns the number of items waiting to be dequeued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
