// Package queue provides the unbounded FIFO that hands accepted requests from
// the acceptor to the worker pool.
package queue

import (
	"context"
	"slices"
	"sync"
)

// Queue is an unbounded, concurrency-safe FIFO. Every pushed item is
// delivered to exactly one consumer, either through Pop or Wait.
//
// Items and waiters are never both non-empty: Push hands an item directly
// to the longest waiting consumer when there is one.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	waiters []chan T
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends v, or wakes exactly one blocked Wait with it. It never blocks
// on consumers.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiters) > 0 {
		ch := q.waiters[0]
		q.waiters[0] = nil
		q.waiters = q.waiters[1:]
		ch <- v // buffered, never blocks
		return
	}
	q.items = append(q.items, v)
}

// Pop removes and returns the oldest item. It reports false immediately if
// the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Wait removes and returns the oldest item, blocking until one is pushed or
// ctx is done. An item handed over concurrently with cancellation is still
// returned, so nothing pushed is ever dropped.
func (q *Queue[T]) Wait(ctx context.Context) (T, error) {
	q.mu.Lock()
	if v, ok := q.popLocked(); ok {
		q.mu.Unlock()
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		q.mu.Unlock()
		var zero T
		return zero, err
	}
	ch := make(chan T, 1)
	q.waiters = append(q.waiters, ch)
	q.mu.Unlock()

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	i := slices.Index(q.waiters, ch)
	if i >= 0 {
		q.waiters = slices.Delete(q.waiters, i, i+1)
	}
	q.mu.Unlock()

	if i < 0 {
		// Push already picked this waiter.
		return <-ch, nil
	}
	var zero T
	return zero, ctx.Err()
}

// Len returns the number of queued items not yet taken by a consumer.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}
