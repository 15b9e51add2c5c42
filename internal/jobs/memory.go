package jobs

import (
	"context"
	"fmt"
	"sync"
)

// MemoryQueue is an in-process Queue for tests and single-process
// deployments. Jobs are dispatched synchronously to the registered
// handler or buffered until one is registered.
type MemoryQueue struct {
	mu      sync.Mutex
	handler func(Job)
	pending []Job
	closed  bool
}

// NewMemoryQueue creates an in-process queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue delivers the job to the handler, or buffers it if none is set
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue is closed")
	}
	handler := q.handler
	if handler == nil {
		q.pending = append(q.pending, job)
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	handler(job)
	return nil
}

// Subscribe registers the handler and flushes any buffered jobs
func (q *MemoryQueue) Subscribe(handler func(Job)) error {
	q.mu.Lock()
	q.handler = handler
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, job := range pending {
		handler(job)
	}
	return nil
}

// Pending returns the number of buffered jobs
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close marks the queue closed
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
