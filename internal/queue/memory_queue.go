package queue

import (
	"context"
	"sync"
	"time"
)

type MemoryQueue struct {
	jobs   chan Job
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		jobs: make(chan Job, size),
		done: make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.push(job)
}

func (q *MemoryQueue) Ack(context.Context, Job) error {
	return nil
}

// Retry schedules the next attempt in process. Pending retries are lost when
// the process exits.
func (q *MemoryQueue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := job.Next()
	if delay <= 0 {
		return q.push(next)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	// delayed jobs wait for buffer space instead of being dropped
	time.AfterFunc(delay, func() {
		select {
		case q.jobs <- next:
		case <-q.done:
		}
	})
	return nil
}

func (q *MemoryQueue) push(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-q.done:
		return Job{}, ErrQueueClosed
	case job := <-q.jobs:
		return job, nil
	}
}

func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
