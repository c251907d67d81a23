package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"cinegen/internal/domain"
)

// Memory is a process-local FIFO queue. It is intended for development, tests
// and single-process deployments; durability across restarts requires the
// NATS-backed queue instead.
type Memory struct {
	mu     sync.Mutex
	items  []*domain.Job
	notify chan struct{}
	closed bool
}

// NewMemory constructs an empty in-process queue.
func NewMemory() *Memory {
	return &Memory{notify: make(chan struct{}, 1)}
}

// Enqueue appends the job to the tail of the queue.
func (q *Memory) Enqueue(ctx context.Context, job *domain.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if job == nil || job.ID == "" {
		return "", domain.ErrInvalidRequest
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", domain.ErrQueueUnavailable
	}
	q.items = append(q.items, job)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return job.ID, nil
}

// Dequeue pops the head of the queue, waiting up to wait for a job to arrive.
// A nil job with a nil error means the wait elapsed with nothing available.
func (q *Memory) Dequeue(ctx context.Context, wait time.Duration) (*domain.Job, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, domain.ErrQueueUnavailable
		}
		if len(q.items) > 0 {
			job := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

// Close marks the queue as shut down. Pending items are discarded.
func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("queue: already closed")
	}
	q.closed = true
	q.items = nil
	return nil
}

var _ Queue = (*Memory)(nil)
