package queue

import (
	"context"
	"time"

	"cinegen/internal/domain"
)

// Queue is a FIFO of pending job descriptors. Implementations are selected
// explicitly at construction time and never switched mid-run: a durable
// backend that is unreachable fails the call instead of degrading to an
// in-process list.
type Queue interface {
	// Enqueue appends the job and returns its id. The call either fully
	// succeeds or fails; a job is never silently dropped.
	Enqueue(ctx context.Context, job *domain.Job) (string, error)

	// Dequeue removes and returns the next job, or nil after wait elapses
	// with nothing available. A job is delivered to exactly one caller.
	Dequeue(ctx context.Context, wait time.Duration) (*domain.Job, error)

	Close() error
}
