package domain

import "context"

// JobStore defines persistence for job records. The store, not its callers,
// is the authority on lifecycle transitions: every mutation is an atomic
// compare-and-transition, terminal writes are mutually exclusive, and a
// cancelled job can never be flipped to completed or failed afterwards.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)

	// Claim moves a queued job to processing and records the owning worker.
	// Claiming a terminal job (typically one cancelled while still queued)
	// returns ErrAlreadyTerminal; claiming a job another worker already
	// holds returns ErrJobClaimed. The worker skips the job either way.
	Claim(ctx context.Context, jobID, workerID string) (*Job, error)

	// SetProgress updates progress and the step label of a processing job.
	// Progress is monotonic: a value below the current one is ignored.
	SetProgress(ctx context.Context, jobID string, progress int, step string) error

	// Complete and Fail apply the worker's terminal write. Both return
	// ErrAlreadyTerminal when the job already reached a terminal state,
	// which the worker treats as a no-op.
	Complete(ctx context.Context, jobID, resultRef string) error
	Fail(ctx context.Context, jobID, message string) error

	// Cancel transitions a queued or processing job to cancelled.
	Cancel(ctx context.Context, jobID string) error
}

// BlobStore persists binary assets and returns an opaque stored reference.
type BlobStore interface {
	Put(ctx context.Context, data []byte, suggestedName string) (string, error)
}

// PersonaResolver detects persona names mentioned in prompt text and returns
// reference assets for each, in prompt order. An empty slice means no persona
// was recognized.
type PersonaResolver interface {
	ResolveReferences(ctx context.Context, prompt string) ([]ReferenceAsset, error)
}
