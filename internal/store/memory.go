package store

import (
	"context"
	"sync"
	"time"

	"cinegen/internal/domain"
)

// MemoryJobStore keeps job records in process memory. All transitions go
// through one mutex, which makes each state change atomic: terminal writes
// are mutually exclusive and cancellation is absorbing.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewMemoryJobStore constructs an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*domain.Job)}
}

// Create inserts a new job record in queued status.
func (s *MemoryJobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job == nil || job.ID == "" {
		return domain.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return domain.ErrInvalidRequest
	}
	now := time.Now().UTC()
	stored := cloneJob(job)
	stored.Status = domain.JobStatusQueued
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.jobs[job.ID] = stored
	return nil
}

// GetByID returns a copy of the job, so callers cannot mutate stored state.
func (s *MemoryJobStore) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Claim transitions queued -> processing and records the owning worker.
func (s *MemoryJobStore) Claim(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return cloneJob(job), domain.ErrAlreadyTerminal
	}
	if job.Status != domain.JobStatusQueued {
		return nil, domain.ErrJobClaimed
	}
	job.Status = domain.JobStatusProcessing
	job.OwnerWorkerID = workerID
	job.UpdatedAt = time.Now().UTC()
	return cloneJob(job), nil
}

// SetProgress advances progress on a processing job. Lower values are
// ignored so observed progress never decreases within an attempt.
func (s *MemoryJobStore) SetProgress(ctx context.Context, jobID string, progress int, step string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrAlreadyTerminal
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if step != "" {
		job.CurrentStep = step
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete applies the success terminal write.
func (s *MemoryJobStore) Complete(ctx context.Context, jobID, resultRef string) error {
	return s.finish(ctx, jobID, func(job *domain.Job) {
		job.Status = domain.JobStatusCompleted
		job.Progress = 100
		job.CurrentStep = "completed"
		job.ResultRef = resultRef
		job.ErrorMessage = ""
	})
}

// Fail applies the failure terminal write.
func (s *MemoryJobStore) Fail(ctx context.Context, jobID, message string) error {
	return s.finish(ctx, jobID, func(job *domain.Job) {
		job.Status = domain.JobStatusFailed
		job.CurrentStep = "failed"
		job.ErrorMessage = message
		job.ResultRef = ""
	})
}

func (s *MemoryJobStore) finish(ctx context.Context, jobID string, apply func(*domain.Job)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrAlreadyTerminal
	}
	apply(job)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions a queued or processing job to cancelled.
func (s *MemoryJobStore) Cancel(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrAlreadyTerminal
	}
	job.Status = domain.JobStatusCancelled
	job.CurrentStep = "cancelled"
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// List returns copies of all stored jobs in unspecified order.
func (s *MemoryJobStore) List(ctx context.Context) []*domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, cloneJob(job))
	}
	return out
}

func cloneJob(job *domain.Job) *domain.Job {
	dup := *job
	if len(job.PersonaIDs) > 0 {
		dup.PersonaIDs = append([]string(nil), job.PersonaIDs...)
	}
	return &dup
}

var _ domain.JobStore = (*MemoryJobStore)(nil)
