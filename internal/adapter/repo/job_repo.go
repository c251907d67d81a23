package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cinegen/internal/domain"
)

// JobStorePG implements domain.JobStore on PostgreSQL. Lifecycle rules are
// enforced in SQL: every transition is a conditional UPDATE whose WHERE
// clause names the states it may leave from, so concurrent writers cannot
// overwrite a terminal state.
type JobStorePG struct {
	pool *pgxpool.Pool
}

// NewJobStore creates a job store backed by PostgreSQL.
func NewJobStore(pool *pgxpool.Pool) *JobStorePG {
	return &JobStorePG{pool: pool}
}

// Schema returns the DDL for the jobs table. Callers apply it at startup.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS jobs (
    id               TEXT PRIMARY KEY,
    kind             TEXT NOT NULL,
    persona_ids      TEXT[] NOT NULL DEFAULT '{}',
    prompt           TEXT NOT NULL,
    provider         TEXT NOT NULL DEFAULT '',
    quality          TEXT NOT NULL DEFAULT '',
    duration_seconds INT NOT NULL DEFAULT 0,
    aspect_ratio     TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'queued',
    progress         INT NOT NULL DEFAULT 0,
    current_step     TEXT NOT NULL DEFAULT '',
    result_ref       TEXT NOT NULL DEFAULT '',
    error_message    TEXT NOT NULL DEFAULT '',
    owner_worker_id  TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);
`
}

// EnsureSchema creates the jobs table when it does not exist yet.
func (r *JobStorePG) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema())
	return err
}

const jobColumns = `id, kind, persona_ids, prompt, provider, quality, duration_seconds, aspect_ratio,
status, progress, current_step, result_ref, error_message, owner_worker_id, created_at, updated_at`

// Create inserts a new job record in queued status.
func (r *JobStorePG) Create(ctx context.Context, job *domain.Job) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidRequest
	}
	query := `
INSERT INTO jobs (id, kind, persona_ids, prompt, provider, quality, duration_seconds, aspect_ratio, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'queued');
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Kind,
		job.PersonaIDs,
		job.Prompt,
		job.Parameters.Provider,
		job.Parameters.Quality,
		job.Parameters.DurationSeconds,
		job.Parameters.AspectRatio,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobStorePG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, jobID)
	return scanJob(row)
}

// Claim moves a queued job to processing and records the owning worker. The
// transition races against Cancel; whichever UPDATE matches first wins and
// the loser observes the job's current state.
func (r *JobStorePG) Claim(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = 'processing', owner_worker_id = $2, updated_at = NOW()
WHERE id = $1 AND status = 'queued'
RETURNING ` + jobColumns + `;`
	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID, workerID))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrJobNotFound) {
		return nil, err
	}

	current, getErr := r.GetByID(ctx, jobID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status.Terminal() {
		return current, domain.ErrAlreadyTerminal
	}
	return nil, domain.ErrJobClaimed
}

// SetProgress advances progress on a processing job. Lower values match no
// row and are silently ignored, keeping observed progress monotonic.
func (r *JobStorePG) SetProgress(ctx context.Context, jobID string, progress int, step string) error {
	query := `
UPDATE jobs
SET progress = $2,
    current_step = CASE WHEN $3 <> '' THEN $3 ELSE current_step END,
    updated_at = NOW()
WHERE id = $1 AND status = 'processing' AND progress <= $2;
`
	tag, err := r.pool.Exec(ctx, query, jobID, progress, step)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return domain.ErrAlreadyTerminal
	}
	return nil
}

// Complete applies the success terminal write.
func (r *JobStorePG) Complete(ctx context.Context, jobID, resultRef string) error {
	query := `
UPDATE jobs
SET status = 'completed', progress = 100, current_step = 'completed',
    result_ref = $2, error_message = '', updated_at = NOW()
WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled');
`
	return r.finish(ctx, jobID, query, resultRef)
}

// Fail applies the failure terminal write.
func (r *JobStorePG) Fail(ctx context.Context, jobID, message string) error {
	query := `
UPDATE jobs
SET status = 'failed', current_step = 'failed',
    error_message = $2, result_ref = '', updated_at = NOW()
WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled');
`
	return r.finish(ctx, jobID, query, message)
}

// Cancel transitions a queued or processing job to cancelled. The NOT IN
// guard makes cancellation absorbing: once terminal, nothing rewrites it.
func (r *JobStorePG) Cancel(ctx context.Context, jobID string) error {
	query := `
UPDATE jobs
SET status = 'cancelled', current_step = 'cancelled', updated_at = NOW()
WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled');
`
	tag, err := r.pool.Exec(ctx, query, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return r.missOutcome(ctx, jobID)
}

func (r *JobStorePG) finish(ctx context.Context, jobID, query string, arg any) error {
	tag, err := r.pool.Exec(ctx, query, jobID, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return r.missOutcome(ctx, jobID)
}

// missOutcome distinguishes "no such job" from "already terminal" after a
// conditional UPDATE matched nothing.
func (r *JobStorePG) missOutcome(ctx context.Context, jobID string) error {
	current, err := r.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return domain.ErrAlreadyTerminal
	}
	return domain.ErrJobNotFound
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.PersonaIDs,
		&job.Prompt,
		&job.Parameters.Provider,
		&job.Parameters.Quality,
		&job.Parameters.DurationSeconds,
		&job.Parameters.AspectRatio,
		&job.Status,
		&job.Progress,
		&job.CurrentStep,
		&job.ResultRef,
		&job.ErrorMessage,
		&job.OwnerWorkerID,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

var _ domain.JobStore = (*JobStorePG)(nil)
