package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cinegen/internal/domain"
	"cinegen/internal/infra"
	"cinegen/internal/providers/video"
	"cinegen/internal/queue"
	"cinegen/internal/router"
)

const (
	defaultDequeueWait      = 2 * time.Second
	defaultIdleBackoff      = 2 * time.Second
	defaultOperationPoll    = 10 * time.Second
	defaultOperationTimeout = 10 * time.Minute
	defaultDuration         = 8
)

// Options configures a Worker. Zero durations get defaults.
type Options struct {
	ID               string
	DequeueWait      time.Duration
	IdleBackoff      time.Duration
	OperationPoll    time.Duration
	OperationTimeout time.Duration
}

// Worker is a single sequential consumer: it drains the job queue one job at
// a time and drives each through the provider router to a terminal state.
// Horizontal scaling is achieved by running more worker processes against a
// shared durable queue, not by making one worker concurrent internally.
type Worker struct {
	id       string
	queue    queue.Queue
	store    domain.JobStore
	router   *router.Router
	blobs    domain.BlobStore
	personas domain.PersonaResolver
	logger   infra.Logger

	dequeueWait      time.Duration
	idleBackoff      time.Duration
	operationPoll    time.Duration
	operationTimeout time.Duration
}

// New assembles a worker. The persona resolver may be nil when no persona
// library is configured.
func New(q queue.Queue, store domain.JobStore, r *router.Router, blobs domain.BlobStore, personas domain.PersonaResolver, logger infra.Logger, opts Options) *Worker {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	w := &Worker{
		id:               id,
		queue:            q,
		store:            store,
		router:           r,
		blobs:            blobs,
		personas:         personas,
		logger:           logger,
		dequeueWait:      opts.DequeueWait,
		idleBackoff:      opts.IdleBackoff,
		operationPoll:    opts.OperationPoll,
		operationTimeout: opts.OperationTimeout,
	}
	if w.dequeueWait <= 0 {
		w.dequeueWait = defaultDequeueWait
	}
	if w.idleBackoff <= 0 {
		w.idleBackoff = defaultIdleBackoff
	}
	if w.operationPoll <= 0 {
		w.operationPoll = defaultOperationPoll
	}
	if w.operationTimeout <= 0 {
		w.operationTimeout = defaultOperationTimeout
	}
	return w
}

// ID returns the worker's identity as recorded on claimed jobs.
func (w *Worker) ID() string {
	return w.id
}

// Run drains the queue until ctx is cancelled. A single job's failure never
// stops the loop: generation errors become the job's terminal failed state
// and the worker moves on.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Str("worker_id", w.id).Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.dequeueWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logger.Error().Err(err).Msg("worker: dequeue failed")
			w.sleep(ctx, w.idleBackoff)
			continue
		}
		if job == nil {
			w.sleep(ctx, w.idleBackoff)
			continue
		}

		w.Process(ctx, job)
	}
}

// Process drives one dequeued job to a terminal state.
func (w *Worker) Process(ctx context.Context, job *domain.Job) {
	logger := w.logger.With().Str("job_id", job.ID).Str("worker_id", w.id).Logger()

	claimed, err := w.store.Claim(ctx, job.ID, w.id)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyTerminal) {
			logger.Info().Msg("worker: job already terminal, skipping")
			return
		}
		if errors.Is(err, domain.ErrJobClaimed) {
			logger.Info().Msg("worker: job claimed by another worker, skipping")
			return
		}
		logger.Error().Err(err).Msg("worker: claim failed")
		return
	}
	logger.Info().Str("kind", string(claimed.Kind)).Msg("worker: picked job")

	// Terminal writes must land even when ctx died mid-generation (worker
	// shutdown), otherwise the job is stranded in processing.
	terminalCtx := context.WithoutCancel(ctx)

	resultRef, err := w.generate(ctx, claimed, logger)
	if err != nil {
		logger.Error().Err(err).Msg("worker: job failed")
		if failErr := w.store.Fail(terminalCtx, job.ID, err.Error()); failErr != nil {
			if errors.Is(failErr, domain.ErrAlreadyTerminal) {
				logger.Info().Msg("worker: terminal write lost to earlier transition")
				return
			}
			logger.Error().Err(failErr).Msg("worker: recording failure failed")
		}
		return
	}

	if err := w.store.Complete(terminalCtx, job.ID, resultRef); err != nil {
		if errors.Is(err, domain.ErrAlreadyTerminal) {
			logger.Info().Msg("worker: terminal write lost to earlier transition")
			return
		}
		logger.Error().Err(err).Msg("worker: recording completion failed")
		return
	}
	logger.Info().Str("result_ref", resultRef).Msg("worker: job completed")
}

func (w *Worker) generate(ctx context.Context, job *domain.Job, logger infra.Logger) (string, error) {
	if job.Kind != domain.JobKindVideo {
		return "", fmt.Errorf("%w: unsupported job kind %q", domain.ErrInvalidRequest, job.Kind)
	}

	w.progress(ctx, job.ID, 10, "starting generation", logger)

	req := w.buildRequest(ctx, job, logger)

	w.progress(ctx, job.ID, 30, "generating video", logger)
	res, err := w.router.Generate(ctx, req, job.Parameters.Provider)
	if err != nil {
		return "", err
	}
	logger.Info().
		Str("provider", res.ProviderUsed).
		Bool("fallback", res.FallbackUsed).
		Str("reason", res.SelectionReason).
		Msg("worker: provider selected")

	asset := res.Outcome.Asset
	if op := res.Outcome.Operation; op != nil {
		w.progress(ctx, job.ID, 60, "waiting for provider", logger)
		asset, err = w.awaitOperation(ctx, op, logger)
		if err != nil {
			return "", err
		}
	}
	if asset == nil {
		return "", fmt.Errorf("%w: provider returned neither asset nor operation", domain.ErrDecode)
	}

	w.progress(ctx, job.ID, 90, "finalizing", logger)
	return w.persist(ctx, job, asset)
}

// buildRequest normalizes the job into a provider-agnostic request,
// attaching reference assets for any personas mentioned in the prompt.
func (w *Worker) buildRequest(ctx context.Context, job *domain.Job, logger infra.Logger) video.GenerateRequest {
	duration := job.Parameters.DurationSeconds
	if duration <= 0 {
		duration = defaultDuration
	}
	aspect := job.Parameters.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}

	var references []domain.ReferenceAsset
	if w.personas != nil {
		refs, err := w.personas.ResolveReferences(ctx, job.Prompt)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: persona resolution failed, continuing without references")
		} else {
			references = refs
		}
	}

	return video.GenerateRequest{
		Prompt:          job.Prompt,
		DurationSeconds: duration,
		Quality:         job.Parameters.Quality,
		AspectRatio:     aspect,
		RequestID:       job.ID,
		References:      references,
	}
}

// awaitOperation drives the poll loop for an asynchronous provider. The
// protocol itself is stateless; interval and deadline belong to the worker.
func (w *Worker) awaitOperation(ctx context.Context, op *video.Operation, logger infra.Logger) (*video.Asset, error) {
	adapter, err := w.router.Adapter(op.Provider)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(w.operationTimeout)
	ticker := time.NewTicker(w.operationPoll)
	defer ticker.Stop()

	for {
		status, err := adapter.Poll(ctx, op.Handle)
		if err != nil {
			return nil, err
		}
		if status.Done {
			if status.Err != nil {
				return nil, status.Err
			}
			if status.Asset == nil {
				return nil, fmt.Errorf("%w: done operation carries no asset", domain.ErrDecode)
			}
			return status.Asset, nil
		}

		logger.Debug().Str("operation", op.Handle).Msg("worker: operation still in progress")
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("operation %s did not finish within %s", op.Handle, w.operationTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// persist stores inline bytes through the blob store and passes remote URIs
// through unchanged.
func (w *Worker) persist(ctx context.Context, job *domain.Job, asset *video.Asset) (string, error) {
	if len(asset.Data) > 0 {
		if w.blobs == nil {
			return "", errors.New("no blob store configured for inline asset")
		}
		name := fmt.Sprintf("videos/%s%s", job.ID, extensionForMIME(asset.MIMEType))
		ref, err := w.blobs.Put(ctx, asset.Data, name)
		if err != nil {
			return "", fmt.Errorf("persist asset: %w", err)
		}
		return ref, nil
	}
	if asset.URI != "" {
		return asset.URI, nil
	}
	return "", fmt.Errorf("%w: asset carries neither bytes nor uri", domain.ErrDecode)
}

func (w *Worker) progress(ctx context.Context, jobID string, progress int, step string, logger infra.Logger) {
	if err := w.store.SetProgress(ctx, jobID, progress, step); err != nil && !errors.Is(err, domain.ErrAlreadyTerminal) {
		logger.Warn().Err(err).Int("progress", progress).Msg("worker: progress update failed")
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".mp4"
	}
}
