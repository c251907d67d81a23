package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cinegen/internal/domain"
)

type submitJobRequest struct {
	Kind       string               `json:"kind"`
	Prompt     string               `json:"prompt"`
	PersonaIDs []string             `json:"persona_ids,omitempty"`
	Parameters domain.JobParameters `json:"parameters"`
}

// SubmitJob validates a generation request, persists it in queued state and
// hands it to the queue. Enqueue failures are surfaced to the caller and the
// job is failed immediately so it never sits queued with no way to run.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid json body")
		return
	}

	kind := domain.JobKind(req.Kind)
	if req.Kind == "" {
		kind = domain.JobKindVideo
	}
	job := &domain.Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		PersonaIDs: req.PersonaIDs,
		Prompt:     req.Prompt,
		Parameters: req.Parameters,
		Status:     domain.JobStatusQueued,
	}
	if err := job.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "kind must be video, prompt must be non-empty and duration non-negative")
		return
	}
	if job.Parameters.Provider != "" {
		if _, err := a.Router.Adapter(job.Parameters.Provider); err != nil {
			a.error(w, http.StatusBadRequest, "unknown provider "+job.Parameters.Provider)
			return
		}
	}

	ctx := r.Context()
	if err := a.Store.Create(ctx, job); err != nil {
		a.Logger.Error().Err(err).Msg("http: create job failed")
		a.error(w, http.StatusInternalServerError, "could not create job")
		return
	}

	if _, err := a.Queue.Enqueue(ctx, job); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("http: enqueue failed")
		if failErr := a.Store.Fail(ctx, job.ID, "enqueue failed: "+err.Error()); failErr != nil {
			a.Logger.Error().Err(failErr).Str("job_id", job.ID).Msg("http: marking job failed after enqueue error")
		}
		a.error(w, http.StatusServiceUnavailable, "job queue unavailable")
		return
	}

	a.Logger.Info().Str("job_id", job.ID).Msg("http: job accepted")
	a.json(w, http.StatusAccepted, job)
}

// JobStatus returns the current state of one job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job, err := a.Store.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			a.error(w, http.StatusNotFound, "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("http: job lookup failed")
		a.error(w, http.StatusInternalServerError, "could not load job")
		return
	}
	a.json(w, http.StatusOK, job)
}

// CancelJob requests cancellation. Cancelling an already terminal job is a
// conflict, not an error the caller can fix, so it answers 409 with the
// job's settled state.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	err := a.Store.Cancel(r.Context(), jobID)
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]string{"id": jobID, "status": string(domain.JobStatusCancelled)})
	case errors.Is(err, domain.ErrJobNotFound):
		a.error(w, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrAlreadyTerminal):
		job, getErr := a.Store.GetByID(r.Context(), jobID)
		if getErr != nil {
			a.error(w, http.StatusConflict, "job already in a terminal state")
			return
		}
		a.json(w, http.StatusConflict, map[string]string{"id": jobID, "status": string(job.Status), "error": "job already in a terminal state"})
	default:
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("http: cancel failed")
		a.error(w, http.StatusInternalServerError, "could not cancel job")
	}
}
