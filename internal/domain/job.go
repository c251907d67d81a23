package domain

import (
	"strings"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindVideo JobKind = "video"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether a status has no outgoing transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// JobParameters carries provider-agnostic generation hints supplied at
// submission time. Zero values mean "let the provider decide".
type JobParameters struct {
	Provider        string `json:"provider,omitempty"`
	Quality         string `json:"quality,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
}

// Job encapsulates the lifecycle of one queued generation request. A job is
// created by the submission interface, mutated exclusively by the worker while
// processing, and immutable once terminal.
type Job struct {
	ID            string        `json:"id"`
	Kind          JobKind       `json:"kind"`
	PersonaIDs    []string      `json:"persona_ids,omitempty"`
	Prompt        string        `json:"prompt"`
	Parameters    JobParameters `json:"parameters"`
	Status        JobStatus     `json:"status"`
	Progress      int           `json:"progress"`
	CurrentStep   string        `json:"current_step"`
	ResultRef     string        `json:"result_ref,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	OwnerWorkerID string        `json:"owner_worker_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Validate rejects malformed jobs before they are queued.
func (j *Job) Validate() error {
	if j.Kind != JobKindVideo {
		return ErrInvalidRequest
	}
	if strings.TrimSpace(j.Prompt) == "" {
		return ErrInvalidRequest
	}
	if j.Parameters.DurationSeconds < 0 {
		return ErrInvalidRequest
	}
	return nil
}
