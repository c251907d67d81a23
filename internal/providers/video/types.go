package video

import (
	"context"

	"cinegen/internal/domain"
)

// GenerateRequest describes a normalized request passed to any video provider.
type GenerateRequest struct {
	Prompt          string
	DurationSeconds int
	Quality         string
	AspectRatio     string
	RequestID       string
	References      []domain.ReferenceAsset
}

// Asset is a finished generation result: either raw bytes to be persisted or
// a remote URI to be passed through unchanged.
type Asset struct {
	Data            []byte
	URI             string
	MIMEType        string
	DurationSeconds int
}

// Operation is a provider-side asynchronous task handle that must be polled.
type Operation struct {
	Handle   string
	Provider string
}

// Outcome is the result of a submission: exactly one of Asset (output ready
// now) or Operation (output pending) is set.
type Outcome struct {
	Asset     *Asset
	Operation *Operation
}

// PollStatus reports the state of an in-flight operation. Err carries a
// provider-reported generation failure; transport, handle-resolution and
// payload-decode problems are returned as the Poll call's own error instead.
type PollStatus struct {
	Done     bool
	Asset    *Asset
	Err      error
	Metadata map[string]any
}

// Generator is the uniform contract implemented by every video provider
// adapter. Available reports whether the backend is configured (credentials
// present); an unconfigured provider never fabricates output — the router
// alone decides what happens when a backend is missing.
type Generator interface {
	Name() string
	ModelID() string
	Available() bool
	Generate(ctx context.Context, req GenerateRequest) (*Outcome, error)
	Poll(ctx context.Context, handle string) (*PollStatus, error)
}
