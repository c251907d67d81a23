package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrOperationNotFound   = errors.New("operation not found")
	ErrDecode              = errors.New("decode error")
	ErrJobNotFound         = errors.New("job not found")
	ErrAlreadyTerminal     = errors.New("job already terminal")
	ErrJobClaimed          = errors.New("job claimed by another worker")
	ErrQueueUnavailable    = errors.New("queue unavailable")
)

// ProviderAttempt records one failed provider call inside a fallback pass.
type ProviderAttempt struct {
	Provider string
	Err      error
}

// AllProvidersFailedError aggregates every provider attempted by the router
// when no candidate produced a result. Callers always see the full list, not
// just the last failure.
type AllProvidersFailedError struct {
	Attempts []ProviderAttempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}
