package router

import (
	"context"
	"fmt"

	"cinegen/internal/domain"
	"cinegen/internal/infra"
	"cinegen/internal/providers/video"
)

// Descriptor describes one registered provider for capability queries.
type Descriptor struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	ModelID   string `json:"model_id"`
}

// Result is the router's answer to a generation call. Besides the provider
// outcome it records which provider ran, whether fallback was used and a
// human-readable reason for the choice.
type Result struct {
	Outcome         *video.Outcome
	ProviderUsed    string
	FallbackUsed    bool
	SelectionReason string
}

// Router selects among registered provider adapters and, for automatic
// selections, falls back across the remaining ones on failure. The priority
// order is the registration order and is fixed for the lifetime of the
// router, so selection is deterministic for a fixed environment.
type Router struct {
	generators      []video.Generator
	byName          map[string]video.Generator
	defaultProvider string
	logger          infra.Logger
}

// New builds a router over the given adapters in fallback priority order.
// defaultProvider may be empty, in which case automatic selection starts at
// the head of the priority list.
func New(logger infra.Logger, defaultProvider string, generators ...video.Generator) *Router {
	byName := make(map[string]video.Generator, len(generators))
	for _, g := range generators {
		byName[g.Name()] = g
	}
	return &Router{
		generators:      generators,
		byName:          byName,
		defaultProvider: defaultProvider,
		logger:          logger,
	}
}

// Providers lists every registered adapter with its availability.
func (r *Router) Providers() []Descriptor {
	out := make([]Descriptor, 0, len(r.generators))
	for _, g := range r.generators {
		out = append(out, Descriptor{Name: g.Name(), Available: g.Available(), ModelID: g.ModelID()})
	}
	return out
}

// Adapter returns the adapter registered under name, for callers that need
// to keep talking to the provider that produced an operation handle.
func (r *Router) Adapter(name string) (video.Generator, error) {
	g, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrProviderUnavailable, name)
	}
	return g, nil
}

// Select resolves which provider an automatic request would use: the
// configured default when available, otherwise the first available provider
// in priority order. When explicit is non-empty and available it wins
// outright; an unavailable explicit request is overridden by the same walk.
func (r *Router) Select(explicit string) (video.Generator, string, error) {
	if explicit != "" {
		if g, ok := r.byName[explicit]; ok && g.Available() {
			return g, fmt.Sprintf("explicit request for %q honored", explicit), nil
		}
	}
	if r.defaultProvider != "" {
		if g, ok := r.byName[r.defaultProvider]; ok && g.Available() {
			reason := fmt.Sprintf("default provider %q", r.defaultProvider)
			if explicit != "" {
				reason = fmt.Sprintf("explicit request for %q overridden due to unavailability; using default %q", explicit, r.defaultProvider)
			}
			return g, reason, nil
		}
	}
	for _, g := range r.generators {
		if !g.Available() {
			continue
		}
		reason := fmt.Sprintf("auto-selected %q by priority order", g.Name())
		if explicit != "" {
			reason = fmt.Sprintf("explicit request for %q overridden due to unavailability; auto-selected %q", explicit, g.Name())
		}
		return g, reason, nil
	}
	return nil, "", fmt.Errorf("%w: no provider is configured", domain.ErrProviderUnavailable)
}

// Generate resolves a provider and invokes it. An explicitly requested
// provider is used as-is and never falls back: the caller asked for that
// backend specifically, so an unavailable or failing explicit provider is
// surfaced directly. Automatic selections retry once against each remaining
// provider in priority order, stopping at the first success; if every
// candidate fails the error enumerates all attempts.
func (r *Router) Generate(ctx context.Context, req video.GenerateRequest, explicit string) (*Result, error) {
	if explicit != "" {
		g, ok := r.byName[explicit]
		if !ok || !g.Available() {
			return nil, fmt.Errorf("%w: %q", domain.ErrProviderUnavailable, explicit)
		}
		outcome, err := g.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", explicit, err)
		}
		return &Result{
			Outcome:         outcome,
			ProviderUsed:    explicit,
			SelectionReason: fmt.Sprintf("explicit request for %q honored", explicit),
		}, nil
	}

	first, reason, err := r.Select("")
	if err != nil {
		return nil, err
	}

	outcome, err := first.Generate(ctx, req)
	if err == nil {
		return &Result{Outcome: outcome, ProviderUsed: first.Name(), SelectionReason: reason}, nil
	}

	attempts := []domain.ProviderAttempt{{Provider: first.Name(), Err: err}}
	r.logger.Warn().
		Err(err).
		Str("provider", first.Name()).
		Str("request_id", req.RequestID).
		Msg("router: provider failed, trying fallback")

	for _, g := range r.generators {
		if g.Name() == first.Name() || !g.Available() {
			continue
		}
		outcome, err := g.Generate(ctx, req)
		if err != nil {
			attempts = append(attempts, domain.ProviderAttempt{Provider: g.Name(), Err: err})
			r.logger.Warn().
				Err(err).
				Str("provider", g.Name()).
				Str("request_id", req.RequestID).
				Msg("router: fallback provider failed")
			continue
		}
		return &Result{
			Outcome:         outcome,
			ProviderUsed:    g.Name(),
			FallbackUsed:    true,
			SelectionReason: fmt.Sprintf("auto-fallback to %q after %q failed", g.Name(), first.Name()),
		}, nil
	}

	return nil, &domain.AllProvidersFailedError{Attempts: attempts}
}
