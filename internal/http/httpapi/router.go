package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"cinegen/internal/http/handlers"
	"cinegen/internal/infra"
	"cinegen/internal/middleware"
)

// NewRouter assembles the HTTP surface: job submission, status, cancellation
// and the provider listing.
func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
	)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/providers", app.ListProviders)

	r.Route("/v1/jobs", func(r chi.Router) {
		submit := r
		if cfg.RateLimitPerMin > 0 {
			submit = r.With(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		}
		submit.Post("/", app.SubmitJob)
		r.Get("/{id}", app.JobStatus)
		r.Post("/{id}/cancel", app.CancelJob)
	})

	return r
}
