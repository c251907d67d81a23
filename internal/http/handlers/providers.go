package handlers

import "net/http"

// ListProviders reports the configured backends and their availability so
// operators can see at a glance which credentials are wired.
func (a *App) ListProviders(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"providers": a.Router.Providers(),
	})
}
