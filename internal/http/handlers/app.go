package handlers

import (
	"encoding/json"
	"net/http"

	"cinegen/internal/domain"
	"cinegen/internal/infra"
	"cinegen/internal/queue"
	"cinegen/internal/router"
)

// App aggregates the dependencies the HTTP handlers need.
type App struct {
	Logger infra.Logger
	Store  domain.JobStore
	Queue  queue.Queue
	Router *router.Router
}

func NewApp(logger infra.Logger, store domain.JobStore, q queue.Queue, r *router.Router) *App {
	return &App{Logger: logger, Store: store, Queue: q, Router: r}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}
