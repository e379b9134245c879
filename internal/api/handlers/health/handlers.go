// Package health serves the liveness endpoint.
package health

import (
	"context"
	"net/http"

	"Poltr/internal/api/handlers"
)

// Handler answers 200 when the database is reachable, 503 otherwise.
type Handler struct {
	ping func(ctx context.Context) error
}

// NewHandler creates the health handler around a database ping.
func NewHandler(ping func(ctx context.Context) error) *Handler {
	return &Handler{ping: ping}
}

// HandleHealth reports service health.
// GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.ping(r.Context()); err != nil {
		handlers.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "error",
			"error":  "database unreachable",
		})
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
