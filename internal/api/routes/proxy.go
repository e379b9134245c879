package routes

import (
	"github.com/go-chi/chi/v5"

	"Poltr/internal/api/handlers/proxy"
)

// RegisterProxyRoutes registers the upstream AppView pass-through.
// Augmented methods get explicit routes; the wildcard fallback must be
// registered last so specific XRPC routes win.
func RegisterProxyRoutes(r chi.Router, h *proxy.Handler) {
	r.Get("/xrpc/app.bsky.actor.getProfile", h.HandleGetProfile)
	r.Get("/xrpc/app.bsky.actor.getPreferences", h.HandleGetPreferences)

	r.HandleFunc("/xrpc/*", h.HandleXRPC)
}
