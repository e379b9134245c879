package routes

import (
	"github.com/go-chi/chi/v5"

	"Poltr/internal/api/handlers/review"
	"Poltr/internal/api/middleware"
)

// RegisterReviewRoutes registers the app.ch.poltr.review.* endpoints.
// Everything except the rubric requires a session.
func RegisterReviewRoutes(r chi.Router, h *review.Handler, authMiddleware *middleware.SessionAuthMiddleware) {
	r.Get("/xrpc/app.ch.poltr.review.criteria", h.HandleCriteria)

	r.With(authMiddleware.RequireAuth).Get("/xrpc/app.ch.poltr.review.pending", h.HandlePending)
	r.With(authMiddleware.RequireAuth).Post("/xrpc/app.ch.poltr.review.submit", h.HandleSubmit)
	r.With(authMiddleware.RequireAuth).Get("/xrpc/app.ch.poltr.review.status", h.HandleStatus)
}
