package routes

import (
	"github.com/go-chi/chi/v5"

	"Poltr/internal/api/handlers/poltr"
	"Poltr/internal/api/middleware"
)

// RegisterPoltrRoutes registers the app.ch.poltr ballot, argument, and
// rating endpoints. Listings work anonymously; ratings require a session.
func RegisterPoltrRoutes(r chi.Router, h *poltr.Handler, authMiddleware *middleware.SessionAuthMiddleware) {
	r.With(authMiddleware.OptionalAuth).Get("/xrpc/app.ch.poltr.ballot.list", h.HandleListBallots)
	r.With(authMiddleware.OptionalAuth).Get("/xrpc/app.ch.poltr.ballot.get", h.HandleGetBallot)
	r.With(authMiddleware.OptionalAuth).Get("/xrpc/app.ch.poltr.argument.list", h.HandleListArguments)

	r.With(authMiddleware.RequireAuth).Post("/xrpc/app.ch.poltr.content.rating", h.HandleCreateRating)
	r.With(authMiddleware.RequireAuth).Post("/xrpc/app.ch.poltr.content.unrating", h.HandleDeleteRating)
}
