package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"Poltr/internal/api/handlers/auth"
	"Poltr/internal/api/middleware"
)

// RegisterAuthRoutes registers the ch.poltr.auth.* XRPC endpoints.
// Magic-link issuance is rate limited harder than verification since it
// sends mail.
func RegisterAuthRoutes(r chi.Router, h *auth.Handler, authMiddleware *middleware.SessionAuthMiddleware) {
	sendLimiter := middleware.NewRateLimiter(5, time.Minute)
	verifyLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.With(sendLimiter.Middleware).Post("/xrpc/ch.poltr.auth.sendMagicLink", h.HandleSendMagicLink)
	r.With(verifyLimiter.Middleware).Post("/xrpc/ch.poltr.auth.register", h.HandleRegister)
	r.With(verifyLimiter.Middleware).Post("/xrpc/ch.poltr.auth.verifyLogin", h.HandleVerifyLogin)
	r.With(verifyLimiter.Middleware).Post("/xrpc/ch.poltr.auth.verifyRegistration", h.HandleVerifyRegistration)

	r.With(authMiddleware.RequireAuth).Post("/xrpc/ch.poltr.auth.logout", h.HandleLogout)
	r.With(sendLimiter.Middleware, authMiddleware.RequireAuth).
		Post("/xrpc/ch.poltr.auth.createAppPassword", h.HandleCreateAppPassword)
}
