// Package auth implements the ch.poltr.auth.* XRPC endpoints: magic-link
// registration and login, session logout, and app-password creation.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"Poltr/internal/api/handlers"
	"Poltr/internal/api/middleware"
	"Poltr/internal/atproto/pds"
	"Poltr/internal/core/accounts"
	"Poltr/internal/core/sessions"
)

// Handler serves the auth endpoint group.
type Handler struct {
	sessions           sessions.Service
	accounts           accounts.Service
	credentials        accounts.Repository
	pdsClient          pds.Client
	appPasswordEnabled bool
	production         bool
	logger             *slog.Logger
	now                func() time.Time
}

// NewHandler creates the auth handler group.
func NewHandler(
	sessionSvc sessions.Service,
	accountSvc accounts.Service,
	credentials accounts.Repository,
	pdsClient pds.Client,
	appPasswordEnabled bool,
	production bool,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:           sessionSvc,
		accounts:           accountSvc,
		credentials:        credentials,
		pdsClient:          pdsClient,
		appPasswordEnabled: appPasswordEnabled,
		production:         production,
		logger:             logger,
		now:                time.Now,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

// HandleSendMagicLink mails a login link to an existing account.
// POST /xrpc/ch.poltr.auth.sendMagicLink
func (h *Handler) HandleSendMagicLink(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_request", "email required")
		return
	}

	if err := h.sessions.RequestLogin(r.Context(), req.Email); err != nil {
		if errors.Is(err, sessions.ErrUserNotFound) {
			handlers.WriteError(w, http.StatusNotFound, "user_not_found", "No account found for this email")
			return
		}
		h.logger.Error("failed to send login link", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to send magic link")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{"message": "Magic link sent"})
}

// HandleRegister accepts an email and mails a registration confirmation
// link. The account itself is created on verifyRegistration.
// POST /xrpc/ch.poltr.auth.register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_request", "email required")
		return
	}

	available, err := h.emailAvailable(r, req.Email)
	if err != nil {
		h.logger.Error("email availability check failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to process registration")
		return
	}
	if !available {
		handlers.WriteError(w, http.StatusBadRequest, "email_taken", "An account with this email already exists")
		return
	}

	if err := h.sessions.RequestRegistration(r.Context(), req.Email); err != nil {
		h.logger.Error("failed to send registration link", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to send confirmation email")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{"message": "Confirmation email sent"})
}

// HandleVerifyLogin consumes a login token and opens a session.
// POST /xrpc/ch.poltr.auth.verifyLogin
func (h *Handler) HandleVerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_token", "token required")
		return
	}

	sess, err := h.sessions.VerifyLogin(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrInvalidToken):
			handlers.WriteError(w, http.StatusBadRequest, "invalid_token", "Invalid token")
		case errors.Is(err, sessions.ErrTokenExpired):
			handlers.WriteError(w, http.StatusBadRequest, "token_expired", "This link has expired")
		case errors.Is(err, sessions.ErrUserNotFound):
			handlers.WriteError(w, http.StatusNotFound, "user_not_found", "No account found for this email")
		default:
			h.logger.Error("login verification failed", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Login failed")
		}
		return
	}

	user, err := sess.User()
	if err != nil {
		h.logger.Error("corrupt session user blob", "did", sess.DID, "error", err)
		user = map[string]any{"did": sess.DID}
	}

	h.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"user":          user,
		"session_token": sess.Token,
		"expires_at":    sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// HandleVerifyRegistration consumes a registration token and runs the
// account provisioning saga.
// POST /xrpc/ch.poltr.auth.verifyRegistration
func (h *Handler) HandleVerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_token", "token required")
		return
	}

	email, err := h.sessions.ConsumeRegistrationToken(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrInvalidToken):
			handlers.WriteError(w, http.StatusBadRequest, "invalid_token", "Invalid token")
		case errors.Is(err, sessions.ErrTokenExpired):
			handlers.WriteError(w, http.StatusBadRequest, "token_expired", "This link has expired")
		default:
			h.logger.Error("registration verification failed", "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Verification failed")
		}
		return
	}

	// Re-check: the email may have registered through another link between
	// request and confirmation.
	available, err := h.emailAvailable(r, email)
	if err != nil {
		h.logger.Error("email availability check failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Verification failed")
		return
	}
	if !available {
		handlers.WriteError(w, http.StatusBadRequest, "email_taken", "An account with this email already exists")
		return
	}

	result, err := h.accounts.Register(r.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrEmailTaken):
			handlers.WriteError(w, http.StatusConflict, "email_taken", "This email is already registered on the PDS")
		case errors.Is(err, accounts.ErrAccountLimitReached):
			handlers.WriteError(w, http.StatusServiceUnavailable, "account_limit_reached", "Registration is temporarily closed")
		case errors.Is(err, accounts.ErrRegistrationFailed):
			handlers.WriteError(w, http.StatusInternalServerError, "registration_failed", "Account creation failed, please try again")
		default:
			h.logger.Error("registration failed", "error", err)
			handlers.WriteError(w, http.StatusBadGateway, "pds_error", "Could not create account, please try again later")
		}
		return
	}

	expiresAt := h.now().Add(sessions.SessionTTL)
	h.setSessionCookie(w, result.SessionToken, expiresAt)
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Account created successfully",
		"user": map[string]any{
			"did":         result.DID,
			"handle":      result.Handle,
			"displayName": result.DisplayName,
		},
		"session_token": result.SessionToken,
		"expires_at":    expiresAt.UTC().Format(time.RFC3339),
	})
}

// HandleLogout deletes the current session.
// POST /xrpc/ch.poltr.auth.logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	if sess != nil {
		if err := h.sessions.Logout(r.Context(), sess.Token); err != nil {
			h.logger.Error("logout failed", "error", err)
		}
	}
	h.clearSessionCookie(w)
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleCreateAppPassword creates a PDS app password for external clients.
// Gated by configuration; disabled deployments answer 403.
// POST /xrpc/ch.poltr.auth.createAppPassword
func (h *Handler) HandleCreateAppPassword(w http.ResponseWriter, r *http.Request) {
	if !h.appPasswordEnabled {
		handlers.WriteError(w, http.StatusForbidden, "disabled", "App password creation is disabled")
		return
	}

	sess := middleware.GetSession(r)
	if sess == nil {
		handlers.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	name := fmt.Sprintf("poltr-%d", h.now().Unix())
	var appPw *pds.AppPassword
	err := h.sessions.WithRefresh(r.Context(), sess, func(accessJwt string) error {
		var err error
		appPw, err = h.pdsClient.CreateAppPassword(r.Context(), accessJwt, name)
		return err
	})
	if err != nil {
		h.logger.Error("app password creation failed", "did", sess.DID, "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "app_password_failed", "Failed to create app password")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, appPw)
}

// emailAvailable reports whether no credential row exists for the email.
// Lookup failures are returned, not folded into "taken".
func (h *Handler) emailAvailable(r *http.Request, email string) (bool, error) {
	_, err := h.credentials.GetByEmail(r.Context(), email)
	if errors.Is(err, accounts.ErrUserNotFound) {
		return true, nil
	}
	return false, err
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessions.SessionTTL.Seconds()),
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
	})
}
