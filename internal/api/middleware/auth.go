package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"Poltr/internal/core/sessions"
)

// Context keys for storing session information
type contextKey string

const (
	SessionKey contextKey = "session"
	UserDIDKey contextKey = "user_did"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session_token"

// SessionAuthMiddleware resolves the opaque session token from the cookie
// or the Authorization header and injects the session into the context.
type SessionAuthMiddleware struct {
	service sessions.Service
	logger  *slog.Logger
}

// NewSessionAuthMiddleware creates a session auth middleware
func NewSessionAuthMiddleware(service sessions.Service, logger *slog.Logger) *SessionAuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionAuthMiddleware{service: service, logger: logger}
}

// RequireAuth ensures the request carries a valid session token.
// Returns 401 otherwise; expired sessions are already deleted by the
// session service when it reports them.
func (m *SessionAuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeAuthError(w, "invalid_token", "Missing session token")
			return
		}

		sess, err := m.service.Validate(r.Context(), token)
		if err != nil {
			m.writeValidateError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// OptionalAuth loads the session when a valid token is present but lets
// anonymous requests through.
func (m *SessionAuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.service.Validate(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

func (m *SessionAuthMiddleware) writeValidateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sessions.ErrTokenExpired):
		writeAuthError(w, "token_expired", "Session expired")
	case errors.Is(err, sessions.ErrInvalidToken):
		writeAuthError(w, "invalid_token", "Invalid session token")
	default:
		m.logger.Error("session validation failed", "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_error","message":"Failed to validate session"}`))
	}
}

// extractToken prefers the cookie, falling back to a Bearer header for
// non-browser clients.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func withSession(ctx context.Context, sess *sessions.Session) context.Context {
	ctx = context.WithValue(ctx, SessionKey, sess)
	return context.WithValue(ctx, UserDIDKey, sess.DID)
}

// GetSession extracts the session from the request context.
// Returns nil if not authenticated.
func GetSession(r *http.Request) *sessions.Session {
	sess, _ := r.Context().Value(SessionKey).(*sessions.Session)
	return sess
}

// GetUserDID extracts the user's DID from the request context.
// Returns empty string if not authenticated.
func GetUserDID(r *http.Request) string {
	did, _ := r.Context().Value(UserDIDKey).(string)
	return did
}

// SetTestSession injects a session into the context for handler tests.
func SetTestSession(ctx context.Context, sess *sessions.Session) context.Context {
	return withSession(ctx, sess)
}

// writeAuthError writes a JSON error response for authentication failures
func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`))
}
