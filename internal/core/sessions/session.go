package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// SessionTTL is how long a platform session stays valid.
	SessionTTL = 7 * 24 * time.Hour

	// LoginTokenTTL bounds login magic links.
	LoginTokenTTL = 15 * time.Minute

	// RegistrationTokenTTL bounds registration magic links.
	RegistrationTokenTTL = 30 * time.Minute

	// tokenBytes is the entropy of every opaque token issued here.
	tokenBytes = 48
)

// Session is a platform session row. AccessJwt/RefreshJwt are the upstream
// PDS credentials and get rotated in place when the PDS expires them.
type Session struct {
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt      time.Time `json:"expiresAt" db:"expires_at"`
	LastAccessedAt time.Time `json:"lastAccessedAt" db:"last_accessed_at"`
	Token          string    `json:"-" db:"session_token"`
	DID            string    `json:"did" db:"did"`
	UserJSON       string    `json:"-" db:"user_json"`
	AccessJwt      string    `json:"-" db:"access_token"`
	RefreshJwt     string    `json:"-" db:"refresh_token"`
}

// User decodes the cached user blob stored alongside the session.
func (s *Session) User() (map[string]any, error) {
	if s.UserJSON == "" {
		return map[string]any{}, nil
	}
	var user map[string]any
	if err := json.Unmarshal([]byte(s.UserJSON), &user); err != nil {
		return nil, fmt.Errorf("failed to decode session user: %w", err)
	}
	return user, nil
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// PendingLogin is a one-time login magic-link token. Deleted on consumption.
type PendingLogin struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
}

// PendingRegistration is keyed by email: re-requesting replaces the token
// so the newest link always wins.
type PendingRegistration struct {
	Email     string    `db:"email"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
}

// NewToken returns an opaque 48-byte url-safe token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
