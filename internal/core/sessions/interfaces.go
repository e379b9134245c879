package sessions

import (
	"context"
	"time"

	"Poltr/internal/core/accounts"
)

// Service defines the session business logic: magic-link issuance and
// consumption, session lifecycle, upstream-token refresh.
type Service interface {
	// RequestLogin mails a login magic link. Requires an existing
	// credential for the email; returns ErrUserNotFound otherwise.
	RequestLogin(ctx context.Context, email string) error

	// RequestRegistration mails a registration magic link. Upserted by
	// email, so re-requests invalidate earlier links.
	RequestRegistration(ctx context.Context, email string) error

	// VerifyLogin consumes a login token and opens a fresh PDS session
	// with the stored credential.
	VerifyLogin(ctx context.Context, token string) (*Session, error)

	// ConsumeRegistrationToken consumes a registration token and returns
	// the email it was issued for. The caller then drives registration.
	ConsumeRegistrationToken(ctx context.Context, token string) (string, error)

	// IssueSession creates a 7-day session for the DID.
	IssueSession(ctx context.Context, did string, user map[string]any, accessJwt, refreshJwt string) (string, error)

	// Validate resolves a session token. Expired rows are deleted on
	// access and reported as ErrTokenExpired.
	Validate(ctx context.Context, token string) (*Session, error)

	// Logout deletes the session row.
	Logout(ctx context.Context, token string) error

	// WithRefresh runs fn with the session's access token. On an expired
	// upstream token it rotates the pair, persists it, and retries fn
	// exactly once.
	WithRefresh(ctx context.Context, sess *Session, fn func(accessJwt string) error) error
}

// Repository defines data access for sessions and pending magic links
type Repository interface {
	CreateSession(ctx context.Context, sess *Session) error

	// GetSession returns the row regardless of expiry; the service decides
	// what expiry means.
	GetSession(ctx context.Context, token string) (*Session, error)

	TouchSession(ctx context.Context, token string, at time.Time) error

	DeleteSession(ctx context.Context, token string) error

	// UpdateTokens rotates the upstream token pair in place, matched on
	// session token and DID.
	UpdateTokens(ctx context.Context, token, did, accessJwt, refreshJwt string) error

	// ActiveDIDs lists distinct DIDs holding a non-expired session.
	ActiveDIDs(ctx context.Context) ([]string, error)

	CreatePendingLogin(ctx context.Context, p *PendingLogin) error

	// ConsumePendingLogin deletes the token row and returns its email.
	// Returns ErrInvalidToken when absent, ErrTokenExpired when stale.
	ConsumePendingLogin(ctx context.Context, token string) (string, error)

	UpsertPendingRegistration(ctx context.Context, p *PendingRegistration) error

	ConsumePendingRegistration(ctx context.Context, token string) (string, error)
}

// CredentialStore is the slice of the accounts repository the login flow
// needs. Satisfied by accounts.Repository.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*accounts.Credential, error)
}

// MagicLinkSender delivers login and registration links.
type MagicLinkSender interface {
	SendLoginLink(ctx context.Context, email, link string) error
	SendRegistrationLink(ctx context.Context, email, link string) error
}
