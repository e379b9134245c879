package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Poltr/internal/core/sessions"
)

type postgresSessionRepo struct {
	db *sql.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sql.DB) sessions.Repository {
	return &postgresSessionRepo{db: db}
}

func (r *postgresSessionRepo) CreateSession(ctx context.Context, sess *sessions.Session) error {
	query := `
		INSERT INTO auth_sessions (
			session_token, did, user_json,
			access_token, refresh_token,
			created_at, expires_at, last_accessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		sess.Token, sess.DID, sess.UserJSON,
		sess.AccessJwt, sess.RefreshJwt,
		sess.CreatedAt, sess.ExpiresAt, sess.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession returns the row regardless of expiry; the service layer owns
// the expiry decision so it can delete stale rows on access.
func (r *postgresSessionRepo) GetSession(ctx context.Context, token string) (*sessions.Session, error) {
	query := `
		SELECT session_token, did, user_json,
		       access_token, refresh_token,
		       created_at, expires_at, last_accessed_at
		FROM auth_sessions
		WHERE session_token = $1
	`

	var sess sessions.Session
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&sess.Token, &sess.DID, &sess.UserJSON,
		&sess.AccessJwt, &sess.RefreshJwt,
		&sess.CreatedAt, &sess.ExpiresAt, &sess.LastAccessedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sessions.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

func (r *postgresSessionRepo) TouchSession(ctx context.Context, token string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE auth_sessions SET last_accessed_at = $1 WHERE session_token = $2", at, token)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (r *postgresSessionRepo) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM auth_sessions WHERE session_token = $1", token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// UpdateTokens rotates the upstream PDS pair in place, matched on both
// token and DID so a reused token cannot overwrite another user's row.
func (r *postgresSessionRepo) UpdateTokens(ctx context.Context, token, did, accessJwt, refreshJwt string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET access_token = $1, refresh_token = $2
		WHERE session_token = $3 AND did = $4
	`, accessJwt, refreshJwt, token, did)
	if err != nil {
		return fmt.Errorf("failed to update session tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check token update: %w", err)
	}
	if rows == 0 {
		return sessions.ErrInvalidToken
	}
	return nil
}

// ActiveDIDs backs reviewer eligibility.
func (r *postgresSessionRepo) ActiveDIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT did FROM auth_sessions WHERE expires_at > NOW()
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active DIDs: %w", err)
	}
	defer rows.Close()

	var dids []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, fmt.Errorf("failed to scan DID: %w", err)
		}
		dids = append(dids, did)
	}
	return dids, rows.Err()
}

func (r *postgresSessionRepo) CreatePendingLogin(ctx context.Context, p *sessions.PendingLogin) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_pending_logins (email, token, expires_at)
		VALUES ($1, $2, $3)
	`, p.Email, p.Token, p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert pending login: %w", err)
	}
	return nil
}

// ConsumePendingLogin deletes the row in the same statement so a token can
// only ever be redeemed once, then applies the expiry check on what was
// deleted.
func (r *postgresSessionRepo) ConsumePendingLogin(ctx context.Context, token string) (string, error) {
	var email string
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM auth_pending_logins WHERE token = $1
		RETURNING email, expires_at
	`, token).Scan(&email, &expiresAt)
	if err == sql.ErrNoRows {
		return "", sessions.ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume pending login: %w", err)
	}

	if time.Now().After(expiresAt) {
		return "", sessions.ErrTokenExpired
	}
	return email, nil
}

// UpsertPendingRegistration is keyed by email: the newest link wins.
func (r *postgresSessionRepo) UpsertPendingRegistration(ctx context.Context, p *sessions.PendingRegistration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_pending_registrations (email, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
	`, p.Email, p.Token, p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert pending registration: %w", err)
	}
	return nil
}

func (r *postgresSessionRepo) ConsumePendingRegistration(ctx context.Context, token string) (string, error) {
	var email string
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM auth_pending_registrations WHERE token = $1
		RETURNING email, expires_at
	`, token).Scan(&email, &expiresAt)
	if err == sql.ErrNoRows {
		return "", sessions.ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume pending registration: %w", err)
	}

	if time.Now().After(expiresAt) {
		return "", sessions.ErrTokenExpired
	}
	return email, nil
}
