package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Poltr/internal/core/accounts"
)

type postgresCredentialRepo struct {
	db *sql.DB
}

// NewCredentialRepository creates a new PostgreSQL credential repository
func NewCredentialRepository(db *sql.DB) accounts.Repository {
	return &postgresCredentialRepo{db: db}
}

// Create inserts a new credential row after the registration saga passed
// its point of no return.
func (r *postgresCredentialRepo) Create(ctx context.Context, cred *accounts.Credential) error {
	query := `
		INSERT INTO auth_creds (
			did, handle, email, pds_hostname,
			pw_ciphertext, pw_nonce, pseudonym_template_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		cred.DID, cred.Handle, cred.Email, cred.PDSHostname,
		cred.PasswordCiphertext, cred.PasswordNonce, cred.TemplateID, cred.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

func (r *postgresCredentialRepo) GetByEmail(ctx context.Context, email string) (*accounts.Credential, error) {
	return r.get(ctx, "email", email)
}

func (r *postgresCredentialRepo) GetByDID(ctx context.Context, did string) (*accounts.Credential, error) {
	return r.get(ctx, "did", did)
}

func (r *postgresCredentialRepo) get(ctx context.Context, column, value string) (*accounts.Credential, error) {
	query := fmt.Sprintf(`
		SELECT did, handle, email, pds_hostname,
		       pw_ciphertext, pw_nonce, pseudonym_template_id, created_at
		FROM auth_creds
		WHERE %s = $1
	`, column)

	var cred accounts.Credential
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&cred.DID, &cred.Handle, &cred.Email, &cred.PDSHostname,
		&cred.PasswordCiphertext, &cred.PasswordNonce, &cred.TemplateID, &cred.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, accounts.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

// Count backs the account-limit gate.
func (r *postgresCredentialRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM auth_creds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count credentials: %w", err)
	}
	return count, nil
}
