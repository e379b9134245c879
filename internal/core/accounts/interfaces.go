package accounts

import "context"

// Service defines the business logic interface for account registration
type Service interface {
	// Register drives the full account bootstrap: PDS account, federation
	// visibility, local credential, session. Either everything succeeds or
	// no durable local state is left behind.
	Register(ctx context.Context, email string) (*RegisterResult, error)
}

// Repository defines data access for credentials
type Repository interface {
	// Create inserts a new credential row
	Create(ctx context.Context, cred *Credential) error

	// GetByEmail retrieves the credential for an email address
	// Returns ErrUserNotFound when absent
	GetByEmail(ctx context.Context, email string) (*Credential, error)

	// GetByDID retrieves the credential for a DID
	GetByDID(ctx context.Context, did string) (*Credential, error)

	// Count returns the total number of credentials, used for the
	// account-limit gate
	Count(ctx context.Context) (int, error)
}

// MountainRepository provides read access to the pseudonym source table
type MountainRepository interface {
	// GetRandom draws one template uniformly at random
	GetRandom(ctx context.Context) (*MountainTemplate, error)
}

// SessionIssuer creates a platform session for a freshly provisioned
// account. Satisfied by the sessions service.
type SessionIssuer interface {
	IssueSession(ctx context.Context, did string, user map[string]any, accessJwt, refreshJwt string) (string, error)
}
