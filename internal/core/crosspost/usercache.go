package crosspost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Poltr/internal/atproto/pds"
	"Poltr/internal/core/accounts"
	"Poltr/internal/crypto"
)

// userTokenTTL is how long a cached per-user access token is trusted.
const userTokenTTL = 60 * time.Minute

type cachedToken struct {
	accessJwt string
	expiresAt time.Time
}

// userSessionCache holds short-lived PDS tokens for argument authors so a
// busy tick does not log every author in repeatedly. Tokens are obtained
// by decrypting the stored app password.
type userSessionCache struct {
	credentials accounts.Repository
	pdsClient   pds.Client
	box         *crypto.SecretBox
	now         func() time.Time

	mu     sync.Mutex
	tokens map[string]cachedToken
}

func newUserSessionCache(credentials accounts.Repository, pdsClient pds.Client, box *crypto.SecretBox) *userSessionCache {
	return &userSessionCache{
		credentials: credentials,
		pdsClient:   pdsClient,
		box:         box,
		now:         time.Now,
		tokens:      map[string]cachedToken{},
	}
}

// Token returns a valid access token for the DID, logging in with the
// decrypted app password on a cache miss.
func (c *userSessionCache) Token(ctx context.Context, did string) (string, error) {
	c.mu.Lock()
	cached, ok := c.tokens[did]
	c.mu.Unlock()
	if ok && c.now().Before(cached.expiresAt) {
		return cached.accessJwt, nil
	}

	cred, err := c.credentials.GetByDID(ctx, did)
	if err != nil {
		return "", fmt.Errorf("no credential for %s: %w", did, err)
	}

	password, err := c.box.Decrypt(cred.PasswordCiphertext, cred.PasswordNonce)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt app password for %s: %w", did, err)
	}

	session, err := c.pdsClient.CreateSession(ctx, did, password)
	if err != nil {
		return "", fmt.Errorf("failed to open session for %s: %w", did, err)
	}

	c.mu.Lock()
	c.tokens[did] = cachedToken{accessJwt: session.AccessJwt, expiresAt: c.now().Add(userTokenTTL)}
	c.mu.Unlock()
	return session.AccessJwt, nil
}
