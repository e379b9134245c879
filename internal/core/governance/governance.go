// Package governance holds the process-wide cache of the privileged
// governance PDS identity. Workers and handlers use it to write curated
// records on behalf of the platform.
package governance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"Poltr/internal/atproto/pds"
)

const (
	// tokenLifetime models how long a PDS access token stays usable.
	tokenLifetime = 90 * time.Minute

	// refreshSkew renews tokens well before their modeled expiry.
	refreshSkew = 30 * time.Minute
)

// Identity is the shared governance identity: a DID plus a cached,
// self-renewing token pair.
type Identity struct {
	did      string
	password string
	client   pds.Client
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	accessJwt  string
	refreshJwt string
	expiresAt  time.Time
}

// NewIdentity builds the governance identity. No session is opened until
// the first token request.
func NewIdentity(did, password string, client pds.Client, logger *slog.Logger) *Identity {
	if logger == nil {
		logger = slog.Default()
	}
	return &Identity{
		did:      did,
		password: password,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

// DID returns the governance DID.
func (g *Identity) DID() string { return g.did }

// Token returns a valid access token, opening or refreshing the session on
// demand.
func (g *Identity) Token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessJwt != "" && g.now().Before(g.expiresAt.Add(-refreshSkew)) {
		return g.accessJwt, nil
	}

	if g.refreshJwt != "" {
		pair, err := g.client.RefreshSession(ctx, g.refreshJwt)
		if err == nil {
			g.store(pair.AccessJwt, pair.RefreshJwt)
			return g.accessJwt, nil
		}
		g.logger.Warn("governance token refresh failed, falling back to login", "error", err)
	}

	session, err := g.client.CreateSession(ctx, g.did, g.password)
	if err != nil {
		return "", fmt.Errorf("failed to open governance session: %w", err)
	}
	g.store(session.AccessJwt, session.RefreshJwt)
	return g.accessJwt, nil
}

// store must be called with the mutex held.
func (g *Identity) store(accessJwt, refreshJwt string) {
	g.accessJwt = accessJwt
	g.refreshJwt = refreshJwt
	g.expiresAt = g.now().Add(tokenLifetime)
}

// Invalidate drops the cached pair so the next Token call logs in fresh.
func (g *Identity) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accessJwt = ""
	g.refreshJwt = ""
}

// CreateRecord creates a record under the governance identity with a
// server-assigned rkey.
func (g *Identity) CreateRecord(ctx context.Context, collection string, record any) (*pds.RecordResult, error) {
	token, err := g.Token(ctx)
	if err != nil {
		return nil, err
	}
	return g.client.CreateRecord(ctx, token, g.did, collection, record)
}

// PutRecord creates or replaces a record at a fixed rkey under the
// governance identity.
func (g *Identity) PutRecord(ctx context.Context, collection, rkey string, record any) (*pds.RecordResult, error) {
	token, err := g.Token(ctx)
	if err != nil {
		return nil, err
	}
	return g.client.PutRecord(ctx, token, g.did, collection, rkey, record)
}

// DeleteRecord removes a governance-owned record.
func (g *Identity) DeleteRecord(ctx context.Context, collection, rkey string) error {
	token, err := g.Token(ctx)
	if err != nil {
		return err
	}
	return g.client.DeleteRecord(ctx, token, g.did, collection, rkey)
}
