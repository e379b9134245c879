// Package pds wraps the PDS's XRPC surface behind typed interfaces.
// It distinguishes user-session endpoints (Bearer token, public host) from
// admin endpoints (HTTP Basic with the shared admin secret, reached via the
// internal non-TLS URL because admin auth is geofenced at the external
// ingress).
package pds

import (
	"context"
	"net/http"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	atclient "github.com/bluesky-social/indigo/atproto/client"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/xrpc"
)

// Client provides session management and repository writes against the
// public PDS host. Record operations take the caller's access token
// explicitly: the AppView acts for many identities (users, governance) and
// never holds a single ambient session.
type Client interface {
	// CreateSession logs in with an identifier (DID, handle or email) and
	// password.
	CreateSession(ctx context.Context, identifier, password string) (*AccountSession, error)

	// RefreshSession rotates an access/refresh token pair. The old refresh
	// token is revoked on success.
	RefreshSession(ctx context.Context, refreshJwt string) (*TokenPair, error)

	// PutRecord creates or replaces a record at a fixed rkey under the
	// given identity.
	PutRecord(ctx context.Context, accessJwt, did, collection, rkey string, record any) (*RecordResult, error)

	// CreateRecord creates a record with a server-assigned rkey.
	CreateRecord(ctx context.Context, accessJwt, did, collection string, record any) (*RecordResult, error)

	// DeleteRecord removes a record.
	DeleteRecord(ctx context.Context, accessJwt, did, collection, rkey string) error

	// CreateAppPassword creates a named app password under the session.
	CreateAppPassword(ctx context.Context, accessJwt, name string) (*AppPassword, error)

	// Host returns the public PDS base URL.
	Host() string
}

// AppPassword is the result of com.atproto.server.createAppPassword.
type AppPassword struct {
	Name      string `json:"name"`
	Password  string `json:"password"`
	CreatedAt string `json:"createdAt"`
}

type client struct {
	host string
}

var _ Client = (*client)(nil)

// NewClient builds a user-session client for the public PDS hostname.
func NewClient(hostname string) Client {
	return &client{host: "https://" + hostname}
}

func (c *client) Host() string { return c.host }

func (c *client) CreateSession(ctx context.Context, identifier, password string) (*AccountSession, error) {
	xc := &xrpc.Client{Host: c.host}

	out, err := comatproto.ServerCreateSession(ctx, xc, &comatproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &AccountSession{
		DID:        out.Did,
		Handle:     out.Handle,
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
	}, nil
}

func (c *client) RefreshSession(ctx context.Context, refreshJwt string) (*TokenPair, error) {
	// The refresh endpoint authenticates with the refresh token itself.
	xc := &xrpc.Client{
		Host: c.host,
		Auth: &xrpc.AuthInfo{AccessJwt: refreshJwt, RefreshJwt: refreshJwt},
	}

	out, err := comatproto.ServerRefreshSession(ctx, xc)
	if err != nil {
		return nil, mapError(err)
	}

	return &TokenPair{AccessJwt: out.AccessJwt, RefreshJwt: out.RefreshJwt}, nil
}

// recordClient builds an APIClient that attaches the given Bearer token.
// Record payloads are plain maps, so the generic Post path is used instead
// of the generated lexicon bindings.
func (c *client) recordClient(accessJwt string) *atclient.APIClient {
	ac := atclient.NewAPIClient(c.host)
	ac.Auth = &bearerAuth{token: accessJwt}
	return ac
}

func (c *client) PutRecord(ctx context.Context, accessJwt, did, collection, rkey string, record any) (*RecordResult, error) {
	payload := map[string]any{
		"repo":       did,
		"collection": collection,
		"rkey":       rkey,
		"record":     record,
	}

	var result struct {
		URI    string `json:"uri"`
		CID    string `json:"cid"`
		Commit struct {
			CID string `json:"cid"`
			Rev string `json:"rev"`
		} `json:"commit"`
	}

	if err := c.recordClient(accessJwt).Post(ctx, syntax.NSID("com.atproto.repo.putRecord"), payload, &result); err != nil {
		return nil, mapError(err)
	}

	return &RecordResult{URI: result.URI, CID: result.CID, CommitRev: result.Commit.Rev}, nil
}

func (c *client) CreateRecord(ctx context.Context, accessJwt, did, collection string, record any) (*RecordResult, error) {
	payload := map[string]any{
		"repo":       did,
		"collection": collection,
		"record":     record,
	}

	var result struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}

	if err := c.recordClient(accessJwt).Post(ctx, syntax.NSID("com.atproto.repo.createRecord"), payload, &result); err != nil {
		return nil, mapError(err)
	}

	return &RecordResult{URI: result.URI, CID: result.CID}, nil
}

func (c *client) DeleteRecord(ctx context.Context, accessJwt, did, collection, rkey string) error {
	payload := map[string]any{
		"repo":       did,
		"collection": collection,
		"rkey":       rkey,
	}

	// deleteRecord returns an empty body on success.
	if err := c.recordClient(accessJwt).Post(ctx, syntax.NSID("com.atproto.repo.deleteRecord"), payload, nil); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *client) CreateAppPassword(ctx context.Context, accessJwt, name string) (*AppPassword, error) {
	payload := map[string]any{"name": name}

	var result AppPassword
	if err := c.recordClient(accessJwt).Post(ctx, syntax.NSID("com.atproto.server.createAppPassword"), payload, &result); err != nil {
		return nil, mapError(err)
	}
	return &result, nil
}

// bearerAuth implements atclient.AuthMethod for plain Bearer token auth.
// App-password sessions use Bearer JWTs; no DPoP involved.
type bearerAuth struct {
	token string
}

var _ atclient.AuthMethod = (*bearerAuth)(nil)

func (b *bearerAuth) DoWithAuth(c *http.Client, req *http.Request, _ syntax.NSID) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+b.token)
	return c.Do(req)
}
