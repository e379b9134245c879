package pds

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/xrpc"
)

// AdminClient performs privileged account operations against the PDS's
// internal URL using the shared admin secret.
type AdminClient interface {
	// CreateInviteCode mints a single-use invite code.
	CreateInviteCode(ctx context.Context) (string, error)

	// CreateAccount provisions an account, consuming the invite code.
	CreateAccount(ctx context.Context, handle, password, email, inviteCode string) (*AccountSession, error)

	// DeleteAccount removes an account. Used only as the compensating
	// action of the registration saga; callers log failures and move on.
	DeleteAccount(ctx context.Context, did string) error

	// ToggleHandle renames the account to a temporary handle and back,
	// forcing a fresh #identity event on the firehose. Best-effort: the
	// upstream AppView indexes the account correctly once the event
	// arrives after the relay has the profile commit. All failures are
	// logged and swallowed.
	ToggleHandle(ctx context.Context, did, handle string)
}

type adminClient struct {
	internalURL string
	password    string
	logger      *slog.Logger
}

var _ AdminClient = (*adminClient)(nil)

// NewAdminClient builds an admin client for the internal PDS URL.
func NewAdminClient(internalURL, adminPassword string, logger *slog.Logger) AdminClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &adminClient{
		internalURL: internalURL,
		password:    adminPassword,
		logger:      logger,
	}
}

// xrpcClient returns a client carrying the admin token. indigo attaches it
// as HTTP Basic auth on com.atproto.admin.* and createInviteCode calls.
func (a *adminClient) xrpcClient() *xrpc.Client {
	token := a.password
	return &xrpc.Client{
		Host:       a.internalURL,
		AdminToken: &token,
	}
}

func (a *adminClient) CreateInviteCode(ctx context.Context) (string, error) {
	out, err := comatproto.ServerCreateInviteCode(ctx, a.xrpcClient(), &comatproto.ServerCreateInviteCode_Input{
		UseCount: 1,
	})
	if err != nil {
		return "", mapError(err)
	}
	return out.Code, nil
}

func (a *adminClient) CreateAccount(ctx context.Context, handle, password, email, inviteCode string) (*AccountSession, error) {
	out, err := comatproto.ServerCreateAccount(ctx, a.xrpcClient(), &comatproto.ServerCreateAccount_Input{
		Handle:     handle,
		Email:      &email,
		Password:   &password,
		InviteCode: &inviteCode,
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

func (a *adminClient) DeleteAccount(ctx context.Context, did string) error {
	err := comatproto.AdminDeleteAccount(ctx, a.xrpcClient(), &comatproto.AdminDeleteAccount_Input{
		Did: did,
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (a *adminClient) ToggleHandle(ctx context.Context, did, handle string) {
	tmp := tempHandle(handle)

	if err := a.updateHandle(ctx, did, tmp); err != nil {
		a.logger.Warn("handle toggle: rename to temporary handle failed",
			"did", did, "handle", tmp, "error", err)
		return
	}

	// Give the PDS a moment to emit the first identity event before
	// renaming back.
	select {
	case <-time.After(1 * time.Second):
	case <-ctx.Done():
		return
	}

	if err := a.updateHandle(ctx, did, handle); err != nil {
		// The account is left on the temporary handle; the rename back is
		// retried implicitly next time someone toggles. Log loudly.
		a.logger.Error("handle toggle: rename back failed, account left on temporary handle",
			"did", did, "handle", tmp, "error", err)
	}
}

func (a *adminClient) updateHandle(ctx context.Context, did, handle string) error {
	err := comatproto.AdminUpdateAccountHandle(ctx, a.xrpcClient(), &comatproto.AdminUpdateAccountHandle_Input{
		Did:    did,
		Handle: handle,
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// tempHandle derives the transient handle used during a toggle:
// "alice.id.example" becomes "alice-tmp.id.example".
func tempHandle(handle string) string {
	base, domain, found := strings.Cut(handle, ".")
	if !found {
		return handle + "-tmp"
	}
	return fmt.Sprintf("%s-tmp.%s", base, domain)
}
