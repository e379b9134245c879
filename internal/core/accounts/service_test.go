package accounts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Poltr/internal/atproto/pds"
	"Poltr/internal/crypto"
)

type fakeAdmin struct {
	calls         []string
	createErr     error
	deleteErr     error
	deletedDIDs   []string
	createdHandle string
}

func (f *fakeAdmin) CreateInviteCode(ctx context.Context) (string, error) {
	f.calls = append(f.calls, "createInvite")
	return "poltr-invite-1", nil
}

func (f *fakeAdmin) CreateAccount(ctx context.Context, handle, password, email, inviteCode string) (*pds.AccountSession, error) {
	f.calls = append(f.calls, "createAccount")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdHandle = handle
	return &pds.AccountSession{
		DID:        "did:plc:newuser",
		Handle:     handle,
		AccessJwt:  "access-jwt",
		RefreshJwt: "refresh-jwt",
	}, nil
}

func (f *fakeAdmin) DeleteAccount(ctx context.Context, did string) error {
	f.calls = append(f.calls, "deleteAccount")
	f.deletedDIDs = append(f.deletedDIDs, did)
	return f.deleteErr
}

func (f *fakeAdmin) ToggleHandle(ctx context.Context, did, handle string) {
	f.calls = append(f.calls, "toggleHandle")
}

type fakeClient struct {
	calls      []string
	putErr     error
	putErrOnce int // fail the nth PutRecord (1-based), 0 = use putErr always
	putCount   int
	records    []map[string]any
}

func (f *fakeClient) CreateSession(ctx context.Context, identifier, password string) (*pds.AccountSession, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) RefreshSession(ctx context.Context, refreshJwt string) (*pds.TokenPair, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) PutRecord(ctx context.Context, accessJwt, did, collection, rkey string, record any) (*pds.RecordResult, error) {
	f.calls = append(f.calls, "putRecord")
	f.putCount++
	if f.putErr != nil && (f.putErrOnce == 0 || f.putErrOnce == f.putCount) {
		return nil, f.putErr
	}
	if m, ok := record.(map[string]any); ok {
		f.records = append(f.records, m)
	}
	return &pds.RecordResult{
		URI:       "at://" + did + "/" + collection + "/" + rkey,
		CID:       "bafyprofile",
		CommitRev: "3kcommitrev22",
	}, nil
}

func (f *fakeClient) CreateRecord(ctx context.Context, accessJwt, did, collection string, record any) (*pds.RecordResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) DeleteRecord(ctx context.Context, accessJwt, did, collection, rkey string) error {
	return errors.New("not used")
}

func (f *fakeClient) CreateAppPassword(ctx context.Context, accessJwt, name string) (*pds.AppPassword, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) Host() string { return "https://pds.test" }

type fakeWaiter struct {
	calls []string
	revs  []string
}

func (f *fakeWaiter) WaitForDirectoryResolution(ctx context.Context, did string) {
	f.calls = append(f.calls, "waitDirectory")
}

func (f *fakeWaiter) WaitForRelayIndexed(ctx context.Context, did, expectedRev string) {
	f.calls = append(f.calls, "waitRelay")
	f.revs = append(f.revs, expectedRev)
}

func (f *fakeWaiter) RequestCrawl(ctx context.Context, hostname string) {
	f.calls = append(f.calls, "requestCrawl")
}

type fakeCredRepo struct {
	count     int
	created   []*Credential
	createErr error
}

func (f *fakeCredRepo) Create(ctx context.Context, cred *Credential) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, cred)
	return nil
}

func (f *fakeCredRepo) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	return nil, ErrUserNotFound
}

func (f *fakeCredRepo) GetByDID(ctx context.Context, did string) (*Credential, error) {
	return nil, ErrUserNotFound
}

func (f *fakeCredRepo) Count(ctx context.Context) (int, error) {
	return f.count, nil
}

type fakeMountains struct{}

func (f *fakeMountains) GetRandom(ctx context.Context) (*MountainTemplate, error) {
	return &MountainTemplate{ID: 7, Name: "Matterhorn", Fullname: "Matterhorn", Canton: "VS", Height: 4478}, nil
}

type fakeSessions struct {
	issued    int
	issuedDID string
	err       error
}

func (f *fakeSessions) IssueSession(ctx context.Context, did string, user map[string]any, accessJwt, refreshJwt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.issued++
	f.issuedDID = did
	return "session-token-abc", nil
}

type sagaFixture struct {
	admin    *fakeAdmin
	client   *fakeClient
	waiter   *fakeWaiter
	repo     *fakeCredRepo
	sessions *fakeSessions
	svc      Service
}

func newSagaFixture(t *testing.T) *sagaFixture {
	t.Helper()

	box := crypto.NewSecretBox([crypto.KeySize]byte{})

	f := &sagaFixture{
		admin:    &fakeAdmin{},
		client:   &fakeClient{},
		waiter:   &fakeWaiter{},
		repo:     &fakeCredRepo{},
		sessions: &fakeSessions{},
	}
	var err error
	f.svc, err = NewService(
		f.repo, f.admin, f.client, f.waiter, box,
		NewPseudonymGenerator(&fakeMountains{}),
		f.sessions,
		ServiceConfig{
			PDSHostname:     "pds.poltr.ch",
			PDSPublicHandle: "id.poltr.ch",
			MaxAccounts:     100,
			BioTemplate:     `{{.MountainFullname}} ({{.Canton}}, {{printf "%.0f" .Height}} m)`,
		},
		slog.New(slog.DiscardHandler),
	)
	require.NoError(t, err)
	return f
}

func TestRegister_HappyPath(t *testing.T) {
	f := newSagaFixture(t)

	result, err := f.svc.Register(context.Background(), "alice@example.ch")
	require.NoError(t, err)

	assert.Equal(t, "did:plc:newuser", result.DID)
	assert.Equal(t, "session-token-abc", result.SessionToken)
	assert.True(t, strings.HasPrefix(result.Handle, "user"))
	assert.True(t, strings.HasSuffix(result.Handle, ".id.poltr.ch"))
	assert.Regexp(t, `^[A-Z]\. Matterhorn$`, result.DisplayName)

	// Placeholder profile is written before the directory wait, the full
	// profile before the relay wait, the toggle strictly last.
	assert.Equal(t, []string{"createInvite", "createAccount", "toggleHandle"}, f.admin.calls)
	assert.Equal(t, []string{"putRecord", "putRecord"}, f.client.calls)
	assert.Equal(t, []string{"waitDirectory", "requestCrawl", "waitRelay"}, f.waiter.calls)
	assert.Equal(t, []string{"3kcommitrev22"}, f.waiter.revs)

	require.Len(t, f.client.records, 2)
	minimal := f.client.records[0]
	assert.Equal(t, "", minimal["displayName"], "placeholder profile must not leak the handle")
	assert.Equal(t, "", minimal["description"])
	full := f.client.records[1]
	assert.Equal(t, result.DisplayName, full["displayName"])
	assert.Equal(t, "Matterhorn (VS, 4478 m)", full["description"])

	require.Len(t, f.repo.created, 1)
	cred := f.repo.created[0]
	assert.Equal(t, "did:plc:newuser", cred.DID)
	assert.Equal(t, "alice@example.ch", cred.Email)
	assert.NotEmpty(t, cred.PasswordCiphertext)
	assert.Len(t, cred.PasswordNonce, crypto.NonceSize)

	assert.Equal(t, 1, f.sessions.issued)
	assert.Empty(t, f.admin.deletedDIDs)
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newSagaFixture(t)
	f.admin.createErr = pds.ErrEmailTaken

	_, err := f.svc.Register(context.Background(), "taken@example.ch")
	assert.ErrorIs(t, err, ErrEmailTaken)

	// No account was created, so nothing to compensate.
	assert.Empty(t, f.admin.deletedDIDs)
	assert.Empty(t, f.repo.created)
	assert.Equal(t, 0, f.sessions.issued)
}

func TestRegister_CompensatesAfterPointOfNoReturn(t *testing.T) {
	f := newSagaFixture(t)
	f.client.putErr = errors.New("pds exploded")
	f.client.putErrOnce = 2 // full profile write fails

	_, err := f.svc.Register(context.Background(), "bob@example.ch")
	assert.ErrorIs(t, err, ErrRegistrationFailed)

	assert.Equal(t, []string{"did:plc:newuser"}, f.admin.deletedDIDs)
	assert.Empty(t, f.repo.created)
	assert.Equal(t, 0, f.sessions.issued)
}

func TestRegister_CompensationFailureIsSwallowed(t *testing.T) {
	f := newSagaFixture(t)
	f.client.putErr = errors.New("pds exploded")
	f.admin.deleteErr = errors.New("delete also failed")

	_, err := f.svc.Register(context.Background(), "bob@example.ch")
	assert.ErrorIs(t, err, ErrRegistrationFailed)
	assert.Empty(t, f.repo.created)
}

func TestRegister_AccountLimit(t *testing.T) {
	f := newSagaFixture(t)
	f.repo.count = 100

	_, err := f.svc.Register(context.Background(), "late@example.ch")
	assert.ErrorIs(t, err, ErrAccountLimitReached)
	assert.Empty(t, f.admin.calls)
}

func TestRegister_CredentialInsertFailureCompensates(t *testing.T) {
	f := newSagaFixture(t)
	f.repo.createErr = errors.New("db down")

	_, err := f.svc.Register(context.Background(), "carol@example.ch")
	assert.ErrorIs(t, err, ErrRegistrationFailed)
	assert.Equal(t, []string{"did:plc:newuser"}, f.admin.deletedDIDs)
	assert.Equal(t, 0, f.sessions.issued)
}
