package sessions

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Poltr/internal/atproto/pds"
	"Poltr/internal/core/accounts"
	"Poltr/internal/crypto"
)

type memRepo struct {
	sessions      map[string]*Session
	pendingLogins map[string]*PendingLogin
	pendingRegs   map[string]*PendingRegistration
	now           func() time.Time
}

func newMemRepo(now func() time.Time) *memRepo {
	return &memRepo{
		sessions:      map[string]*Session{},
		pendingLogins: map[string]*PendingLogin{},
		pendingRegs:   map[string]*PendingRegistration{},
		now:           now,
	}
}

func (m *memRepo) CreateSession(ctx context.Context, sess *Session) error {
	cp := *sess
	m.sessions[sess.Token] = &cp
	return nil
}

func (m *memRepo) GetSession(ctx context.Context, token string) (*Session, error) {
	sess, ok := m.sessions[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	cp := *sess
	return &cp, nil
}

func (m *memRepo) TouchSession(ctx context.Context, token string, at time.Time) error {
	if sess, ok := m.sessions[token]; ok {
		sess.LastAccessedAt = at
	}
	return nil
}

func (m *memRepo) DeleteSession(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func (m *memRepo) UpdateTokens(ctx context.Context, token, did, accessJwt, refreshJwt string) error {
	sess, ok := m.sessions[token]
	if !ok || sess.DID != did {
		return ErrInvalidToken
	}
	sess.AccessJwt = accessJwt
	sess.RefreshJwt = refreshJwt
	return nil
}

func (m *memRepo) ActiveDIDs(ctx context.Context) ([]string, error) {
	var dids []string
	for _, sess := range m.sessions {
		if !sess.Expired(m.now()) {
			dids = append(dids, sess.DID)
		}
	}
	return dids, nil
}

func (m *memRepo) CreatePendingLogin(ctx context.Context, p *PendingLogin) error {
	m.pendingLogins[p.Token] = p
	return nil
}

func (m *memRepo) ConsumePendingLogin(ctx context.Context, token string) (string, error) {
	p, ok := m.pendingLogins[token]
	if !ok {
		return "", ErrInvalidToken
	}
	delete(m.pendingLogins, token)
	if m.now().After(p.ExpiresAt) {
		return "", ErrTokenExpired
	}
	return p.Email, nil
}

func (m *memRepo) UpsertPendingRegistration(ctx context.Context, p *PendingRegistration) error {
	for token, existing := range m.pendingRegs {
		if existing.Email == p.Email {
			delete(m.pendingRegs, token)
		}
	}
	m.pendingRegs[p.Token] = p
	return nil
}

func (m *memRepo) ConsumePendingRegistration(ctx context.Context, token string) (string, error) {
	p, ok := m.pendingRegs[token]
	if !ok {
		return "", ErrInvalidToken
	}
	delete(m.pendingRegs, token)
	if m.now().After(p.ExpiresAt) {
		return "", ErrTokenExpired
	}
	return p.Email, nil
}

type fakeCreds struct {
	byEmail map[string]*accounts.Credential
}

func (f *fakeCreds) GetByEmail(ctx context.Context, email string) (*accounts.Credential, error) {
	cred, ok := f.byEmail[email]
	if !ok {
		return nil, accounts.ErrUserNotFound
	}
	return cred, nil
}

type fakePDS struct {
	sessionErr   error
	refreshErr   error
	refreshCount int
	lastPassword string
}

func (f *fakePDS) CreateSession(ctx context.Context, identifier, password string) (*pds.AccountSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	f.lastPassword = password
	return &pds.AccountSession{
		DID: identifier, Handle: "user4x2a9b.id.poltr.ch",
		AccessJwt: "access-1", RefreshJwt: "refresh-1",
	}, nil
}

func (f *fakePDS) RefreshSession(ctx context.Context, refreshJwt string) (*pds.TokenPair, error) {
	f.refreshCount++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &pds.TokenPair{AccessJwt: "access-2", RefreshJwt: "refresh-2"}, nil
}

func (f *fakePDS) PutRecord(ctx context.Context, accessJwt, did, collection, rkey string, record any) (*pds.RecordResult, error) {
	return nil, errors.New("not used")
}

func (f *fakePDS) CreateRecord(ctx context.Context, accessJwt, did, collection string, record any) (*pds.RecordResult, error) {
	return nil, errors.New("not used")
}

func (f *fakePDS) DeleteRecord(ctx context.Context, accessJwt, did, collection, rkey string) error {
	return errors.New("not used")
}

func (f *fakePDS) CreateAppPassword(ctx context.Context, accessJwt, name string) (*pds.AppPassword, error) {
	return nil, errors.New("not used")
}

func (f *fakePDS) Host() string { return "https://pds.test" }

type fakeSender struct {
	loginLinks map[string]string
	regLinks   map[string]string
}

func newFakeSender() *fakeSender {
	return &fakeSender{loginLinks: map[string]string{}, regLinks: map[string]string{}}
}

func (f *fakeSender) SendLoginLink(ctx context.Context, email, link string) error {
	f.loginLinks[email] = link
	return nil
}

func (f *fakeSender) SendRegistrationLink(ctx context.Context, email, link string) error {
	f.regLinks[email] = link
	return nil
}

type sessionFixture struct {
	repo   *memRepo
	creds  *fakeCreds
	pds    *fakePDS
	sender *fakeSender
	svc    *service
	clock  time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		creds:  &fakeCreds{byEmail: map[string]*accounts.Credential{}},
		pds:    &fakePDS{},
		sender: newFakeSender(),
		clock:  time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }
	f.repo = newMemRepo(now)

	box := crypto.NewSecretBox([crypto.KeySize]byte{1})
	svc := NewService(f.repo, f.creds, f.pds, box, f.sender, "https://poltr.ch", slog.New(slog.DiscardHandler)).(*service)
	svc.now = now
	f.svc = svc

	// One stored credential for the login path.
	ct, nonce, err := box.Encrypt("stored-app-password")
	require.NoError(t, err)
	f.creds.byEmail["alice@example.ch"] = &accounts.Credential{
		DID: "did:plc:alice", Handle: "user4x2a9b.id.poltr.ch",
		Email: "alice@example.ch", PasswordCiphertext: ct, PasswordNonce: nonce,
	}
	return f
}

func TestRequestLogin_UnknownEmail(t *testing.T) {
	f := newSessionFixture(t)

	err := f.svc.RequestLogin(context.Background(), "nobody@example.ch")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, f.sender.loginLinks)
}

func TestRequestLogin_SendsLink(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.svc.RequestLogin(context.Background(), "alice@example.ch"))

	link := f.sender.loginLinks["alice@example.ch"]
	assert.True(t, strings.HasPrefix(link, "https://poltr.ch/verify-login?token="))
	require.Len(t, f.repo.pendingLogins, 1)
	for _, p := range f.repo.pendingLogins {
		assert.Equal(t, f.clock.Add(LoginTokenTTL), p.ExpiresAt)
	}
}

func TestRequestRegistration_UpsertsByEmail(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestRegistration(ctx, "new@example.ch"))
	require.NoError(t, f.svc.RequestRegistration(ctx, "new@example.ch"))

	// Re-requesting replaces the earlier token.
	assert.Len(t, f.repo.pendingRegs, 1)
}

func TestVerifyLogin_HappyPath(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestLogin(ctx, "alice@example.ch"))
	var token string
	for tok := range f.repo.pendingLogins {
		token = tok
	}

	sess, err := f.svc.VerifyLogin(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, "did:plc:alice", sess.DID)
	assert.Equal(t, "access-1", sess.AccessJwt)
	assert.Equal(t, f.clock.Add(SessionTTL), sess.ExpiresAt)
	// The decrypted app password was used against the PDS.
	assert.Equal(t, "stored-app-password", f.pds.lastPassword)
	// Token is single-use.
	assert.Empty(t, f.repo.pendingLogins)

	_, err = f.svc.VerifyLogin(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyLogin_ExpiredToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestLogin(ctx, "alice@example.ch"))
	var token string
	for tok := range f.repo.pendingLogins {
		token = tok
	}

	f.clock = f.clock.Add(LoginTokenTTL + time.Minute)

	_, err := f.svc.VerifyLogin(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidate_ExpiredSessionDeletedOnAccess(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueSession(ctx, "did:plc:alice", map[string]any{"did": "did:plc:alice"}, "a", "r")
	require.NoError(t, err)

	f.clock = f.clock.Add(SessionTTL + time.Hour)

	_, err = f.svc.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Row is gone: a second validate sees no session at all.
	_, err = f.svc.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_TouchesLastAccessed(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueSession(ctx, "did:plc:alice", nil, "a", "r")
	require.NoError(t, err)

	f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.svc.Validate(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, f.clock.UTC(), f.repo.sessions[token].LastAccessedAt)
}

func TestWithRefresh_RotatesOnceAndPersists(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueSession(ctx, "did:plc:alice", nil, "access-1", "refresh-1")
	require.NoError(t, err)
	sess, err := f.repo.GetSession(ctx, token)
	require.NoError(t, err)

	var used []string
	err = f.svc.WithRefresh(ctx, sess, func(accessJwt string) error {
		used = append(used, accessJwt)
		if accessJwt == "access-1" {
			return pds.ErrExpiredToken
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"access-1", "access-2"}, used)
	assert.Equal(t, 1, f.pds.refreshCount)
	// Rotated pair persisted on the row.
	stored := f.repo.sessions[token]
	assert.Equal(t, "access-2", stored.AccessJwt)
	assert.Equal(t, "refresh-2", stored.RefreshJwt)
}

func TestWithRefresh_RetriesExactlyOnce(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueSession(ctx, "did:plc:alice", nil, "access-1", "refresh-1")
	require.NoError(t, err)
	sess, err := f.repo.GetSession(ctx, token)
	require.NoError(t, err)

	calls := 0
	err = f.svc.WithRefresh(ctx, sess, func(accessJwt string) error {
		calls++
		return pds.ErrExpiredToken
	})
	assert.ErrorIs(t, err, pds.ErrExpiredToken)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, f.pds.refreshCount)
}

func TestWithRefresh_RefreshFailure(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.pds.refreshErr = errors.New("refresh token revoked")

	token, err := f.svc.IssueSession(ctx, "did:plc:alice", nil, "access-1", "refresh-1")
	require.NoError(t, err)
	sess, err := f.repo.GetSession(ctx, token)
	require.NoError(t, err)

	err = f.svc.WithRefresh(ctx, sess, func(accessJwt string) error {
		return pds.ErrExpiredToken
	})
	assert.ErrorIs(t, err, ErrRefreshFailed)
}

func TestNewToken_Shape(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	// 48 bytes base64url without padding.
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}
