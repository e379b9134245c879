package accounts

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"text/template"
	"time"

	"Poltr/internal/atproto/pds"
	"Poltr/internal/crypto"
)

// FederationWaiter is the slice of the directory/relay poller the saga
// needs. Satisfied by *identity.Waiter.
type FederationWaiter interface {
	WaitForDirectoryResolution(ctx context.Context, did string)
	WaitForRelayIndexed(ctx context.Context, did, expectedRev string)
	RequestCrawl(ctx context.Context, hostname string)
}

// ServiceConfig carries the registration knobs from the environment.
type ServiceConfig struct {
	// PDSHostname is the public PDS host accounts live on.
	PDSHostname string
	// PDSPublicHandle is the handle suffix domain, e.g. "id.poltr.ch".
	PDSPublicHandle string
	// MaxAccounts caps registrations when > 0. The relay throttles unknown
	// PDS hosts around 100 accounts.
	MaxAccounts int
	// BioTemplate renders the profile description from the drawn mountain.
	BioTemplate string
}

type service struct {
	repo      Repository
	admin     pds.AdminClient
	client    pds.Client
	waiter    FederationWaiter
	box       *crypto.SecretBox
	pseudonym *PseudonymGenerator
	sessions  SessionIssuer
	cfg       ServiceConfig
	bio       *template.Template
	logger    *slog.Logger
}

var _ Service = (*service)(nil)

type bioData struct {
	MountainFullname string
	Canton           string
	Height           float64
}

// NewService wires the registration saga.
func NewService(
	repo Repository,
	admin pds.AdminClient,
	client pds.Client,
	waiter FederationWaiter,
	box *crypto.SecretBox,
	pseudonym *PseudonymGenerator,
	sessions SessionIssuer,
	cfg ServiceConfig,
	logger *slog.Logger,
) (Service, error) {
	bio, err := template.New("bio").Parse(cfg.BioTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid profile bio template: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		repo:      repo,
		admin:     admin,
		client:    client,
		waiter:    waiter,
		box:       box,
		pseudonym: pseudonym,
		sessions:  sessions,
		cfg:       cfg,
		bio:       bio,
		logger:    logger,
	}, nil
}

// Register runs the bootstrap saga. Once the PDS account exists, any
// further failure compensates with an admin delete so the email can be
// reused; local rows are only written at the very end.
func (s *service) Register(ctx context.Context, email string) (*RegisterResult, error) {
	if s.cfg.MaxAccounts > 0 {
		count, err := s.repo.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count accounts: %w", err)
		}
		if count >= s.cfg.MaxAccounts {
			return nil, ErrAccountLimitReached
		}
	}

	invite, err := s.admin.CreateInviteCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create invite code: %w", err)
	}

	handle, err := s.randomHandle()
	if err != nil {
		return nil, err
	}
	password, err := randomPassword()
	if err != nil {
		return nil, err
	}

	account, err := s.admin.CreateAccount(ctx, handle, password, email, invite)
	if err != nil {
		if errors.Is(err, pds.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: account creation: %v", ErrRegistrationFailed, err)
	}

	// Point of no return for the PDS: everything below compensates with an
	// admin delete on failure.
	result, err := s.provision(ctx, account, email, password)
	if err != nil {
		s.compensate(ctx, account.DID)
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}
	return result, nil
}

func (s *service) provision(ctx context.Context, account *pds.AccountSession, email, password string) (*RegisterResult, error) {
	pseudonym, err := s.pseudonym.Generate(ctx)
	if err != nil {
		return nil, err
	}

	// The first profile write seeds the repo so the directory has a commit
	// to propagate; the real profile follows once the DID resolves.
	// Empty strings on purpose: the random handle must never surface as a
	// display name if the saga dies before the full profile write.
	minimal := map[string]any{
		"$type":       "app.bsky.actor.profile",
		"displayName": "",
		"description": "",
	}
	if _, err := s.client.PutRecord(ctx, account.AccessJwt, account.DID, "app.bsky.actor.profile", "self", minimal); err != nil {
		return nil, fmt.Errorf("failed to write placeholder profile: %w", err)
	}

	s.waiter.WaitForDirectoryResolution(ctx, account.DID)

	description, err := s.renderBio(pseudonym)
	if err != nil {
		return nil, err
	}
	full := map[string]any{
		"$type":       "app.bsky.actor.profile",
		"displayName": pseudonym.DisplayName,
		"description": description,
	}
	profile, err := s.client.PutRecord(ctx, account.AccessJwt, account.DID, "app.bsky.actor.profile", "self", full)
	if err != nil {
		return nil, fmt.Errorf("failed to write profile: %w", err)
	}

	s.waiter.RequestCrawl(ctx, s.cfg.PDSHostname)

	// Pin the relay wait to the commit carrying the final display name, so
	// the handle toggle below reindexes a complete profile upstream.
	s.waiter.WaitForRelayIndexed(ctx, account.DID, profile.CommitRev)
	s.admin.ToggleHandle(ctx, account.DID, account.Handle)

	ciphertext, nonce, err := s.box.Encrypt(password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt app password: %w", err)
	}

	cred := &Credential{
		DID:                account.DID,
		Handle:             account.Handle,
		Email:              email,
		PDSHostname:        s.cfg.PDSHostname,
		PasswordCiphertext: ciphertext,
		PasswordNonce:      nonce,
		TemplateID:         pseudonym.Template.ID,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	user := map[string]any{
		"did":         account.DID,
		"handle":      account.Handle,
		"displayName": pseudonym.DisplayName,
		"color":       pseudonym.Color,
	}
	token, err := s.sessions.IssueSession(ctx, account.DID, user, account.AccessJwt, account.RefreshJwt)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("account registered", "did", account.DID, "handle", account.Handle)

	return &RegisterResult{
		DID:          account.DID,
		Handle:       account.Handle,
		SessionToken: token,
		DisplayName:  pseudonym.DisplayName,
	}, nil
}

// compensate deletes the half-provisioned PDS account. Failures are logged
// only: a leaked account is recoverable, a failed registration is not.
func (s *service) compensate(ctx context.Context, did string) {
	if err := s.admin.DeleteAccount(ctx, did); err != nil {
		s.logger.Error("registration compensation failed, PDS account leaked",
			"did", did, "error", err)
		return
	}
	s.logger.Info("registration compensated, PDS account deleted", "did", did)
}

func (s *service) renderBio(p *Pseudonym) (string, error) {
	var buf bytes.Buffer
	err := s.bio.Execute(&buf, bioData{
		MountainFullname: p.Template.Fullname,
		Canton:           p.Template.Canton,
		Height:           p.Template.Height,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render profile bio: %w", err)
	}
	return buf.String(), nil
}

const handleChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomHandle produces handles like "user4x2a9b.id.poltr.ch".
func (s *service) randomHandle() (string, error) {
	buf := make([]byte, 6)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(handleChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate handle: %w", err)
		}
		buf[i] = handleChars[n.Int64()]
	}
	return fmt.Sprintf("user%s.%s", buf, s.cfg.PDSPublicHandle), nil
}

// randomPassword returns a 64-character url-safe app password.
func randomPassword() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
