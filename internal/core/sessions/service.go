package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"Poltr/internal/atproto/pds"
	"Poltr/internal/core/accounts"
	"Poltr/internal/crypto"
)

type service struct {
	repo        Repository
	credentials CredentialStore
	pdsClient   pds.Client
	box         *crypto.SecretBox
	sender      MagicLinkSender
	frontendURL string
	logger      *slog.Logger
	now         func() time.Time
}

var _ Service = (*service)(nil)

// NewService wires the session service. frontendURL is the base for magic
// links, e.g. "https://poltr.ch".
func NewService(
	repo Repository,
	credentials CredentialStore,
	pdsClient pds.Client,
	box *crypto.SecretBox,
	sender MagicLinkSender,
	frontendURL string,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		repo:        repo,
		credentials: credentials,
		pdsClient:   pdsClient,
		box:         box,
		sender:      sender,
		frontendURL: frontendURL,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *service) RequestLogin(ctx context.Context, email string) error {
	if _, err := s.credentials.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to look up credential: %w", err)
	}

	token, err := NewToken()
	if err != nil {
		return err
	}

	err = s.repo.CreatePendingLogin(ctx, &PendingLogin{
		Email:     email,
		Token:     token,
		ExpiresAt: s.now().Add(LoginTokenTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to store pending login: %w", err)
	}

	link := s.magicLink("/verify-login", token)
	if err := s.sender.SendLoginLink(ctx, email, link); err != nil {
		return fmt.Errorf("failed to send login link: %w", err)
	}

	s.logger.Info("login link sent", "email", email)
	return nil
}

func (s *service) RequestRegistration(ctx context.Context, email string) error {
	token, err := NewToken()
	if err != nil {
		return err
	}

	err = s.repo.UpsertPendingRegistration(ctx, &PendingRegistration{
		Email:     email,
		Token:     token,
		ExpiresAt: s.now().Add(RegistrationTokenTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to store pending registration: %w", err)
	}

	link := s.magicLink("/auth/verify-registration", token)
	if err := s.sender.SendRegistrationLink(ctx, email, link); err != nil {
		return fmt.Errorf("failed to send registration link: %w", err)
	}

	s.logger.Info("registration link sent", "email", email)
	return nil
}

func (s *service) VerifyLogin(ctx context.Context, token string) (*Session, error) {
	email, err := s.repo.ConsumePendingLogin(ctx, token)
	if err != nil {
		return nil, err
	}

	cred, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}

	password, err := s.box.Decrypt(cred.PasswordCiphertext, cred.PasswordNonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt app password: %w", err)
	}

	account, err := s.pdsClient.CreateSession(ctx, cred.DID, password)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDS session: %w", err)
	}

	user := map[string]any{
		"did":    account.DID,
		"handle": account.Handle,
	}
	sessToken, err := s.IssueSession(ctx, account.DID, user, account.AccessJwt, account.RefreshJwt)
	if err != nil {
		return nil, err
	}

	return s.repo.GetSession(ctx, sessToken)
}

func (s *service) ConsumeRegistrationToken(ctx context.Context, token string) (string, error) {
	return s.repo.ConsumePendingRegistration(ctx, token)
}

func (s *service) IssueSession(ctx context.Context, did string, user map[string]any, accessJwt, refreshJwt string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("failed to encode session user: %w", err)
	}

	now := s.now().UTC()
	sess := &Session{
		Token:          token,
		DID:            did,
		UserJSON:       string(userJSON),
		AccessJwt:      accessJwt,
		RefreshJwt:     refreshJwt,
		CreatedAt:      now,
		ExpiresAt:      now.Add(SessionTTL),
		LastAccessedAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

func (s *service) Validate(ctx context.Context, token string) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	if sess.Expired(s.now()) {
		if err := s.repo.DeleteSession(ctx, token); err != nil {
			s.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, ErrTokenExpired
	}

	if err := s.repo.TouchSession(ctx, token, s.now().UTC()); err != nil {
		s.logger.Warn("failed to touch session", "error", err)
	}
	return sess, nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

// WithRefresh retries fn once after rotating an expired upstream token
// pair. The rotated pair is persisted before the retry so a crash between
// the two leaves a working session.
func (s *service) WithRefresh(ctx context.Context, sess *Session, fn func(accessJwt string) error) error {
	err := fn(sess.AccessJwt)
	if err == nil || !pds.IsRefreshable(err) {
		return err
	}

	pair, refreshErr := s.pdsClient.RefreshSession(ctx, sess.RefreshJwt)
	if refreshErr != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, refreshErr)
	}

	if err := s.repo.UpdateTokens(ctx, sess.Token, sess.DID, pair.AccessJwt, pair.RefreshJwt); err != nil {
		return fmt.Errorf("%w: failed to persist rotated tokens: %v", ErrRefreshFailed, err)
	}
	sess.AccessJwt = pair.AccessJwt
	sess.RefreshJwt = pair.RefreshJwt

	return fn(sess.AccessJwt)
}

func (s *service) magicLink(path, token string) string {
	return s.frontendURL + path + "?token=" + url.QueryEscape(token)
}
