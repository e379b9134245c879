package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Poltr/internal/core/sessions"
)

func TestSessionRepo_GetSession_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT session_token, did, user_json").
		WithArgs("no-such-token").
		WillReturnRows(sqlmock.NewRows([]string{"session_token"}))

	_, err = NewSessionRepository(db).GetSession(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, sessions.ErrInvalidToken)
}

func TestSessionRepo_GetSession_ReturnsExpiredRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expired := time.Now().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"session_token", "did", "user_json",
		"access_token", "refresh_token",
		"created_at", "expires_at", "last_accessed_at",
	}).AddRow(
		"tok", "did:plc:alice", `{"did":"did:plc:alice"}`,
		"access", "refresh",
		expired.Add(-sessions.SessionTTL), expired, expired,
	)

	mock.ExpectQuery("SELECT session_token, did, user_json").
		WithArgs("tok").
		WillReturnRows(rows)

	sess, err := NewSessionRepository(db).GetSession(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, sess.Expired(time.Now()), "repo returns the row as-is, expiry is the service's call")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_UpdateTokens_MatchesTokenAndDID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE auth_sessions").
		WithArgs("new-access", "new-refresh", "tok", "did:plc:alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewSessionRepository(db).UpdateTokens(context.Background(), "tok", "did:plc:alice", "new-access", "new-refresh")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_UpdateTokens_NoRowIsInvalidToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE auth_sessions").
		WithArgs("new-access", "new-refresh", "tok", "did:plc:mallory").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewSessionRepository(db).UpdateTokens(context.Background(), "tok", "did:plc:mallory", "new-access", "new-refresh")
	assert.ErrorIs(t, err, sessions.ErrInvalidToken)
}

func TestSessionRepo_ConsumePendingLogin_SingleUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("DELETE FROM auth_pending_logins").
		WithArgs("magic").
		WillReturnRows(sqlmock.NewRows([]string{"email", "expires_at"}).
			AddRow("alice@example.ch", time.Now().Add(10*time.Minute)))
	mock.ExpectQuery("DELETE FROM auth_pending_logins").
		WithArgs("magic").
		WillReturnRows(sqlmock.NewRows([]string{"email", "expires_at"}))

	repo := NewSessionRepository(db)

	email, err := repo.ConsumePendingLogin(context.Background(), "magic")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.ch", email)

	_, err = repo.ConsumePendingLogin(context.Background(), "magic")
	assert.ErrorIs(t, err, sessions.ErrInvalidToken)
}

func TestSessionRepo_ConsumePendingLogin_Expired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("DELETE FROM auth_pending_logins").
		WithArgs("stale").
		WillReturnRows(sqlmock.NewRows([]string{"email", "expires_at"}).
			AddRow("alice@example.ch", time.Now().Add(-time.Minute)))

	_, err = NewSessionRepository(db).ConsumePendingLogin(context.Background(), "stale")
	assert.ErrorIs(t, err, sessions.ErrTokenExpired)
}

func TestSessionRepo_UpsertPendingRegistration_ConflictOnEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expires := time.Now().Add(sessions.RegistrationTokenTTL)
	mock.ExpectExec("ON CONFLICT \\(email\\) DO UPDATE").
		WithArgs("bob@example.ch", "fresh-token", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewSessionRepository(db).UpsertPendingRegistration(context.Background(), &sessions.PendingRegistration{
		Email:     "bob@example.ch",
		Token:     "fresh-token",
		ExpiresAt: expires,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
