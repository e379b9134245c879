package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Poltr/internal/core/accounts"
)

func TestCredentialRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()
	ciphertext := []byte{0x01, 0x02}
	nonce := []byte{0x03, 0x04}

	mock.ExpectExec("INSERT INTO auth_creds").
		WithArgs("did:plc:alice", "userabc123.pds.example.ch", "alice@example.ch", "pds.internal",
			ciphertext, nonce, 7, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewCredentialRepository(db).Create(context.Background(), &accounts.Credential{
		DID:                "did:plc:alice",
		Handle:             "userabc123.pds.example.ch",
		Email:              "alice@example.ch",
		PDSHostname:        "pds.internal",
		PasswordCiphertext: ciphertext,
		PasswordNonce:      nonce,
		TemplateID:         7,
		CreatedAt:          now,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepo_GetByEmail_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM auth_creds").
		WithArgs("nobody@example.ch").
		WillReturnRows(sqlmock.NewRows([]string{"did"}))

	_, err = NewCredentialRepository(db).GetByEmail(context.Background(), "nobody@example.ch")
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)
}

func TestCredentialRepo_GetByDID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"did", "handle", "email", "pds_hostname",
		"pw_ciphertext", "pw_nonce", "pseudonym_template_id", "created_at",
	}).AddRow(
		"did:plc:bob", "userxyz.pds.example.ch", "bob@example.ch", "pds.internal",
		[]byte{0xAA}, []byte{0xBB}, 3, now,
	)

	mock.ExpectQuery("FROM auth_creds").
		WithArgs("did:plc:bob").
		WillReturnRows(rows)

	cred, err := NewCredentialRepository(db).GetByDID(context.Background(), "did:plc:bob")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.ch", cred.Email)
	assert.Equal(t, []byte{0xAA}, cred.PasswordCiphertext)
	assert.Equal(t, int64(3), cred.TemplateID)
}

func TestCredentialRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM auth_creds").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := NewCredentialRepository(db).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}
