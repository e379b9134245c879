package crypto

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAttestor(t *testing.T) *Attestor {
	t.Helper()
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	a, err := NewAttestor(seed)
	require.NoError(t, err)
	return a
}

func TestNewAttestor_SeedLength(t *testing.T) {
	_, err := NewAttestor([]byte("too short"))
	assert.Error(t, err)
}

func TestAttestor_SignVerify(t *testing.T) {
	a := testAttestor(t)

	sig := a.SignAttestation("abc123hash", "did:web:eid.example", "2026-01-02T03:04:05Z")
	require.NotEmpty(t, sig)

	assert.True(t, a.Verify("abc123hash", "did:web:eid.example", "2026-01-02T03:04:05Z", sig))

	// Altering any field of the canonical message invalidates the signature.
	assert.False(t, a.Verify("abc123hasX", "did:web:eid.example", "2026-01-02T03:04:05Z", sig))
	assert.False(t, a.Verify("abc123hash", "did:web:other.example", "2026-01-02T03:04:05Z", sig))
	assert.False(t, a.Verify("abc123hash", "did:web:eid.example", "2026-01-02T03:04:06Z", sig))
	assert.False(t, a.Verify("abc123hash", "did:web:eid.example", "2026-01-02T03:04:05Z", "not base64!!"))
}

func TestAttestor_PublicKeyMultibase(t *testing.T) {
	a := testAttestor(t)

	mb := a.PublicKeyMultibase()
	// base58btc multibase strings start with 'z'; the Ed25519 multicodec
	// prefix makes did:key-style strings start with "z6Mk".
	assert.True(t, strings.HasPrefix(mb, "z6Mk"), "got %q", mb)
}

func TestAttestor_DistinctSeedsDistinctKeys(t *testing.T) {
	a := testAttestor(t)
	b := testAttestor(t)
	assert.NotEqual(t, a.PublicKeyMultibase(), b.PublicKeyMultibase())

	sig := a.SignAttestation("h", "did:web:x", "t")
	assert.False(t, b.Verify("h", "did:web:x", "t", sig))
}
