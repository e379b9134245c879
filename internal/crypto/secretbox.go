// Package crypto provides the secret box used to encrypt stored PDS
// app-passwords at rest, and the Ed25519 attestation signer whose public
// key is published in the service DID document.
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the symmetric master key length.
	KeySize = 32
	// NonceSize is the XSalsa20-Poly1305 nonce length.
	NonceSize = 24
)

// ErrDecrypt indicates an authentication failure during decryption: wrong
// master key or corrupted ciphertext. Callers must treat this as fatal for
// the request; it is never equivalent to an empty plaintext.
var ErrDecrypt = errors.New("decryption failed (wrong key or corrupted data)")

// SecretBox performs authenticated symmetric encryption of app-passwords.
// The zero value is unusable; construct with NewSecretBox.
type SecretBox struct {
	key [KeySize]byte
}

// NewSecretBox wraps a 32-byte master key.
func NewSecretBox(key [KeySize]byte) *SecretBox {
	return &SecretBox{key: key}
}

// String redacts the key so a SecretBox can never leak through logging.
func (b *SecretBox) String() string { return "SecretBox{key: <redacted>}" }

// GoString redacts the key from %#v formatting as well.
func (b *SecretBox) GoString() string { return b.String() }

// Encrypt seals plaintext under a fresh random nonce.
// Returns ciphertext (including the Poly1305 tag) and the nonce separately,
// matching the two-column storage layout of the credentials table.
func (b *SecretBox) Encrypt(plaintext string) (ciphertext, nonce []byte, err error) {
	var n [NonceSize]byte
	if _, err := rand.Read(n[:]); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ct := secretbox.Seal(nil, []byte(plaintext), &n, &b.key)
	return ct, n[:], nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (b *SecretBox) Decrypt(ciphertext, nonce []byte) (string, error) {
	if len(nonce) != NonceSize {
		return "", fmt.Errorf("invalid nonce length %d: %w", len(nonce), ErrDecrypt)
	}

	var n [NonceSize]byte
	copy(n[:], nonce)

	plaintext, ok := secretbox.Open(nil, ciphertext, &n, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
