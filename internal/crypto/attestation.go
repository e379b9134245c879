package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/multiformats/go-multibase"
)

// ed25519PubPrefix is the multicodec varint prefix for an Ed25519 public
// key (0xed), as used in did:key and DID document verification methods.
var ed25519PubPrefix = []byte{0xed, 0x01}

// Attestor signs verification attestations with the service's Ed25519 key.
// The canonical message is "hash|issuerDID|timestamp"; verifiers rebuild it
// from the record fields.
type Attestor struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewAttestor derives the keypair from a 32-byte seed.
func NewAttestor(seed []byte) (*Attestor, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Attestor{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// String redacts the private key.
func (a *Attestor) String() string { return "Attestor{key: <redacted>}" }

// GoString redacts the private key from %#v formatting as well.
func (a *Attestor) GoString() string { return a.String() }

// SignAttestation signs the canonical attestation message and returns the
// signature as standard base64.
func (a *Attestor) SignAttestation(hash, issuerDID, timestamp string) string {
	msg := attestationMessage(hash, issuerDID, timestamp)
	sig := ed25519.Sign(a.priv, msg)
	return base64.StdEncoding.EncodeToString(sig)
}

// Verify checks a base64 signature over the canonical attestation message.
func (a *Attestor) Verify(hash, issuerDID, timestamp, sigB64 string) bool {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	return ed25519.Verify(a.pub, attestationMessage(hash, issuerDID, timestamp), sig)
}

// PublicKey returns the raw Ed25519 public key.
func (a *Attestor) PublicKey() ed25519.PublicKey { return a.pub }

// PublicKeyMultibase returns the multicodec-prefixed, base58btc-multibase
// encoded public key for publication in the DID document.
func (a *Attestor) PublicKeyMultibase() string {
	prefixed := append(append([]byte{}, ed25519PubPrefix...), a.pub...)
	// Base58BTC encoding cannot fail for non-empty input.
	encoded, _ := multibase.Encode(multibase.Base58BTC, prefixed)
	return encoded
}

func attestationMessage(hash, issuerDID, timestamp string) []byte {
	return []byte(hash + "|" + issuerDID + "|" + timestamp)
}
