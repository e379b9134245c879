package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// genkeys generates the two secrets the AppView needs: the XSalsa20
// master key that encrypts stored app-passwords and the Ed25519 seed the
// attestation key is derived from.
//
// Usage:
//   go run cmd/genkeys/main.go
//
// The printed values go into MASTER_KEY_B64 and SIGNING_KEY_SEED_B64.
func main() {
	masterKey := make([]byte, 32)
	if _, err := rand.Read(masterKey); err != nil {
		log.Fatalf("Failed to generate master key: %v", err)
	}

	_, signingKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("Failed to generate signing key: %v", err)
	}
	seed := signingKey.Seed()

	// Sanity check: the public half must round-trip through JWK since
	// /.well-known/jwks.json serves it that way.
	if _, err := jwk.FromRaw(signingKey.Public().(ed25519.PublicKey)); err != nil {
		log.Fatalf("Generated key is not JWK-representable: %v", err)
	}

	fmt.Println("Add these to your environment:")
	fmt.Println()
	fmt.Printf("MASTER_KEY_B64=%s\n", base64.StdEncoding.EncodeToString(masterKey))
	fmt.Printf("SIGNING_KEY_SEED_B64=%s\n", base64.StdEncoding.EncodeToString(seed))
	fmt.Println()
	fmt.Println("Keep both values secret and never commit them.")
	fmt.Println("Rotating MASTER_KEY_B64 makes stored credentials undecryptable.")
}
