// Package wellknown serves the service identity documents: the DID
// document, the published attestation key set, and lexicon schemas.
package wellknown

import (
	"log/slog"
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"Poltr/internal/api/handlers"
	"Poltr/internal/crypto"
)

// Handler serves the well-known endpoint group.
type Handler struct {
	serverDID string
	attestor  *crypto.Attestor
	logger    *slog.Logger
}

// NewHandler creates the well-known handler group.
func NewHandler(serverDID string, attestor *crypto.Attestor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{serverDID: serverDID, attestor: attestor, logger: logger}
}

// HandleDIDDocument serves the service DID document, including the
// attestation verification key.
// GET /.well-known/did.json
func (h *Handler) HandleDIDDocument(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"@context": []string{
			"https://www.w3.org/ns/did/v1",
			"https://w3id.org/security/multikey/v1",
		},
		"id": h.serverDID,
		"verificationMethod": []map[string]any{
			{
				"id":                 h.serverDID + "#attestation",
				"type":               "Multikey",
				"controller":         h.serverDID,
				"publicKeyMultibase": h.attestor.PublicKeyMultibase(),
			},
		},
	}
	handlers.WriteJSON(w, http.StatusOK, doc)
}

// HandleJWKS serves the attestation public key as a JWK set.
// GET /.well-known/jwks.json
func (h *Handler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	key, err := jwk.FromRaw(h.attestor.PublicKey())
	if err != nil {
		h.logger.Error("failed to build JWK", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to build key set")
		return
	}
	_ = key.Set(jwk.KeyIDKey, "attestation")
	_ = key.Set(jwk.KeyUsageKey, "sig")

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		h.logger.Error("failed to build JWKS", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to build key set")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, set)
}

// HandleVerificationLexicon serves the verification record schema.
// GET /.well-known/lexicons/app/info/poltr/eid/verification.json
func (h *Handler) HandleVerificationLexicon(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"lexicon": 1,
		"id":      "app.info.poltr.eid.verification",
		"defs": map[string]any{
			"main": map[string]any{
				"type":        "record",
				"description": "E-ID verification flag for a user.",
				"key":         "literal",
				"record": map[string]any{
					"type":     "object",
					"required": []string{"eidIssuer", "verifiedBy", "verifiedAt"},
					"properties": map[string]any{
						"eidIssuer":  map[string]any{"type": "string", "format": "did"},
						"eidHash":    map[string]any{"type": "string"},
						"verifiedBy": map[string]any{"type": "string", "format": "did"},
						"verifiedAt": map[string]any{"type": "string", "format": "datetime"},
					},
				},
			},
		},
	})
}
