package routes

import (
	"github.com/go-chi/chi/v5"

	"Poltr/internal/api/handlers/wellknown"
)

// RegisterWellKnownRoutes registers RFC 8615 well-known URI endpoints:
// the service DID document, the attestation key set, and lexicon schemas.
func RegisterWellKnownRoutes(r chi.Router, h *wellknown.Handler) {
	r.Get("/.well-known/did.json", h.HandleDIDDocument)
	r.Get("/.well-known/jwks.json", h.HandleJWKS)
	r.Get("/.well-known/lexicons/app/info/poltr/eid/verification.json", h.HandleVerificationLexicon)
}
