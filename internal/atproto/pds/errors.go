package pds

import (
	"errors"
	"strings"
)

// Typed errors for PDS operations.
// These allow services to use errors.Is() for reliable error detection
// instead of fragile string matching at every call site.
var (
	// ErrEmailTaken indicates createAccount was rejected because the email
	// is already registered on the PDS.
	ErrEmailTaken = errors.New("email already taken on PDS")

	// ErrHandleTaken indicates createAccount was rejected because the
	// generated handle collides with an existing account.
	ErrHandleTaken = errors.New("handle already taken on PDS")

	// ErrExpiredToken indicates the access token has expired and the call
	// may succeed after a refreshSession.
	ErrExpiredToken = errors.New("access token expired")

	// ErrUnauthorized indicates invalid credentials (HTTP 401) where a
	// refresh will not help.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPDS is the generic wrapper for any other PDS-side failure.
	ErrPDS = errors.New("pds error")
)

// mapError classifies an error returned by the PDS into the typed errors
// above. The PDS reports failures as error-name strings in the response
// body; indigo surfaces them inside the wrapped error text, so detection
// falls back to substring matching, mirroring how the refresh path of
// other clients handles unwrapped transport errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Email already taken"):
		return errors.Join(ErrEmailTaken, err)
	case strings.Contains(msg, "Handle already taken"):
		return errors.Join(ErrHandleTaken, err)
	case strings.Contains(msg, "ExpiredToken"):
		return errors.Join(ErrExpiredToken, err)
	case strings.Contains(msg, "Unauthorized") || strings.Contains(msg, "401"):
		return errors.Join(ErrUnauthorized, err)
	default:
		return errors.Join(ErrPDS, err)
	}
}

// IsRefreshable reports whether retrying after a refreshSession might
// succeed.
func IsRefreshable(err error) bool {
	return errors.Is(err, ErrExpiredToken)
}
