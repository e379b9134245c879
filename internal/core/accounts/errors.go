package accounts

import "errors"

var (
	// ErrEmailTaken indicates the email already has an account on the PDS
	ErrEmailTaken = errors.New("email already taken")

	// ErrUserNotFound indicates no credential exists for the given email or DID
	ErrUserNotFound = errors.New("user not found")

	// ErrAccountLimitReached indicates the configured MAX_ACCOUNTS cap is hit
	ErrAccountLimitReached = errors.New("account limit reached")

	// ErrRegistrationFailed indicates the saga failed and was compensated
	ErrRegistrationFailed = errors.New("registration failed")
)
