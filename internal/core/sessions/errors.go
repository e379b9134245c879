package sessions

import "errors"

var (
	// ErrInvalidToken indicates the token matches no pending or active row
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the token exists but is past its expiry
	ErrTokenExpired = errors.New("token expired")

	// ErrUserNotFound indicates no credential exists for the email
	ErrUserNotFound = errors.New("user not found")

	// ErrRefreshFailed indicates the upstream token pair could not be rotated
	ErrRefreshFailed = errors.New("session refresh failed")
)
