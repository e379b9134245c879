package likes

import "errors"

var (
	// ErrLikeNotFound indicates no like row exists for the given key
	ErrLikeNotFound = errors.New("like not found")
)
