package arguments

import "errors"

var (
	// ErrArgumentNotFound indicates no argument exists for the given URI
	ErrArgumentNotFound = errors.New("argument not found")
)
