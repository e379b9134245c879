package ballots

import "errors"

var (
	// ErrBallotNotFound indicates no ballot exists for the given key
	ErrBallotNotFound = errors.New("ballot not found")
)
