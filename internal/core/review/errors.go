package review

import "errors"

var (
	// ErrNotInvited indicates the reviewer holds no invitation for the argument
	ErrNotInvited = errors.New("not invited to review this argument")

	// ErrAlreadyReviewed indicates a non-deleted response already exists
	ErrAlreadyReviewed = errors.New("argument already reviewed")

	// ErrInvalidVote indicates the vote is neither APPROVE nor REJECT
	ErrInvalidVote = errors.New("invalid review vote")

	// ErrJustificationRequired indicates a REJECT without justification
	ErrJustificationRequired = errors.New("justification required for rejection")

	// ErrArgumentNotFound indicates the argument does not exist
	ErrArgumentNotFound = errors.New("argument not found")
)
