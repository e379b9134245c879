package review

import (
	"context"
	"encoding/json"

	"Poltr/internal/atproto/pds"
)

// Service defines the review business logic reachable over HTTP
type Service interface {
	// Pending lists invitations awaiting a response from the reviewer.
	Pending(ctx context.Context, reviewerDID string) ([]PendingInvitation, error)

	// Submit validates the guardrails and writes the response record
	// under the governance identity. Returns the record URI.
	Submit(ctx context.Context, reviewerDID string, req SubmitRequest) (string, error)

	// Status summarizes review progress. Individual reviews are included
	// only when viewerDID is the argument's author.
	Status(ctx context.Context, viewerDID, argumentURI string) (*Status, error)

	// Criteria returns the configured criteria list.
	Criteria() []Criterion
}

// SubmitRequest is a review submission.
type SubmitRequest struct {
	ArgumentURI   string          `json:"argumentUri"`
	Criteria      json.RawMessage `json:"criteria"`
	Vote          string          `json:"vote"`
	Justification string          `json:"justification"`
}

// Repository defines data access for review invitations and responses.
// Both tables are populated by the firehose indexer; this side only reads.
type Repository interface {
	// ListPendingForReviewer joins open invitations with their preliminary
	// arguments, excluding ones the reviewer already answered.
	ListPendingForReviewer(ctx context.Context, reviewerDID string) ([]PendingInvitation, error)

	// InvitationExists reports a non-deleted invitation for the pair.
	InvitationExists(ctx context.Context, argumentURI, inviteeDID string) (bool, error)

	// ResponseExists reports a non-deleted response for the pair.
	ResponseExists(ctx context.Context, argumentURI, reviewerDID string) (bool, error)

	// CountInvitations counts non-deleted invitations for an argument.
	CountInvitations(ctx context.Context, argumentURI string) (int, error)

	// EligibleReviewers returns DIDs holding a non-expired session,
	// excluding the author and anyone already invited for the argument.
	EligibleReviewers(ctx context.Context, argumentURI, authorDID string) ([]string, error)

	// CountResponses aggregates non-deleted responses for an argument.
	CountResponses(ctx context.Context, argumentURI string) (Counts, error)

	// ListResponses returns non-deleted responses, oldest first.
	ListResponses(ctx context.Context, argumentURI string) ([]Response, error)
}

// GovernanceWriter is the slice of the governance identity the review side
// needs. Satisfied by *governance.Identity.
type GovernanceWriter interface {
	DID() string
	CreateRecord(ctx context.Context, collection string, record any) (*pds.RecordResult, error)
}
