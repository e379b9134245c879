package arguments

import "context"

// Repository defines data access for arguments
type Repository interface {
	// ListByBallot returns non-deleted arguments for a ballot rkey,
	// oldest first.
	ListByBallot(ctx context.Context, ballotRKey string, limit int) ([]*Argument, error)

	// GetByURI retrieves one argument.
	// Returns ErrArgumentNotFound when absent or deleted.
	GetByURI(ctx context.Context, uri string) (*Argument, error)

	// ListPendingCrosspost returns arguments without an upstream mirror
	// whose parent ballot already has one, oldest first. The ballot's
	// mirror URI/CID are joined onto the rows.
	ListPendingCrosspost(ctx context.Context, limit int) ([]*Argument, error)

	// SetBskyPost records the upstream mirror. Guarded on
	// bsky_post_uri IS NULL for idempotence.
	SetBskyPost(ctx context.Context, uri, postURI, postCID string) error

	// ListNeedingInvitations returns preliminary arguments whose
	// non-deleted invitation count is below quorum, oldest first.
	ListNeedingInvitations(ctx context.Context, quorum, limit int) ([]*Argument, error)

	// ListApprovedNeedingCopy returns approved user arguments without a
	// governance copy yet.
	ListApprovedNeedingCopy(ctx context.Context, limit int) ([]*Argument, error)

	// SetGovernanceURI links the preliminary row to its governance copy.
	// Guarded on governance_uri IS NULL for idempotence.
	SetGovernanceURI(ctx context.Context, uri, governanceURI string) error
}
