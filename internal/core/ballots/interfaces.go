package ballots

import "context"

// Repository defines data access for ballots
type Repository interface {
	// List returns non-deleted ballots ordered by vote date descending,
	// newest created first among equal dates.
	List(ctx context.Context, params ListParams) ([]*Ballot, error)

	// GetByRKey retrieves one ballot by its record key.
	// Returns ErrBallotNotFound when absent or deleted.
	GetByRKey(ctx context.Context, rkey string, viewerDID string) (*Ballot, error)

	// GetByURI retrieves one ballot by AT-URI.
	GetByURI(ctx context.Context, uri string) (*Ballot, error)

	// ListPendingCrosspost returns governance ballots not yet mirrored
	// upstream, oldest first.
	ListPendingCrosspost(ctx context.Context, governanceDID string, limit int) ([]*Ballot, error)

	// SetBskyPost records the upstream mirror for a ballot. Only rows with
	// bsky_post_uri still NULL are updated, which makes mirroring
	// idempotent across worker ticks.
	SetBskyPost(ctx context.Context, uri, postURI, postCID string) error
}
