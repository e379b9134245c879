package likes

import "context"

// Service defines the rating business logic, including the cross-like of
// mirrored ballots.
type Service interface {
	// Rate writes a platform like to the user's repo. If the subject is a
	// ballot with an upstream mirror, an upstream like is written too and
	// a pending row pre-seeded so the inverse path can find it.
	Rate(ctx context.Context, did, accessJwt string, subjectURI, subjectCID string) (*RateResult, error)

	// Unrate deletes the platform like and, when the row carries an
	// upstream like URI, the upstream like as well.
	Unrate(ctx context.Context, did, accessJwt string, likeURI string) error
}

// RateResult is the creation result handed back to the caller.
type RateResult struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// Repository defines data access for likes
type Repository interface {
	// UpsertPending inserts the synthetic pending row for a cross-like,
	// replacing any earlier pending row for the same (did, subject_uri).
	// The firehose indexer later swaps it for the real record row matched
	// on the same key.
	UpsertPending(ctx context.Context, like *Like) error

	// GetByURI retrieves a non-deleted like row, synthetic or real.
	GetByURI(ctx context.Context, uri string) (*Like, error)

	// GetByUserAndSubject retrieves the viewer's like on a subject.
	GetByUserAndSubject(ctx context.Context, did, subjectURI string) (*Like, error)

	// Delete removes a like row by URI.
	Delete(ctx context.Context, uri string) error
}
