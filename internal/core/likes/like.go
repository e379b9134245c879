package likes

import (
	"fmt"
	"time"
)

// RatingCollection is the platform like record collection in user repos.
const RatingCollection = "app.ch.poltr.content.rating"

// UpstreamLikeCollection is the upstream like collection used for
// cross-likes of mirrored ballots.
const UpstreamLikeCollection = "app.bsky.feed.like"

// Like is a locally indexed rating. Rows written by the firehose indexer
// carry the real record URI; rows pre-seeded by the cross-like path carry
// a synthetic "pending:" URI until the indexer replaces them.
type Like struct {
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	URI         string    `json:"uri" db:"uri"`
	DID         string    `json:"did" db:"did"`
	SubjectURI  string    `json:"subjectUri" db:"subject_uri"`
	SubjectCID  string    `json:"subjectCid" db:"subject_cid"`
	BskyLikeURI *string   `json:"bskyLikeUri,omitempty" db:"bsky_like_uri"`
	Deleted     bool      `json:"-" db:"deleted"`
}

// PendingURI builds the synthetic key for a cross-like row awaiting
// indexer reconciliation on (did, subject_uri).
func PendingURI(did, subjectURI string) string {
	return fmt.Sprintf("pending:%s:%s", did, subjectURI)
}
