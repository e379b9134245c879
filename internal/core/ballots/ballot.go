package ballots

import (
	"time"
)

// Ballot is a locally indexed governance ballot record. Rows are written by
// the firehose indexer; bsky_post_* only ever by the cross-post worker.
type Ballot struct {
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	IndexedAt     time.Time  `json:"indexedAt" db:"indexed_at"`
	VoteDate      *time.Time `json:"voteDate,omitempty" db:"vote_date"`
	URI           string     `json:"uri" db:"uri"`
	CID           string     `json:"cid" db:"cid"`
	RKey          string     `json:"rkey" db:"rkey"`
	DID           string     `json:"did" db:"did"`
	Title         string     `json:"title" db:"title"`
	Description   string     `json:"description" db:"description"`
	RecordJSON    string     `json:"-" db:"record_json"`
	BskyPostURI   *string    `json:"bskyPostUri,omitempty" db:"bsky_post_uri"`
	BskyPostCID   *string    `json:"bskyPostCid,omitempty" db:"bsky_post_cid"`
	LikeCount     int        `json:"likeCount" db:"like_count"`
	ReplyCount    int        `json:"replyCount" db:"reply_count"`
	BookmarkCount int        `json:"bookmarkCount" db:"bookmark_count"`
	Deleted       bool       `json:"-" db:"deleted"`

	// ViewerLiked is filled by list queries when a viewer DID is supplied.
	ViewerLiked bool `json:"-" db:"-"`
}

// ListParams filters ballot listings.
type ListParams struct {
	// GovernanceDID restricts results to ballots authored by the
	// governance identity when non-empty.
	GovernanceDID string
	// Since keeps ballots whose vote date is on or after this instant.
	Since *time.Time
	// ViewerDID fills ViewerLiked when non-empty.
	ViewerDID string
	Limit     int
}
