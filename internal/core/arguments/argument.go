package arguments

import (
	"time"
)

// Review status values for arguments. The transition from preliminary to
// approved/rejected happens in the external firehose indexer once the
// review quorum is reached.
const (
	StatusPreliminary = "preliminary"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
)

// Argument sides.
const (
	SidePro    = "PRO"
	SideContra = "CONTRA"
)

// Argument is a locally indexed ballot argument. User-authored rows start
// preliminary; approved ones get a canonical governance copy whose
// OriginalURI points back here.
type Argument struct {
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	IndexedAt     time.Time `json:"indexedAt" db:"indexed_at"`
	URI           string    `json:"uri" db:"uri"`
	CID           string    `json:"cid" db:"cid"`
	DID           string    `json:"did" db:"did"`
	BallotURI     string    `json:"ballotUri" db:"ballot_uri"`
	BallotRKey    string    `json:"ballotRkey" db:"ballot_rkey"`
	Title         string    `json:"title" db:"title"`
	Body          string    `json:"body" db:"body"`
	Type          string    `json:"type" db:"type"`
	ReviewStatus  string    `json:"reviewStatus" db:"review_status"`
	OriginalURI   *string   `json:"originalUri,omitempty" db:"original_uri"`
	GovernanceURI *string   `json:"governanceUri,omitempty" db:"governance_uri"`
	BskyPostURI   *string   `json:"bskyPostUri,omitempty" db:"bsky_post_uri"`
	BskyPostCID   *string   `json:"bskyPostCid,omitempty" db:"bsky_post_cid"`
	LikeCount     int       `json:"likeCount" db:"like_count"`
	CommentCount  int       `json:"commentCount" db:"comment_count"`
	Deleted       bool      `json:"-" db:"deleted"`

	// BallotBskyPostURI/CID join in the parent ballot's upstream mirror
	// for the cross-post worker. Empty until the ballot is mirrored.
	BallotBskyPostURI string `json:"-" db:"-"`
	BallotBskyPostCID string `json:"-" db:"-"`
}

// Preliminary reports whether the argument still awaits review.
func (a *Argument) Preliminary() bool {
	return a.ReviewStatus == StatusPreliminary
}

// IsGovernanceCopy reports whether this row is the canonical copy of an
// approved argument.
func (a *Argument) IsGovernanceCopy() bool {
	return a.OriginalURI != nil && *a.OriginalURI != ""
}
