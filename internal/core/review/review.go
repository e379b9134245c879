package review

import (
	"encoding/json"
	"time"
)

// Record collections written under the governance identity.
const (
	InvitationCollection = "app.ch.poltr.review.invitation"
	ResponseCollection   = "app.ch.poltr.review.response"
	ArgumentCollection   = "app.ch.poltr.ballot.argument"
)

// Vote values for review responses.
const (
	VoteApprove = "APPROVE"
	VoteReject  = "REJECT"
)

// Invitation is an indexed reviewer invitation, authored by the governance
// identity and picked up from the firehose.
type Invitation struct {
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	URI         string    `json:"uri" db:"uri"`
	ArgumentURI string    `json:"argumentUri" db:"argument_uri"`
	InviteeDID  string    `json:"inviteeDid" db:"invitee_did"`
	Deleted     bool      `json:"-" db:"deleted"`
}

// Response is an indexed review response. At most one non-deleted row per
// (argument_uri, reviewer_did).
type Response struct {
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	URI           string          `json:"uri" db:"uri"`
	ArgumentURI   string          `json:"argumentUri" db:"argument_uri"`
	ReviewerDID   string          `json:"reviewerDid" db:"reviewer_did"`
	Criteria      json.RawMessage `json:"criteria" db:"criteria"`
	Vote          string          `json:"vote" db:"vote"`
	Justification string          `json:"justification,omitempty" db:"justification"`
	Deleted       bool            `json:"-" db:"deleted"`
}

// Criterion is one configurable review criterion.
type Criterion struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// PendingInvitation is an invitation joined with its argument for the
// reviewer's pending list.
type PendingInvitation struct {
	InvitationURI string          `json:"invitationUri"`
	ArgumentURI   string          `json:"argumentUri"`
	InvitedAt     time.Time       `json:"invitedAt"`
	Argument      PendingArgument `json:"argument"`
}

// PendingArgument is the argument summary shown to an invited reviewer.
type PendingArgument struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	Type       string `json:"type"`
	BallotURI  string `json:"ballotUri"`
	BallotRKey string `json:"ballotRkey"`
	AuthorDID  string `json:"authorDid"`
}

// Status summarizes an argument's review progress. Reviews is only
// populated for the argument's author.
type Status struct {
	ArgumentURI     string     `json:"argumentUri"`
	ReviewStatus    string     `json:"reviewStatus"`
	GovernanceURI   *string    `json:"governanceUri"`
	Quorum          int        `json:"quorum"`
	Approvals       int        `json:"approvals"`
	Rejections      int        `json:"rejections"`
	TotalReviews    int        `json:"totalReviews"`
	InvitationCount int        `json:"invitationCount"`
	Reviews         []Response `json:"reviews,omitempty"`
}

// Counts aggregates non-deleted responses per argument.
type Counts struct {
	Approvals  int
	Rejections int
	Total      int
}

// Approvable applies the quorum rule: enough approvals and not a single
// rejection. Kept in one place so the promotion logic stays auditable.
func (c Counts) Approvable(quorum int) bool {
	return c.Approvals >= quorum && c.Rejections == 0
}
