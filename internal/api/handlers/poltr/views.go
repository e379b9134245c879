package poltr

import (
	"encoding/json"
	"time"

	"Poltr/internal/core/arguments"
	"Poltr/internal/core/ballots"
)

// ballotView renders a ballot in the list/get envelope. Nil-valued fields
// are elided rather than serialized as null, matching upstream view
// conventions.
func ballotView(b *ballots.Ballot) map[string]any {
	record := map[string]any{}
	if b.RecordJSON != "" {
		// Indexed raw record wins; fall back to reassembling from columns.
		if err := json.Unmarshal([]byte(b.RecordJSON), &record); err != nil {
			record = map[string]any{}
		}
	}
	if len(record) == 0 {
		record["$type"] = "app.ch.poltr.ballot.entry"
		record["title"] = b.Title
		if b.Description != "" {
			record["description"] = b.Description
		}
		if b.VoteDate != nil {
			record["voteDate"] = b.VoteDate.UTC().Format(time.RFC3339)
		}
		record["createdAt"] = b.CreatedAt.UTC().Format(time.RFC3339)
	}

	view := map[string]any{
		"uri":           b.URI,
		"cid":           b.CID,
		"rkey":          b.RKey,
		"author":        map[string]any{"did": b.DID},
		"record":        record,
		"indexedAt":     b.IndexedAt.UTC().Format(time.RFC3339),
		"likeCount":     b.LikeCount,
		"replyCount":    b.ReplyCount,
		"bookmarkCount": b.BookmarkCount,
	}
	if b.BskyPostURI != nil {
		view["bskyPostUri"] = *b.BskyPostURI
	}
	if b.ViewerLiked {
		view["viewer"] = map[string]any{"liked": true}
	}
	return view
}

func argumentView(a *arguments.Argument) map[string]any {
	view := map[string]any{
		"uri":          a.URI,
		"cid":          a.CID,
		"author":       map[string]any{"did": a.DID},
		"ballotUri":    a.BallotURI,
		"ballotRkey":   a.BallotRKey,
		"title":        a.Title,
		"type":         a.Type,
		"reviewStatus": a.ReviewStatus,
		"likeCount":    a.LikeCount,
		"commentCount": a.CommentCount,
		"createdAt":    a.CreatedAt.UTC().Format(time.RFC3339),
		"indexedAt":    a.IndexedAt.UTC().Format(time.RFC3339),
	}
	if a.Body != "" {
		view["body"] = a.Body
	}
	if a.OriginalURI != nil {
		view["originalUri"] = *a.OriginalURI
	}
	if a.GovernanceURI != nil {
		view["governanceUri"] = *a.GovernanceURI
	}
	if a.BskyPostURI != nil {
		view["bskyPostUri"] = *a.BskyPostURI
	}
	return view
}
