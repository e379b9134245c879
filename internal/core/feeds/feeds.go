// Package feeds serves the ballot feed generator: the descriptor document
// and the post skeleton consumed by upstream feed clients.
package feeds

import (
	"context"
	"fmt"
	"time"
)

// FeedRKey names the single ballot feed this generator publishes.
const FeedRKey = "ballots"

// SkeletonItem is one feed entry: the upstream post mirroring a ballot.
type SkeletonItem struct {
	PostURI   string
	RKey      string
	IndexedAt time.Time
}

// Repository defines data access for the feed skeleton
type Repository interface {
	// ListSkeleton returns mirrored ballots newest first, starting after
	// the cursor position when given.
	ListSkeleton(ctx context.Context, after *SkeletonCursor, limit int) ([]SkeletonItem, error)
}

// Service builds feed generator responses.
type Service struct {
	repo      Repository
	serverDID string
}

// NewService wires the feed generator.
func NewService(repo Repository, serverDID string) *Service {
	return &Service{repo: repo, serverDID: serverDID}
}

// FeedURI returns the AT-URI of the ballot feed.
func (s *Service) FeedURI() string {
	return fmt.Sprintf("at://%s/app.bsky.feed.generator/%s", s.serverDID, FeedRKey)
}

// Describe returns the describeFeedGenerator document.
func (s *Service) Describe() map[string]any {
	return map[string]any{
		"did": s.serverDID,
		"feeds": []map[string]any{
			{"uri": s.FeedURI()},
		},
	}
}

// SkeletonPage is one page of feed entries.
type SkeletonPage struct {
	Feed   []map[string]any `json:"feed"`
	Cursor string           `json:"cursor,omitempty"`
}

// Skeleton returns a page of mirrored ballot posts. An unparseable cursor
// is reported as ErrBadCursor.
func (s *Service) Skeleton(ctx context.Context, cursor string, limit int) (*SkeletonPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var after *SkeletonCursor
	if cursor != "" {
		c, err := DecodeSkeletonCursor(cursor)
		if err != nil {
			return nil, err
		}
		after = &c
	}

	items, err := s.repo.ListSkeleton(ctx, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed skeleton: %w", err)
	}

	page := &SkeletonPage{Feed: make([]map[string]any, 0, len(items))}
	for _, item := range items {
		page.Feed = append(page.Feed, map[string]any{"post": item.PostURI})
	}

	// A full page gets a continuation cursor; a short page is the end.
	if len(items) == limit {
		last := items[len(items)-1]
		page.Cursor = SkeletonCursor{IndexedAt: last.IndexedAt, RKey: last.RKey}.Encode()
	}
	return page, nil
}
