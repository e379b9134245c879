package feeds

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkeletonCursor_RoundTrip(t *testing.T) {
	c := SkeletonCursor{
		IndexedAt: time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC),
		RKey:      "3kballotxyz",
	}

	encoded := c.Encode()
	assert.Equal(t, "2026-08-24T10:30:00Z::3kballotxyz", encoded)

	decoded, err := DecodeSkeletonCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestDecodeSkeletonCursor_Malformed(t *testing.T) {
	for _, bad := range []string{"", "no-separator", "2026-08-24T10:30:00Z::", "not-a-date::rkey"} {
		_, err := DecodeSkeletonCursor(bad)
		assert.ErrorIs(t, err, ErrBadCursor, bad)
	}
}

func TestListCursor_RoundTrip(t *testing.T) {
	c := ListCursor{Sort: "newest", Primary: "2026-08-24T10:30:00Z", RKey: "3kx"}

	decoded, err := DecodeListCursor(c.Encode())
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

type fakeFeedRepo struct {
	items []SkeletonItem
	after *SkeletonCursor
}

func (f *fakeFeedRepo) ListSkeleton(ctx context.Context, after *SkeletonCursor, limit int) ([]SkeletonItem, error) {
	f.after = after
	if len(f.items) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func TestDescribe(t *testing.T) {
	svc := NewService(&fakeFeedRepo{}, "did:web:poltr.ch")

	doc := svc.Describe()
	assert.Equal(t, "did:web:poltr.ch", doc["did"])
	feeds := doc["feeds"].([]map[string]any)
	require.Len(t, feeds, 1)
	assert.Equal(t, "at://did:web:poltr.ch/app.bsky.feed.generator/ballots", feeds[0]["uri"])
}

func TestSkeleton_PageAndCursor(t *testing.T) {
	repo := &fakeFeedRepo{}
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		repo.items = append(repo.items, SkeletonItem{
			PostURI:   "at://did:plc:governance/app.bsky.feed.post/3kp" + string(rune('a'+i)),
			RKey:      "3kb" + string(rune('a'+i)),
			IndexedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}
	svc := NewService(repo, "did:web:poltr.ch")

	page, err := svc.Skeleton(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, page.Feed, 2)
	assert.Equal(t, "at://did:plc:governance/app.bsky.feed.post/3kpa", page.Feed[0]["post"])

	// Full page carries a continuation cursor at the last row.
	require.NotEmpty(t, page.Cursor)
	decoded, err := DecodeSkeletonCursor(page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "3kbb", decoded.RKey)

	// Short page ends the feed.
	repo.items = repo.items[:1]
	page, err = svc.Skeleton(context.Background(), page.Cursor, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Cursor)
	require.NotNil(t, repo.after)
	assert.Equal(t, "3kbb", repo.after.RKey)
}

func TestSkeleton_BadCursor(t *testing.T) {
	svc := NewService(&fakeFeedRepo{}, "did:web:poltr.ch")

	_, err := svc.Skeleton(context.Background(), "garbage", 10)
	assert.ErrorIs(t, err, ErrBadCursor)
}
