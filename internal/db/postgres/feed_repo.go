package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Poltr/internal/core/feeds"
)

type postgresFeedRepo struct {
	db *sql.DB
}

// NewFeedRepository creates a new PostgreSQL feed skeleton repository
func NewFeedRepository(db *sql.DB) feeds.Repository {
	return &postgresFeedRepo{db: db}
}

// ListSkeleton pages mirrored ballots newest first, keyed on
// (indexed_at, rkey) so ties page deterministically.
func (r *postgresFeedRepo) ListSkeleton(ctx context.Context, after *feeds.SkeletonCursor, limit int) ([]feeds.SkeletonItem, error) {
	query := `
		SELECT b.bsky_post_uri, b.rkey, b.indexed_at
		FROM app_ballots b
		WHERE b.bsky_post_uri IS NOT NULL AND b.deleted = false
	`
	args := []any{}
	if after != nil {
		args = append(args, after.IndexedAt, after.RKey)
		query += " AND (b.indexed_at, b.rkey) < ($1, $2)"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY b.indexed_at DESC, b.rkey DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed skeleton: %w", err)
	}
	defer rows.Close()

	var out []feeds.SkeletonItem
	for rows.Next() {
		var item feeds.SkeletonItem
		if err := rows.Scan(&item.PostURI, &item.RKey, &item.IndexedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
