package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Poltr/internal/core/likes"
)

type postgresLikeRepo struct {
	db *sql.DB
}

// NewLikeRepository creates a new PostgreSQL like repository
func NewLikeRepository(db *sql.DB) likes.Repository {
	return &postgresLikeRepo{db: db}
}

// UpsertPending pre-seeds the cross-like row. The (did, subject_uri) key
// must match the indexer's upsert behavior or the delete path stops
// finding the upstream like.
func (r *postgresLikeRepo) UpsertPending(ctx context.Context, like *likes.Like) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_likes (uri, did, subject_uri, subject_cid, bsky_like_uri, created_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, false)
		ON CONFLICT (did, subject_uri) DO UPDATE
		SET bsky_like_uri = EXCLUDED.bsky_like_uri, deleted = false
	`, like.URI, like.DID, like.SubjectURI, like.SubjectCID, like.BskyLikeURI, like.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert pending like: %w", err)
	}
	return nil
}

func (r *postgresLikeRepo) GetByURI(ctx context.Context, uri string) (*likes.Like, error) {
	return r.get(ctx, "uri = $1", uri)
}

func (r *postgresLikeRepo) GetByUserAndSubject(ctx context.Context, did, subjectURI string) (*likes.Like, error) {
	return r.get(ctx, "did = $1 AND subject_uri = $2", did, subjectURI)
}

func (r *postgresLikeRepo) get(ctx context.Context, where string, args ...any) (*likes.Like, error) {
	query := fmt.Sprintf(`
		SELECT uri, did, subject_uri, COALESCE(subject_cid, ''), bsky_like_uri, created_at, deleted
		FROM app_likes
		WHERE %s AND NOT deleted
	`, where)

	var like likes.Like
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&like.URI, &like.DID, &like.SubjectURI, &like.SubjectCID,
		&like.BskyLikeURI, &like.CreatedAt, &like.Deleted,
	)
	if err == sql.ErrNoRows {
		return nil, likes.ErrLikeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get like: %w", err)
	}
	return &like, nil
}

func (r *postgresLikeRepo) Delete(ctx context.Context, uri string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE app_likes SET deleted = true WHERE uri = $1", uri)
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}
