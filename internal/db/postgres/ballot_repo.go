package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"Poltr/internal/core/ballots"
)

type postgresBallotRepo struct {
	db *sql.DB
}

// NewBallotRepository creates a new PostgreSQL ballot repository
func NewBallotRepository(db *sql.DB) ballots.Repository {
	return &postgresBallotRepo{db: db}
}

const ballotColumns = `
	b.uri, b.cid, b.rkey, b.did, b.title, COALESCE(b.description, ''),
	b.vote_date, COALESCE(b.record_json, ''), b.bsky_post_uri, b.bsky_post_cid,
	b.like_count, b.reply_count, b.bookmark_count,
	b.created_at, b.indexed_at, b.deleted`

func scanBallot(row interface{ Scan(...any) error }, withViewer bool) (*ballots.Ballot, error) {
	var b ballots.Ballot
	dest := []any{
		&b.URI, &b.CID, &b.RKey, &b.DID, &b.Title, &b.Description,
		&b.VoteDate, &b.RecordJSON, &b.BskyPostURI, &b.BskyPostCID,
		&b.LikeCount, &b.ReplyCount, &b.BookmarkCount,
		&b.CreatedAt, &b.IndexedAt, &b.Deleted,
	}
	if withViewer {
		dest = append(dest, &b.ViewerLiked)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns non-deleted ballots, vote date descending with NULLs last,
// newest created first among equals.
func (r *postgresBallotRepo) List(ctx context.Context, params ballots.ListParams) ([]*ballots.Ballot, error) {
	var args []any
	where := []string{"b.deleted = false"}

	if params.GovernanceDID != "" {
		args = append(args, params.GovernanceDID)
		where = append(where, fmt.Sprintf("b.did = $%d", len(args)))
	}
	if params.Since != nil {
		args = append(args, *params.Since)
		where = append(where, fmt.Sprintf("b.vote_date >= $%d", len(args)))
	}

	viewerSelect := ", false AS viewer_liked"
	if params.ViewerDID != "" {
		args = append(args, params.ViewerDID)
		viewerSelect = fmt.Sprintf(`,
			EXISTS(
				SELECT 1 FROM app_likes l
				WHERE l.subject_uri = b.uri AND l.did = $%d AND NOT l.deleted
			) AS viewer_liked`, len(args))
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s%s
		FROM app_ballots b
		WHERE %s
		ORDER BY b.vote_date DESC NULLS LAST, b.created_at DESC
		LIMIT $%d
	`, ballotColumns, viewerSelect, strings.Join(where, " AND "), len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ballots: %w", err)
	}
	defer rows.Close()

	var out []*ballots.Ballot
	for rows.Next() {
		b, err := scanBallot(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *postgresBallotRepo) GetByRKey(ctx context.Context, rkey string, viewerDID string) (*ballots.Ballot, error) {
	query := fmt.Sprintf(`
		SELECT %s,
			EXISTS(
				SELECT 1 FROM app_likes l
				WHERE l.subject_uri = b.uri AND l.did = $2 AND NOT l.deleted
			) AS viewer_liked
		FROM app_ballots b
		WHERE b.rkey = $1 AND b.deleted = false
	`, ballotColumns)

	b, err := scanBallot(r.db.QueryRowContext(ctx, query, rkey, viewerDID), true)
	if err == sql.ErrNoRows {
		return nil, ballots.ErrBallotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ballot: %w", err)
	}
	return b, nil
}

func (r *postgresBallotRepo) GetByURI(ctx context.Context, uri string) (*ballots.Ballot, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM app_ballots b
		WHERE b.uri = $1 AND b.deleted = false
	`, ballotColumns)

	b, err := scanBallot(r.db.QueryRowContext(ctx, query, uri), false)
	if err == sql.ErrNoRows {
		return nil, ballots.ErrBallotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ballot: %w", err)
	}
	return b, nil
}

// ListPendingCrosspost selects governance ballots without an upstream
// mirror, oldest first. limit <= 0 means no limit.
func (r *postgresBallotRepo) ListPendingCrosspost(ctx context.Context, governanceDID string, limit int) ([]*ballots.Ballot, error) {
	query := fmt.Sprintf(`
		SELECT %s, false AS viewer_liked
		FROM app_ballots b
		WHERE b.bsky_post_uri IS NULL AND b.deleted = false AND b.did = $1
		ORDER BY b.created_at ASC
	`, ballotColumns)

	args := []any{governanceDID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending ballots: %w", err)
	}
	defer rows.Close()

	var out []*ballots.Ballot
	for rows.Next() {
		b, err := scanBallot(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetBskyPost records the mirror. The IS NULL guard is the idempotence
// point between worker ticks.
func (r *postgresBallotRepo) SetBskyPost(ctx context.Context, uri, postURI, postCID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE app_ballots
		SET bsky_post_uri = $1, bsky_post_cid = $2
		WHERE uri = $3 AND bsky_post_uri IS NULL
	`, postURI, postCID, uri)
	if err != nil {
		return fmt.Errorf("failed to set ballot mirror: %w", err)
	}
	return nil
}
