package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Poltr/internal/core/arguments"
)

type postgresArgumentRepo struct {
	db *sql.DB
}

// NewArgumentRepository creates a new PostgreSQL argument repository
func NewArgumentRepository(db *sql.DB) arguments.Repository {
	return &postgresArgumentRepo{db: db}
}

const argumentColumns = `
	a.uri, a.cid, a.did, a.ballot_uri, a.ballot_rkey,
	a.title, COALESCE(a.body, ''), a.type, a.review_status,
	a.original_uri, a.governance_uri, a.bsky_post_uri, a.bsky_post_cid,
	a.like_count, a.comment_count, a.created_at, a.indexed_at, a.deleted`

func scanArgument(row interface{ Scan(...any) error }, withBallotMirror bool) (*arguments.Argument, error) {
	var a arguments.Argument
	dest := []any{
		&a.URI, &a.CID, &a.DID, &a.BallotURI, &a.BallotRKey,
		&a.Title, &a.Body, &a.Type, &a.ReviewStatus,
		&a.OriginalURI, &a.GovernanceURI, &a.BskyPostURI, &a.BskyPostCID,
		&a.LikeCount, &a.CommentCount, &a.CreatedAt, &a.IndexedAt, &a.Deleted,
	}
	if withBallotMirror {
		dest = append(dest, &a.BallotBskyPostURI, &a.BallotBskyPostCID)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *postgresArgumentRepo) ListByBallot(ctx context.Context, ballotRKey string, limit int) ([]*arguments.Argument, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM app_arguments a
		WHERE a.ballot_rkey = $1 AND a.deleted = false
		ORDER BY a.created_at ASC
		LIMIT $2
	`, argumentColumns)

	rows, err := r.db.QueryContext(ctx, query, ballotRKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list arguments: %w", err)
	}
	defer rows.Close()

	var out []*arguments.Argument
	for rows.Next() {
		a, err := scanArgument(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan argument: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *postgresArgumentRepo) GetByURI(ctx context.Context, uri string) (*arguments.Argument, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM app_arguments a
		WHERE a.uri = $1 AND a.deleted = false
	`, argumentColumns)

	a, err := scanArgument(r.db.QueryRowContext(ctx, query, uri), false)
	if err == sql.ErrNoRows {
		return nil, arguments.ErrArgumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get argument: %w", err)
	}
	return a, nil
}

// ListPendingCrosspost joins the parent ballot's mirror coordinates onto
// each row. Arguments whose ballot has no mirror fall out of the join.
func (r *postgresArgumentRepo) ListPendingCrosspost(ctx context.Context, limit int) ([]*arguments.Argument, error) {
	query := fmt.Sprintf(`
		SELECT %s, b.bsky_post_uri, COALESCE(b.bsky_post_cid, '')
		FROM app_arguments a
		JOIN app_ballots b ON a.ballot_uri = b.uri
		WHERE a.bsky_post_uri IS NULL AND a.deleted = false
		  AND b.bsky_post_uri IS NOT NULL
		ORDER BY a.created_at ASC
	`, argumentColumns)

	args := []any{}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending arguments: %w", err)
	}
	defer rows.Close()

	var out []*arguments.Argument
	for rows.Next() {
		a, err := scanArgument(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan argument: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *postgresArgumentRepo) SetBskyPost(ctx context.Context, uri, postURI, postCID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE app_arguments
		SET bsky_post_uri = $1, bsky_post_cid = $2
		WHERE uri = $3 AND bsky_post_uri IS NULL
	`, postURI, postCID, uri)
	if err != nil {
		return fmt.Errorf("failed to set argument mirror: %w", err)
	}
	return nil
}

// ListNeedingInvitations selects preliminary arguments whose open
// invitation count is still below quorum.
func (r *postgresArgumentRepo) ListNeedingInvitations(ctx context.Context, quorum, limit int) ([]*arguments.Argument, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM app_arguments a
		WHERE a.review_status = 'preliminary'
		  AND a.deleted = false
		  AND (
			SELECT COUNT(*) FROM app_review_invitations ri
			WHERE ri.argument_uri = a.uri AND NOT ri.deleted
		  ) < $1
		ORDER BY a.created_at ASC
		LIMIT $2
	`, argumentColumns)

	rows, err := r.db.QueryContext(ctx, query, quorum, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list arguments needing invitations: %w", err)
	}
	defer rows.Close()

	var out []*arguments.Argument
	for rows.Next() {
		a, err := scanArgument(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan argument: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListApprovedNeedingCopy selects approved user arguments still lacking
// their canonical governance copy.
func (r *postgresArgumentRepo) ListApprovedNeedingCopy(ctx context.Context, limit int) ([]*arguments.Argument, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM app_arguments a
		WHERE a.review_status = 'approved'
		  AND a.governance_uri IS NULL
		  AND a.original_uri IS NULL
		  AND a.deleted = false
		ORDER BY a.created_at ASC
		LIMIT $1
	`, argumentColumns)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved arguments: %w", err)
	}
	defer rows.Close()

	var out []*arguments.Argument
	for rows.Next() {
		a, err := scanArgument(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan argument: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *postgresArgumentRepo) SetGovernanceURI(ctx context.Context, uri, governanceURI string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE app_arguments
		SET governance_uri = $1, indexed_at = NOW()
		WHERE uri = $2 AND governance_uri IS NULL
	`, governanceURI, uri)
	if err != nil {
		return fmt.Errorf("failed to link governance copy: %w", err)
	}
	return nil
}
