package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Poltr/internal/core/review"
)

type postgresReviewRepo struct {
	db *sql.DB
}

// NewReviewRepository creates a new PostgreSQL review repository
func NewReviewRepository(db *sql.DB) review.Repository {
	return &postgresReviewRepo{db: db}
}

// ListPendingForReviewer joins open invitations with their preliminary
// arguments, skipping ones the reviewer already answered.
func (r *postgresReviewRepo) ListPendingForReviewer(ctx context.Context, reviewerDID string) ([]review.PendingInvitation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ri.uri, ri.argument_uri, ri.created_at,
		       a.title, COALESCE(a.body, ''), a.type, a.ballot_uri, a.ballot_rkey, a.did
		FROM app_review_invitations ri
		JOIN app_arguments a ON a.uri = ri.argument_uri AND NOT a.deleted
		WHERE ri.invitee_did = $1
		  AND NOT ri.deleted
		  AND a.review_status = 'preliminary'
		  AND NOT EXISTS (
			SELECT 1 FROM app_review_responses rr
			WHERE rr.argument_uri = ri.argument_uri
			  AND rr.reviewer_did = $1
			  AND NOT rr.deleted
		  )
		ORDER BY ri.created_at ASC
	`, reviewerDID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}
	defer rows.Close()

	var out []review.PendingInvitation
	for rows.Next() {
		var inv review.PendingInvitation
		err := rows.Scan(
			&inv.InvitationURI, &inv.ArgumentURI, &inv.InvitedAt,
			&inv.Argument.Title, &inv.Argument.Body, &inv.Argument.Type,
			&inv.Argument.BallotURI, &inv.Argument.BallotRKey, &inv.Argument.AuthorDID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *postgresReviewRepo) InvitationExists(ctx context.Context, argumentURI, inviteeDID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM app_review_invitations
			WHERE argument_uri = $1 AND invitee_did = $2 AND NOT deleted
		)
	`, argumentURI, inviteeDID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check invitation: %w", err)
	}
	return exists, nil
}

func (r *postgresReviewRepo) ResponseExists(ctx context.Context, argumentURI, reviewerDID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM app_review_responses
			WHERE argument_uri = $1 AND reviewer_did = $2 AND NOT deleted
		)
	`, argumentURI, reviewerDID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check response: %w", err)
	}
	return exists, nil
}

func (r *postgresReviewRepo) CountInvitations(ctx context.Context, argumentURI string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM app_review_invitations
		WHERE argument_uri = $1 AND NOT deleted
	`, argumentURI).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count invitations: %w", err)
	}
	return count, nil
}

// EligibleReviewers implements the active-user heuristic: any DID holding
// a non-expired session, minus the author and already-invited DIDs.
func (r *postgresReviewRepo) EligibleReviewers(ctx context.Context, argumentURI, authorDID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT s.did
		FROM auth_sessions s
		WHERE s.expires_at > NOW()
		  AND s.did != $1
		  AND s.did NOT IN (
			SELECT ri.invitee_did FROM app_review_invitations ri
			WHERE ri.argument_uri = $2 AND NOT ri.deleted
		  )
	`, authorDID, argumentURI)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible reviewers: %w", err)
	}
	defer rows.Close()

	var dids []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, fmt.Errorf("failed to scan reviewer DID: %w", err)
		}
		dids = append(dids, did)
	}
	return dids, rows.Err()
}

func (r *postgresReviewRepo) CountResponses(ctx context.Context, argumentURI string) (review.Counts, error) {
	var c review.Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE vote = 'APPROVE'),
			COUNT(*) FILTER (WHERE vote = 'REJECT'),
			COUNT(*)
		FROM app_review_responses
		WHERE argument_uri = $1 AND NOT deleted
	`, argumentURI).Scan(&c.Approvals, &c.Rejections, &c.Total)
	if err != nil {
		return review.Counts{}, fmt.Errorf("failed to count responses: %w", err)
	}
	return c, nil
}

func (r *postgresReviewRepo) ListResponses(ctx context.Context, argumentURI string) ([]review.Response, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uri, argument_uri, reviewer_did, criteria, vote,
		       COALESCE(justification, ''), created_at
		FROM app_review_responses
		WHERE argument_uri = $1 AND NOT deleted
		ORDER BY created_at ASC
	`, argumentURI)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var out []review.Response
	for rows.Next() {
		var resp review.Response
		err := rows.Scan(
			&resp.URI, &resp.ArgumentURI, &resp.ReviewerDID, &resp.Criteria,
			&resp.Vote, &resp.Justification, &resp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}
