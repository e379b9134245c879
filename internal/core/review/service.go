package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Poltr/internal/core/arguments"
)

type service struct {
	repo       Repository
	arguments  arguments.Repository
	governance GovernanceWriter
	quorum     int
	criteria   []Criterion
	logger     *slog.Logger
	now        func() time.Time
}

var _ Service = (*service)(nil)

// NewService wires the review submission and status logic.
func NewService(
	repo Repository,
	argumentRepo arguments.Repository,
	governance GovernanceWriter,
	quorum int,
	criteria []Criterion,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		repo:       repo,
		arguments:  argumentRepo,
		governance: governance,
		quorum:     quorum,
		criteria:   criteria,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *service) Pending(ctx context.Context, reviewerDID string) ([]PendingInvitation, error) {
	return s.repo.ListPendingForReviewer(ctx, reviewerDID)
}

func (s *service) Submit(ctx context.Context, reviewerDID string, req SubmitRequest) (string, error) {
	if req.Vote != VoteApprove && req.Vote != VoteReject {
		return "", ErrInvalidVote
	}
	if req.Vote == VoteReject && req.Justification == "" {
		return "", ErrJustificationRequired
	}

	invited, err := s.repo.InvitationExists(ctx, req.ArgumentURI, reviewerDID)
	if err != nil {
		return "", fmt.Errorf("failed to check invitation: %w", err)
	}
	if !invited {
		return "", ErrNotInvited
	}

	reviewed, err := s.repo.ResponseExists(ctx, req.ArgumentURI, reviewerDID)
	if err != nil {
		return "", fmt.Errorf("failed to check existing response: %w", err)
	}
	if reviewed {
		return "", ErrAlreadyReviewed
	}

	record := map[string]any{
		"$type":     ResponseCollection,
		"argument":  req.ArgumentURI,
		"reviewer":  reviewerDID,
		"criteria":  req.Criteria,
		"vote":      req.Vote,
		"createdAt": s.now().UTC().Format(time.RFC3339),
	}
	if req.Justification != "" {
		record["justification"] = req.Justification
	}

	// The response lives on the governance PDS; the indexer brings it back
	// into app_review_responses and runs the quorum check.
	result, err := s.governance.CreateRecord(ctx, ResponseCollection, record)
	if err != nil {
		return "", fmt.Errorf("failed to write review response: %w", err)
	}

	s.logger.Info("review submitted", "argument", req.ArgumentURI, "vote", req.Vote)
	return result.URI, nil
}

func (s *service) Status(ctx context.Context, viewerDID, argumentURI string) (*Status, error) {
	arg, err := s.arguments.GetByURI(ctx, argumentURI)
	if err != nil {
		if errors.Is(err, arguments.ErrArgumentNotFound) {
			return nil, ErrArgumentNotFound
		}
		return nil, fmt.Errorf("failed to load argument: %w", err)
	}

	counts, err := s.repo.CountResponses(ctx, argumentURI)
	if err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}
	invitationCount, err := s.repo.CountInvitations(ctx, argumentURI)
	if err != nil {
		return nil, fmt.Errorf("failed to count invitations: %w", err)
	}

	status := &Status{
		ArgumentURI:     argumentURI,
		ReviewStatus:    arg.ReviewStatus,
		GovernanceURI:   arg.GovernanceURI,
		Quorum:          s.quorum,
		Approvals:       counts.Approvals,
		Rejections:      counts.Rejections,
		TotalReviews:    counts.Total,
		InvitationCount: invitationCount,
	}

	// Individual feedback is author-only.
	if viewerDID == arg.DID {
		reviews, err := s.repo.ListResponses(ctx, argumentURI)
		if err != nil {
			return nil, fmt.Errorf("failed to list responses: %w", err)
		}
		status.Reviews = reviews
	}
	return status, nil
}

func (s *service) Criteria() []Criterion {
	return s.criteria
}
