package likes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Poltr/internal/atproto/pds"
	"Poltr/internal/core/ballots"
)

type service struct {
	repo      Repository
	ballots   ballots.Repository
	pdsClient pds.Client
	logger    *slog.Logger
	now       func() time.Time
}

var _ Service = (*service)(nil)

// NewService wires the rating service.
func NewService(repo Repository, ballotRepo ballots.Repository, pdsClient pds.Client, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		repo:      repo,
		ballots:   ballotRepo,
		pdsClient: pdsClient,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) Rate(ctx context.Context, did, accessJwt string, subjectURI, subjectCID string) (*RateResult, error) {
	record := map[string]any{
		"$type": RatingCollection,
		"subject": map[string]any{
			"uri": subjectURI,
			"cid": subjectCID,
		},
		"createdAt": s.now().UTC().Format(time.RFC3339),
	}

	result, err := s.pdsClient.CreateRecord(ctx, accessJwt, did, RatingCollection, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create rating record: %w", err)
	}

	s.crossLike(ctx, did, accessJwt, subjectURI)

	return &RateResult{URI: result.URI, CID: result.CID}, nil
}

// crossLike mirrors the rating as an upstream like when the subject is a
// ballot with a known upstream mirror. Best-effort: any failure here is
// logged and the platform rating stands.
func (s *service) crossLike(ctx context.Context, did, accessJwt, subjectURI string) {
	ballot, err := s.ballots.GetByURI(ctx, subjectURI)
	if err != nil {
		if !errors.Is(err, ballots.ErrBallotNotFound) {
			s.logger.Warn("cross-like: ballot lookup failed", "subject", subjectURI, "error", err)
		}
		return
	}
	if ballot.BskyPostURI == nil || *ballot.BskyPostURI == "" {
		return
	}

	cid := ""
	if ballot.BskyPostCID != nil {
		cid = *ballot.BskyPostCID
	}
	record := map[string]any{
		"$type": UpstreamLikeCollection,
		"subject": map[string]any{
			"uri": *ballot.BskyPostURI,
			"cid": cid,
		},
		"createdAt": s.now().UTC().Format(time.RFC3339),
	}

	upstream, err := s.pdsClient.CreateRecord(ctx, accessJwt, did, UpstreamLikeCollection, record)
	if err != nil {
		s.logger.Warn("cross-like: upstream like failed", "subject", subjectURI, "error", err)
		return
	}

	// Pre-seed a pending row carrying the upstream like URI so an unlike
	// can delete both sides before the indexer catches up. The indexer
	// replaces this row matched on (did, subject_uri).
	pending := &Like{
		URI:         PendingURI(did, subjectURI),
		DID:         did,
		SubjectURI:  subjectURI,
		SubjectCID:  ballot.CID,
		BskyLikeURI: &upstream.URI,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.UpsertPending(ctx, pending); err != nil {
		s.logger.Warn("cross-like: failed to pre-seed pending like", "subject", subjectURI, "error", err)
	}
}

func (s *service) Unrate(ctx context.Context, did, accessJwt string, likeURI string) error {
	like, err := s.repo.GetByURI(ctx, likeURI)
	if err != nil && !errors.Is(err, ErrLikeNotFound) {
		return fmt.Errorf("failed to look up like: %w", err)
	}

	// The platform record only exists at a real AT-URI; synthetic pending
	// keys have no repo-side record under that URI.
	if collection, rkey, ok := splitRecordURI(likeURI); ok {
		if err := s.pdsClient.DeleteRecord(ctx, accessJwt, did, collection, rkey); err != nil {
			return fmt.Errorf("failed to delete rating record: %w", err)
		}
	}

	if like != nil {
		if like.BskyLikeURI != nil && *like.BskyLikeURI != "" {
			if collection, rkey, ok := splitRecordURI(*like.BskyLikeURI); ok {
				if err := s.pdsClient.DeleteRecord(ctx, accessJwt, did, collection, rkey); err != nil {
					s.logger.Warn("unrate: failed to delete upstream like", "uri", *like.BskyLikeURI, "error", err)
				}
			}
		}
		if err := s.repo.Delete(ctx, like.URI); err != nil {
			return fmt.Errorf("failed to delete like row: %w", err)
		}
	}
	return nil
}

// splitRecordURI parses "at://did/collection/rkey" into its record
// coordinates. Synthetic or malformed URIs report ok=false.
func splitRecordURI(uri string) (collection, rkey string, ok bool) {
	rest, found := strings.CutPrefix(uri, "at://")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
