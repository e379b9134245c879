// Package poltr implements the app.ch.poltr.* content endpoints: ballot
// listing, argument listing, and content ratings.
package poltr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"Poltr/internal/api/handlers"
	"Poltr/internal/api/middleware"
	"Poltr/internal/core/arguments"
	"Poltr/internal/core/ballots"
	"Poltr/internal/core/feeds"
	"Poltr/internal/core/likes"
	"Poltr/internal/core/sessions"
)

// Handler serves the civic content endpoint group.
type Handler struct {
	ballots       ballots.Repository
	arguments     arguments.Repository
	likes         likes.Service
	refresh       refresher
	governanceDID string
	logger        *slog.Logger
}

// refresher is the slice of the session service the rating path needs to
// run PDS writes with a fresh access token. Satisfied by sessions.Service.
type refresher interface {
	WithRefresh(ctx context.Context, sess *sessions.Session, fn func(accessJwt string) error) error
}

// NewHandler creates the content handler group.
func NewHandler(
	ballotRepo ballots.Repository,
	argumentRepo arguments.Repository,
	likeSvc likes.Service,
	sessionSvc refresher,
	governanceDID string,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ballots:       ballotRepo,
		arguments:     argumentRepo,
		likes:         likeSvc,
		refresh:       sessionSvc,
		governanceDID: governanceDID,
		logger:        logger,
	}
}

// HandleListBallots lists ballots newest vote date first.
// GET /xrpc/app.ch.poltr.ballot.list
func (h *Handler) HandleListBallots(w http.ResponseWriter, r *http.Request) {
	params := ballots.ListParams{
		GovernanceDID: h.governanceDID,
		ViewerDID:     middleware.GetUserDID(r),
		Limit:         queryLimit(r),
	}

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "invalid_request", "since must be an RFC 3339 timestamp")
			return
		}
		params.Since = &t
	}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		if _, err := feeds.DecodeListCursor(cursor); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "invalid_cursor", "malformed cursor")
			return
		}
	}

	list, err := h.ballots.List(r.Context(), params)
	if err != nil {
		h.logger.Error("ballot listing failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to list ballots")
		return
	}

	views := make([]map[string]any, 0, len(list))
	for _, b := range list {
		views = append(views, ballotView(b))
	}

	body := map[string]any{"ballots": views}
	if len(list) > 0 {
		last := list[len(list)-1]
		body["cursor"] = feeds.ListCursor{
			Sort:    "newest",
			Primary: last.IndexedAt.UTC().Format(time.RFC3339),
		}.Encode()
	}
	handlers.WriteJSON(w, http.StatusOK, body)
}

// HandleGetBallot fetches one ballot by rkey.
// GET /xrpc/app.ch.poltr.ballot.get
func (h *Handler) HandleGetBallot(w http.ResponseWriter, r *http.Request) {
	rkey := r.URL.Query().Get("rkey")
	if rkey == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_request", "rkey parameter is required")
		return
	}

	b, err := h.ballots.GetByRKey(r.Context(), rkey, middleware.GetUserDID(r))
	if err != nil {
		if errors.Is(err, ballots.ErrBallotNotFound) {
			handlers.WriteError(w, http.StatusNotFound, "ballot_not_found", "Ballot not found")
			return
		}
		h.logger.Error("ballot fetch failed", "rkey", rkey, "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch ballot")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{"ballot": ballotView(b)})
}

// HandleListArguments lists the arguments of a ballot, oldest first.
// GET /xrpc/app.ch.poltr.argument.list
func (h *Handler) HandleListArguments(w http.ResponseWriter, r *http.Request) {
	ballotRKey := r.URL.Query().Get("ballot_rkey")
	if ballotRKey == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_request", "ballot_rkey parameter is required")
		return
	}

	list, err := h.arguments.ListByBallot(r.Context(), ballotRKey, queryLimit(r))
	if err != nil {
		h.logger.Error("argument listing failed", "ballot_rkey", ballotRKey, "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to list arguments")
		return
	}

	views := make([]map[string]any, 0, len(list))
	for _, a := range list {
		views = append(views, argumentView(a))
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"arguments": views})
}

type ratingRequest struct {
	Subject struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	} `json:"subject"`
	// Preference is accepted for forward compatibility; ratings currently
	// carry no preference value.
	Preference string `json:"preference"`
}

// HandleCreateRating writes a rating to the viewer's repo, cross-liking
// the upstream mirror when the subject is a mirrored ballot.
// POST /xrpc/app.ch.poltr.content.rating
func (h *Handler) HandleCreateRating(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	if sess == nil {
		handlers.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject.URI == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_request", "subject.uri is required")
		return
	}

	var result *likes.RateResult
	err := h.refresh.WithRefresh(r.Context(), sess, func(accessJwt string) error {
		var err error
		result, err = h.likes.Rate(r.Context(), sess.DID, accessJwt, req.Subject.URI, req.Subject.CID)
		return err
	})
	if err != nil {
		h.logger.Error("rating failed", "did", sess.DID, "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "pds_error", "Failed to create rating")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, result)
}

type unratingRequest struct {
	LikeURI string `json:"likeUri"`
}

// HandleDeleteRating removes a rating, including its upstream cross-like
// when one was recorded.
// POST /xrpc/app.ch.poltr.content.unrating
func (h *Handler) HandleDeleteRating(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	if sess == nil {
		handlers.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	var req unratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LikeURI == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_request", "likeUri is required")
		return
	}

	err := h.refresh.WithRefresh(r.Context(), sess, func(accessJwt string) error {
		return h.likes.Unrate(r.Context(), sess.DID, accessJwt, req.LikeURI)
	})
	if err != nil {
		if errors.Is(err, likes.ErrLikeNotFound) {
			handlers.WriteError(w, http.StatusNotFound, "like_not_found", "Rating not found")
			return
		}
		h.logger.Error("unrating failed", "did", sess.DID, "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "pds_error", "Failed to delete rating")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}
