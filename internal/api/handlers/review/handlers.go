// Package review implements the app.ch.poltr.review.* XRPC endpoints.
package review

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"Poltr/internal/api/handlers"
	"Poltr/internal/api/middleware"
	corereview "Poltr/internal/core/review"
)

// Handler serves the peer-review endpoint group.
type Handler struct {
	service corereview.Service
	logger  *slog.Logger
}

// NewHandler creates the review handler group.
func NewHandler(service corereview.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// HandlePending lists invitations awaiting a response from the viewer.
// GET /xrpc/app.ch.poltr.review.pending
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	if sess == nil {
		handlers.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	pending, err := h.service.Pending(r.Context(), sess.DID)
	if err != nil {
		h.logger.Error("pending review listing failed", "did", sess.DID, "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to list pending reviews")
		return
	}
	if pending == nil {
		pending = []corereview.PendingInvitation{}
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{"invitations": pending})
}

// HandleSubmit validates and records a review response.
// POST /xrpc/app.ch.poltr.review.submit
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	if sess == nil {
		handlers.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	var req corereview.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ArgumentURI == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_request", "argumentUri is required")
		return
	}

	uri, err := h.service.Submit(r.Context(), sess.DID, req)
	if err != nil {
		switch {
		case errors.Is(err, corereview.ErrInvalidVote):
			handlers.WriteError(w, http.StatusBadRequest, "invalid_vote", "vote must be APPROVE or REJECT")
		case errors.Is(err, corereview.ErrJustificationRequired):
			handlers.WriteError(w, http.StatusBadRequest, "justification_required", "REJECT requires a justification")
		case errors.Is(err, corereview.ErrNotInvited):
			handlers.WriteError(w, http.StatusForbidden, "not_invited", "You were not invited to review this argument")
		case errors.Is(err, corereview.ErrAlreadyReviewed):
			handlers.WriteError(w, http.StatusConflict, "already_reviewed", "You already reviewed this argument")
		case errors.Is(err, corereview.ErrArgumentNotFound):
			handlers.WriteError(w, http.StatusNotFound, "argument_not_found", "Argument not found")
		default:
			h.logger.Error("review submission failed", "did", sess.DID, "error", err)
			handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to submit review")
		}
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "uri": uri})
}

// HandleStatus summarizes review progress for an argument.
// GET /xrpc/app.ch.poltr.review.status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	if sess == nil {
		handlers.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return
	}

	argumentURI := r.URL.Query().Get("argumentUri")
	if argumentURI == "" {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_request", "argumentUri parameter is required")
		return
	}

	status, err := h.service.Status(r.Context(), sess.DID, argumentURI)
	if err != nil {
		if errors.Is(err, corereview.ErrArgumentNotFound) {
			handlers.WriteError(w, http.StatusNotFound, "argument_not_found", "Argument not found")
			return
		}
		h.logger.Error("review status failed", "argument", argumentURI, "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch review status")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, status)
}

// HandleCriteria returns the configured review rubric.
// GET /xrpc/app.ch.poltr.review.criteria
func (h *Handler) HandleCriteria(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"criteria": h.service.Criteria()})
}
