// Package feed implements the app.bsky.feed generator endpoints served by
// this AppView: the descriptor and the ballot feed skeleton.
package feed

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"Poltr/internal/api/handlers"
	"Poltr/internal/core/feeds"
)

// Handler serves the feed generator endpoint group.
type Handler struct {
	service *feeds.Service
	logger  *slog.Logger
}

// NewHandler creates the feed handler group.
func NewHandler(service *feeds.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// HandleDescribe returns the feed generator descriptor.
// GET /xrpc/app.bsky.feed.describeFeedGenerator
func (h *Handler) HandleDescribe(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, h.service.Describe())
}

// HandleSkeleton returns one page of the ballot feed.
// GET /xrpc/app.bsky.feed.getFeedSkeleton
func (h *Handler) HandleSkeleton(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	page, err := h.service.Skeleton(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		if errors.Is(err, feeds.ErrBadCursor) {
			handlers.WriteError(w, http.StatusBadRequest, "invalid_cursor", "malformed cursor")
			return
		}
		h.logger.Error("feed skeleton failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to build feed")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, page)
}
