package routes

import (
	"github.com/go-chi/chi/v5"

	"Poltr/internal/api/handlers/feed"
)

// RegisterFeedRoutes registers the feed generator endpoints consumed by
// upstream feed clients.
func RegisterFeedRoutes(r chi.Router, h *feed.Handler) {
	r.Get("/xrpc/app.bsky.feed.describeFeedGenerator", h.HandleDescribe)
	r.Get("/xrpc/app.bsky.feed.getFeedSkeleton", h.HandleSkeleton)
}
