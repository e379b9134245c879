// Package proxy forwards app.bsky.* XRPC traffic to the upstream AppView,
// augmenting selected responses: profile label merge from the moderation
// service and a birth date injected into preferences.
package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"Poltr/internal/api/handlers"
)

// Header allowlists. Anything not named is dropped in both directions so
// session cookies and internal headers never cross the boundary.
var forwardRequestHeaders = []string{
	"authorization",
	"accept",
	"accept-language",
	"content-type",
	"atproto-accept-labelers",
}

var forwardResponseHeaders = []string{
	"content-type",
	"atproto-repo-rev",
	"atproto-content-labelers",
}

const dummyBirthDate = "1990-01-01"

// Handler is the pass-through proxy for upstream AppView methods.
type Handler struct {
	upstreamURL   string
	moderationURL string
	client        *http.Client
	logger        *slog.Logger
}

// NewHandler creates the proxy. moderationURL may be empty, disabling
// label augmentation.
func NewHandler(upstreamURL, moderationURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		upstreamURL:   strings.TrimRight(upstreamURL, "/"),
		moderationURL: strings.TrimRight(moderationURL, "/"),
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
}

// HandleXRPC is the generic fallback for unhandled XRPC methods. Only
// app.bsky.* is forwarded; everything else answers 501.
func (h *Handler) HandleXRPC(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "*")
	if !strings.HasPrefix(method, "app.bsky.") {
		handlers.WriteError(w, http.StatusNotImplemented, "MethodNotImplemented", "Method not found")
		return
	}

	resp, err := h.forward(r, method)
	if err != nil {
		h.logger.Error("proxy request failed", "method", method, "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "UpstreamError", "Failed to reach upstream AppView")
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// HandleGetProfile proxies app.bsky.actor.getProfile and merges moderation
// labels into the profile view.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "actor parameter is required")
		return
	}

	resp, err := h.forward(r, "app.bsky.actor.getProfile")
	if err != nil {
		h.logger.Error("profile proxy failed", "actor", actor, "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "UpstreamError", "Failed to reach upstream AppView")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		handlers.WriteError(w, http.StatusBadGateway, "UpstreamError", "Failed to read upstream response")
		return
	}

	if resp.StatusCode != http.StatusOK {
		copyResponseHeaders(w, resp)
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(body)
		return
	}

	var profile map[string]any
	if err := json.Unmarshal(body, &profile); err == nil {
		h.mergeLabels(r, profile, actor)
		if merged, err := json.Marshal(profile); err == nil {
			body = merged
		}
	}

	copyResponseHeaders(w, resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleGetPreferences proxies app.bsky.actor.getPreferences and injects a
// birth date preference when missing. Upstream requires one for age
// verification and PDS accounts created by the saga carry none.
func (h *Handler) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	resp, err := h.forward(r, "app.bsky.actor.getPreferences")
	if err != nil {
		h.logger.Error("preferences proxy failed", "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "UpstreamError", "Failed to reach upstream AppView")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		handlers.WriteError(w, http.StatusBadGateway, "UpstreamError", "Failed to read upstream response")
		return
	}

	if resp.StatusCode == http.StatusOK {
		body = injectBirthDate(body)
	}

	copyResponseHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

// forward replays the request against the upstream with allowlisted
// headers.
func (h *Handler) forward(r *http.Request, method string) (*http.Response, error) {
	upstream := h.upstreamURL + "/xrpc/" + method
	if r.URL.RawQuery != "" {
		upstream += "?" + r.URL.RawQuery
	}

	var body io.Reader
	if r.Method == http.MethodPost {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstream, body)
	if err != nil {
		return nil, err
	}
	for _, name := range forwardRequestHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	return h.client.Do(req)
}

// mergeLabels pulls moderation labels for the DID and merges them into the
// profile, deduplicated on (src, val). Failures are logged and the
// unaugmented profile served.
func (h *Handler) mergeLabels(r *http.Request, profile map[string]any, actor string) {
	if h.moderationURL == "" {
		return
	}

	did, _ := profile["did"].(string)
	if did == "" {
		did = actor
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet,
		h.moderationURL+"/xrpc/tools.ozone.moderation.getRepo?did="+did, nil)
	if err != nil {
		return
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("failed to fetch moderation labels", "did", did, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}

	var repo struct {
		Labels []map[string]any `json:"labels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil || len(repo.Labels) == 0 {
		return
	}

	existing, _ := profile["labels"].([]any)
	seen := make(map[[2]string]bool, len(existing))
	for _, l := range existing {
		if m, ok := l.(map[string]any); ok {
			src, _ := m["src"].(string)
			val, _ := m["val"].(string)
			seen[[2]string{src, val}] = true
		}
	}

	for _, label := range repo.Labels {
		src, _ := label["src"].(string)
		val, _ := label["val"].(string)
		if !seen[[2]string{src, val}] {
			existing = append(existing, label)
			seen[[2]string{src, val}] = true
		}
	}
	profile["labels"] = existing
}

// injectBirthDate appends a personalDetailsPref carrying the fixed birth
// date when no preference sets one.
func injectBirthDate(body []byte) []byte {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	prefs, _ := data["preferences"].([]any)
	for _, p := range prefs {
		if m, ok := p.(map[string]any); ok {
			if m["$type"] == "app.bsky.actor.defs#personalDetailsPref" {
				if bd, _ := m["birthDate"].(string); bd != "" {
					return body
				}
			}
		}
	}

	prefs = append(prefs, map[string]any{
		"$type":     "app.bsky.actor.defs#personalDetailsPref",
		"birthDate": dummyBirthDate,
	})
	data["preferences"] = prefs

	out, err := json.Marshal(data)
	if err != nil {
		return body
	}
	return out
}

func copyResponseHeaders(w http.ResponseWriter, resp *http.Response) {
	for _, name := range forwardResponseHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
}
