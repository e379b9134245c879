// Package identity provides best-effort polling helpers against the DID
// directory and the relay. Registration waits on both before firing the
// handle toggle: the upstream AppView creates permanent stub profiles when
// it processes an #identity event before the repo commit is visible.
//
// Every helper here logs and returns on timeout instead of failing the
// caller. The only action taken after them is a handle toggle, and a
// user-visible registration failure would be worse than a short
// eventual-consistency delay.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	directoryTimeout  = 10 * time.Second
	directoryInterval = 2 * time.Second
	relayTimeout      = 30 * time.Second
	relayInterval     = 3 * time.Second

	// probeTimeout bounds each individual poll probe.
	probeTimeout = 5 * time.Second
)

// Waiter polls the directory and relay for commit/identity visibility.
type Waiter struct {
	directoryURL string
	relayURL     string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewWaiter builds a Waiter for the given directory and relay base URLs.
func NewWaiter(directoryURL, relayURL string, logger *slog.Logger) *Waiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Waiter{
		directoryURL: strings.TrimSuffix(directoryURL, "/"),
		relayURL:     strings.TrimSuffix(relayURL, "/"),
		httpClient:   &http.Client{Timeout: probeTimeout},
		logger:       logger,
	}
}

// WaitForDirectoryResolution polls the directory until the DID document
// resolves. Success on the first HTTP 200; on timeout it logs a warning
// and returns.
func (w *Waiter) WaitForDirectoryResolution(ctx context.Context, did string) {
	start := time.Now()

	backoff := retry.WithMaxDuration(directoryTimeout, retry.NewConstant(directoryInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			w.directoryURL+"/"+url.PathEscape(did), nil)
		if err != nil {
			return err
		}

		resp, err := w.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return retry.RetryableError(fmt.Errorf("directory returned %d", resp.StatusCode))
		}
		return nil
	})

	if err != nil {
		w.logger.Warn("DID not resolvable on directory before timeout, continuing",
			"did", did, "waited", time.Since(start), "error", err)
		return
	}

	w.logger.Info("DID resolved on directory", "did", did, "waited", time.Since(start))
}

// WaitForRelayIndexed polls the relay's latest-commit endpoint until it
// reports a commit with rev >= expectedRev. With an empty expectedRev any
// HTTP 200 counts. Timeouts log a warning and return.
func (w *Waiter) WaitForRelayIndexed(ctx context.Context, did, expectedRev string) {
	start := time.Now()

	backoff := retry.WithMaxDuration(relayTimeout, retry.NewConstant(relayInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		rev, err := w.latestCommitRev(ctx, did)
		if err != nil {
			return retry.RetryableError(err)
		}

		// Commit revs are TIDs: lexicographic order is temporal order.
		if expectedRev != "" && rev < expectedRev {
			return retry.RetryableError(fmt.Errorf("relay at rev %s, want >= %s", rev, expectedRev))
		}
		return nil
	})

	if err != nil {
		w.logger.Warn("relay did not report expected commit before timeout, continuing",
			"did", did, "expected_rev", expectedRev, "waited", time.Since(start), "error", err)
		return
	}

	w.logger.Info("relay has indexed repo", "did", did, "expected_rev", expectedRev, "waited", time.Since(start))
}

func (w *Waiter) latestCommitRev(ctx context.Context, did string) (string, error) {
	u := fmt.Sprintf("%s/xrpc/com.atproto.sync.getLatestCommit?did=%s", w.relayURL, url.QueryEscape(did))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("relay returned %d", resp.StatusCode)
	}

	var out struct {
		CID string `json:"cid"`
		Rev string `json:"rev"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode latest commit: %w", err)
	}
	return out.Rev, nil
}

// RequestCrawl asks the relay to crawl the given PDS hostname. Fire and
// forget: errors are logged only.
func (w *Waiter) RequestCrawl(ctx context.Context, hostname string) {
	body := strings.NewReader(fmt.Sprintf(`{"hostname":%q}`, hostname))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.relayURL+"/xrpc/com.atproto.sync.requestCrawl", body)
	if err != nil {
		w.logger.Warn("failed to build requestCrawl request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Warn("requestCrawl failed", "hostname", hostname, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn("requestCrawl rejected", "hostname", hostname, "status", resp.StatusCode)
		return
	}

	w.logger.Info("requested relay crawl", "hostname", hostname)
}
