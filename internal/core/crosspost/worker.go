// Package crosspost mirrors local ballots and arguments to upstream
// federation posts. Ballots go out under the governance identity;
// arguments go out as replies under their author's identity.
package crosspost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Poltr/internal/atproto/pds"
	"Poltr/internal/core/accounts"
	"Poltr/internal/core/arguments"
	"Poltr/internal/core/ballots"
	"Poltr/internal/core/governance"
	"Poltr/internal/crypto"
)

// PostCollection is the upstream post collection mirrors are written to.
const PostCollection = "app.bsky.feed.post"

// maxPostLength is the upstream post text limit.
const maxPostLength = 300

// WorkerConfig tunes the cross-post loop.
type WorkerConfig struct {
	// Enabled is re-read every tick.
	Enabled func() bool
	// Interval is the poll cadence.
	Interval time.Duration
	// FrontendURL is the base for ballot card links.
	FrontendURL string
}

// Worker is the background cross-post loop.
type Worker struct {
	cfg        WorkerConfig
	ballots    ballots.Repository
	arguments  arguments.Repository
	governance *governance.Identity
	users      *userSessionCache
	logger     *slog.Logger
	kick       chan struct{}
	now        func() time.Time
}

// NewWorker builds the cross-post worker.
func NewWorker(
	cfg WorkerConfig,
	ballotRepo ballots.Repository,
	argumentRepo arguments.Repository,
	gov *governance.Identity,
	credentials accounts.Repository,
	pdsClient pds.Client,
	box *crypto.SecretBox,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Enabled == nil {
		cfg.Enabled = func() bool { return true }
	}
	return &Worker{
		cfg:        cfg,
		ballots:    ballotRepo,
		arguments:  argumentRepo,
		governance: gov,
		users:      newUserSessionCache(credentials, pdsClient, box),
		logger:     logger,
		kick:       make(chan struct{}, 1),
		now:        time.Now,
	}
}

// Kick requests an immediate tick without waiting for the timer.
func (w *Worker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("cross-post worker started", "interval", w.cfg.Interval)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cross-post worker stopped")
			return
		case <-ticker.C:
		case <-w.kick:
		}

		if !w.cfg.Enabled() {
			continue
		}
		w.RunOnce(ctx)
	}
}

// RunOnce performs one tick: ballots first, then arguments. Arguments whose
// parent ballot has no mirror yet fall out of the selection and defer to a
// later tick, so a ballot is always mirrored strictly before its arguments.
func (w *Worker) RunOnce(ctx context.Context) {
	w.mirrorBallots(ctx)
	w.mirrorArguments(ctx)
}

func (w *Worker) mirrorBallots(ctx context.Context) {
	rows, err := w.ballots.ListPendingCrosspost(ctx, w.governance.DID(), 0)
	if err != nil {
		w.logger.Error("failed to list pending ballots", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}
	w.logger.Info("pending ballots to cross-post", "count", len(rows))

	for _, ballot := range rows {
		if err := w.mirrorBallot(ctx, ballot); err != nil {
			w.logger.Error("ballot cross-post failed", "ballot", ballot.URI, "error", err)
		}
	}
}

func (w *Worker) mirrorBallot(ctx context.Context, ballot *ballots.Ballot) error {
	title := ballot.Title
	if title == "" {
		title = "New ballot"
	}

	result, err := w.governance.CreateRecord(ctx, PostCollection, ballotPostRecord(
		title, ballot.Description, w.ballotURL(ballot.RKey), w.now()))
	if err != nil {
		return err
	}

	if err := w.ballots.SetBskyPost(ctx, ballot.URI, result.URI, result.CID); err != nil {
		return fmt.Errorf("mirror created but not recorded: %w", err)
	}
	w.logger.Info("ballot cross-posted", "ballot", ballot.URI, "post", result.URI)
	return nil
}

func (w *Worker) ballotURL(rkey string) string {
	return fmt.Sprintf("%s/ballots/%s", w.cfg.FrontendURL, rkey)
}

// ballotPostRecord builds the upstream post: title, a blank line, the
// ballot link carrying a byte-exact link facet, plus an external card.
func ballotPostRecord(title, description, ballotURL string, now time.Time) map[string]any {
	text := fmt.Sprintf("%s\n\n%s", title, ballotURL)
	byteEnd := len(text)
	byteStart := byteEnd - len(ballotURL)

	return map[string]any{
		"$type": PostCollection,
		"text":  text,
		"embed": map[string]any{
			"$type": "app.bsky.embed.external",
			"external": map[string]any{
				"uri":         ballotURL,
				"title":       title,
				"description": description,
			},
		},
		"facets": []map[string]any{
			{
				"index": map[string]any{"byteStart": byteStart, "byteEnd": byteEnd},
				"features": []map[string]any{
					{"$type": "app.bsky.richtext.facet#link", "uri": ballotURL},
				},
			},
		},
		"createdAt": now.UTC().Format(time.RFC3339),
	}
}

func (w *Worker) mirrorArguments(ctx context.Context) {
	rows, err := w.arguments.ListPendingCrosspost(ctx, 0)
	if err != nil {
		w.logger.Error("failed to list pending arguments", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}
	w.logger.Info("pending arguments to cross-post", "count", len(rows))

	for _, arg := range rows {
		if err := w.mirrorArgument(ctx, arg); err != nil {
			w.logger.Error("argument cross-post failed", "argument", arg.URI, "error", err)
		}
	}
}

func (w *Worker) mirrorArgument(ctx context.Context, arg *arguments.Argument) error {
	record := map[string]any{
		"$type": PostCollection,
		"text":  argumentPostText(arg),
		"reply": map[string]any{
			"root":   map[string]any{"uri": arg.BallotBskyPostURI, "cid": arg.BallotBskyPostCID},
			"parent": map[string]any{"uri": arg.BallotBskyPostURI, "cid": arg.BallotBskyPostCID},
		},
		"createdAt": w.now().UTC().Format(time.RFC3339),
	}

	var result *pds.RecordResult
	var err error
	if arg.IsGovernanceCopy() && arg.DID == w.governance.DID() {
		result, err = w.governance.CreateRecord(ctx, PostCollection, record)
	} else {
		var token string
		token, err = w.users.Token(ctx, arg.DID)
		if err != nil {
			// Cache misses defer the argument to the next tick.
			w.logger.Warn("no usable credentials, skipping argument", "did", arg.DID, "error", err)
			return nil
		}
		result, err = w.users.pdsClient.CreateRecord(ctx, token, arg.DID, PostCollection, record)
	}
	if err != nil {
		return err
	}

	if err := w.arguments.SetBskyPost(ctx, arg.URI, result.URI, result.CID); err != nil {
		return fmt.Errorf("mirror created but not recorded: %w", err)
	}
	w.logger.Info("argument cross-posted", "argument", arg.URI, "post", result.URI)
	return nil
}

// argumentPostText renders "[PRO] title\n\nbody" with a leading
// "[Preliminary]" marker while the argument awaits review, truncated to
// the upstream post limit.
func argumentPostText(arg *arguments.Argument) string {
	side := arguments.SideContra
	if arg.Type == arguments.SidePro {
		side = arguments.SidePro
	}

	text := fmt.Sprintf("[%s] %s\n\n%s", side, arg.Title, arg.Body)
	if arg.Preliminary() {
		text = "[Preliminary] " + text
	}

	runes := []rune(text)
	if len(runes) > maxPostLength {
		return string(runes[:maxPostLength])
	}
	return text
}
