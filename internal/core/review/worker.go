package review

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"Poltr/internal/core/arguments"
)

const (
	// inviteBatchSize bounds how many arguments get invitation processing
	// per tick.
	inviteBatchSize = 20

	// copyBatchSize bounds governance-copy creation per tick.
	copyBatchSize = 10
)

// WorkerConfig tunes the peer-review loop.
type WorkerConfig struct {
	// Enabled is re-read every tick so the flag can flip at runtime.
	Enabled func() bool
	// Interval is the poll cadence.
	Interval time.Duration
	// Quorum is the invitation and approval target.
	Quorum int
	// InviteProbability is the per-candidate coin bias.
	InviteProbability float64
}

// Worker is the background peer-review loop: it invites reviewers for
// preliminary arguments and materializes governance copies of approved
// ones.
type Worker struct {
	cfg        WorkerConfig
	repo       Repository
	arguments  arguments.Repository
	governance GovernanceWriter
	logger     *slog.Logger
	kick       chan struct{}
	rng        func() float64
	now        func() time.Time
}

// NewWorker builds the peer-review worker.
func NewWorker(
	cfg WorkerConfig,
	repo Repository,
	argumentRepo arguments.Repository,
	governance GovernanceWriter,
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
		repo:       repo,
		arguments:  argumentRepo,
		governance: governance,
		logger:     logger,
		kick:       make(chan struct{}, 1),
		rng:        rand.Float64,
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
	w.logger.Info("peer-review worker started", "interval", w.cfg.Interval, "quorum", w.cfg.Quorum)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("peer-review worker stopped")
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

// RunOnce performs a single tick: invitation processing, then governance
// copies. Every per-record failure is logged and deferred to the next
// tick.
func (w *Worker) RunOnce(ctx context.Context) {
	w.processInvitations(ctx)
	w.materializeApproved(ctx)
}

func (w *Worker) processInvitations(ctx context.Context) {
	pending, err := w.arguments.ListNeedingInvitations(ctx, w.cfg.Quorum, inviteBatchSize)
	if err != nil {
		w.logger.Error("failed to list arguments needing reviewers", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	w.logger.Info("arguments needing reviewers", "count", len(pending))

	for _, arg := range pending {
		if err := w.inviteForArgument(ctx, arg); err != nil {
			w.logger.Error("invitation processing failed", "argument", arg.URI, "error", err)
		}
	}
}

func (w *Worker) inviteForArgument(ctx context.Context, arg *arguments.Argument) error {
	existing, err := w.repo.CountInvitations(ctx, arg.URI)
	if err != nil {
		return err
	}
	remaining := w.cfg.Quorum - existing
	if remaining <= 0 {
		return nil
	}

	candidates, err := w.repo.EligibleReviewers(ctx, arg.URI, arg.DID)
	if err != nil {
		return err
	}

	invited := 0
	for _, did := range candidates {
		if invited >= remaining {
			break
		}
		if w.rng() > w.cfg.InviteProbability {
			continue
		}

		record := map[string]any{
			"$type":     InvitationCollection,
			"argument":  arg.URI,
			"invitee":   did,
			"createdAt": w.now().UTC().Format(time.RFC3339),
		}
		result, err := w.governance.CreateRecord(ctx, InvitationCollection, record)
		if err != nil {
			w.logger.Error("failed to create invitation", "argument", arg.URI, "invitee", did, "error", err)
			continue
		}
		w.logger.Info("reviewer invited", "argument", arg.URI, "invitee", did, "uri", result.URI)
		invited++
	}
	return nil
}

func (w *Worker) materializeApproved(ctx context.Context) {
	rows, err := w.arguments.ListApprovedNeedingCopy(ctx, copyBatchSize)
	if err != nil {
		w.logger.Error("failed to list approved arguments", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}
	w.logger.Info("approved arguments needing governance copies", "count", len(rows))

	for _, arg := range rows {
		record := map[string]any{
			"$type":       ArgumentCollection,
			"title":       arg.Title,
			"body":        arg.Body,
			"type":        arg.Type,
			"ballot":      arg.BallotURI,
			"originalUri": arg.URI,
			"createdAt":   w.now().UTC().Format(time.RFC3339),
		}

		result, err := w.governance.CreateRecord(ctx, ArgumentCollection, record)
		if err != nil {
			w.logger.Error("failed to create governance copy", "argument", arg.URI, "error", err)
			continue
		}
		if err := w.arguments.SetGovernanceURI(ctx, arg.URI, result.URI); err != nil {
			w.logger.Error("failed to link governance copy", "argument", arg.URI, "error", err)
			continue
		}
		w.logger.Info("governance copy created", "argument", arg.URI, "copy", result.URI)
	}
}
