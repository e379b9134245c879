package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	authapi "Poltr/internal/api/handlers/auth"
	feedapi "Poltr/internal/api/handlers/feed"
	healthapi "Poltr/internal/api/handlers/health"
	poltrapi "Poltr/internal/api/handlers/poltr"
	proxyapi "Poltr/internal/api/handlers/proxy"
	reviewapi "Poltr/internal/api/handlers/review"
	wellknownapi "Poltr/internal/api/handlers/wellknown"
	"Poltr/internal/api/middleware"
	"Poltr/internal/api/routes"
	"Poltr/internal/atproto/identity"
	"Poltr/internal/atproto/pds"
	"Poltr/internal/config"
	"Poltr/internal/core/accounts"
	"Poltr/internal/core/crosspost"
	"Poltr/internal/core/feeds"
	"Poltr/internal/core/governance"
	"Poltr/internal/core/likes"
	"Poltr/internal/core/review"
	"Poltr/internal/core/sessions"
	"Poltr/internal/crypto"
	"Poltr/internal/db/postgres"
	"Poltr/internal/mail"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded", "config", cfg.String())

	db, err := postgres.Connect(cfg.DBURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("failed to set goose dialect", "error", err)
		os.Exit(1)
	}
	if err := goose.Up(db, "internal/db/migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	box := crypto.NewSecretBox(cfg.MasterKey)
	attestor, err := crypto.NewAttestor(cfg.SigningSeed)
	if err != nil {
		logger.Error("failed to derive attestation key", "error", err)
		os.Exit(1)
	}

	// PDS access: admin endpoints go through the internal URL, user
	// sessions through the public host.
	adminClient := pds.NewAdminClient(cfg.PDSInternalURL, cfg.AdminPassword, logger)
	pdsClient := pds.NewClient(cfg.PDSHostname)
	waiter := identity.NewWaiter(cfg.DirectoryURL, cfg.RelayURL, logger)

	gov := governance.NewIdentity(cfg.GovernanceDID, cfg.GovernancePassword, pdsClient, logger)

	credentialRepo := postgres.NewCredentialRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	mountainRepo := postgres.NewMountainRepository(db)
	ballotRepo := postgres.NewBallotRepository(db)
	argumentRepo := postgres.NewArgumentRepository(db)
	likeRepo := postgres.NewLikeRepository(db)
	reviewRepo := postgres.NewReviewRepository(db)
	feedRepo := postgres.NewFeedRepository(db)

	sessionService := sessions.NewService(
		sessionRepo, credentialRepo, pdsClient, box,
		newMailSender(cfg, logger), cfg.FrontendURL, logger)

	accountService, err := accounts.NewService(
		credentialRepo, adminClient, pdsClient, waiter, box,
		accounts.NewPseudonymGenerator(mountainRepo), sessionService,
		accounts.ServiceConfig{
			PDSHostname:     cfg.PDSHostname,
			PDSPublicHandle: cfg.PDSHandleBase,
			MaxAccounts:     cfg.MaxAccounts,
			BioTemplate:     cfg.ProfileBioTemplate,
		}, logger)
	if err != nil {
		logger.Error("failed to build account service", "error", err)
		os.Exit(1)
	}

	likeService := likes.NewService(likeRepo, ballotRepo, pdsClient, logger)
	reviewService := review.NewService(
		reviewRepo, argumentRepo, gov,
		cfg.PeerReviewQuorum, reviewCriteria(cfg), logger)
	feedService := feeds.NewService(feedRepo, cfg.ServerDID)

	crosspostWorker := crosspost.NewWorker(crosspost.WorkerConfig{
		Enabled:     func() bool { return cfg.CrosspostEnabled },
		Interval:    cfg.CrosspostPollInterval,
		FrontendURL: cfg.FrontendURL,
	}, ballotRepo, argumentRepo, gov, credentialRepo, pdsClient, box, logger)

	reviewWorker := review.NewWorker(review.WorkerConfig{
		Enabled:           func() bool { return cfg.PeerReviewEnabled },
		Interval:          cfg.PeerReviewPollInterval,
		Quorum:            cfg.PeerReviewQuorum,
		InviteProbability: cfg.InviteProbability,
	}, reviewRepo, argumentRepo, gov, logger)

	authMiddleware := middleware.NewSessionAuthMiddleware(sessionService, logger)

	authHandler := authapi.NewHandler(
		sessionService, accountService, credentialRepo, pdsClient,
		cfg.AppPasswordEnabled, cfg.Production, logger)
	poltrHandler := poltrapi.NewHandler(
		ballotRepo, argumentRepo, likeService, sessionService,
		cfg.GovernanceDID, logger)
	reviewHandler := reviewapi.NewHandler(reviewService, logger)
	feedHandler := feedapi.NewHandler(feedService, logger)
	wellknownHandler := wellknownapi.NewHandler(cfg.ServerDID, attestor, logger)
	proxyHandler := proxyapi.NewHandler(cfg.UpstreamURL, cfg.ModerationURL, logger)
	healthHandler := healthapi.NewHandler(func(ctx context.Context) error {
		return postgres.HealthPing(ctx, db)
	})

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowOrigins))

	rateLimiter := middleware.NewRateLimiter(100, 1*time.Minute)
	r.Use(rateLimiter.Middleware)

	r.Get("/healthz", healthHandler.HandleHealth)

	routes.RegisterAuthRoutes(r, authHandler, authMiddleware)
	routes.RegisterPoltrRoutes(r, poltrHandler, authMiddleware)
	routes.RegisterReviewRoutes(r, reviewHandler, authMiddleware)
	routes.RegisterFeedRoutes(r, feedHandler)
	routes.RegisterWellKnownRoutes(r, wellknownHandler)

	// The /xrpc/* pass-through must come after every owned XRPC route.
	routes.RegisterProxyRoutes(r, proxyHandler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go crosspostWorker.Run(ctx)
	go reviewWorker.Run(ctx)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("appview listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// newMailSender picks SMTP delivery when a relay is configured and falls
// back to logging links, which is how dev environments run.
func newMailSender(cfg *config.Config, logger *slog.Logger) sessions.MagicLinkSender {
	if cfg.SMTPAddr == "" {
		logger.Info("SMTP_ADDR not set, magic links will be logged instead of mailed")
		return mail.NewLogSender(logger)
	}
	host, portStr, err := net.SplitHostPort(cfg.SMTPAddr)
	if err != nil {
		logger.Error("invalid SMTP_ADDR", "error", err)
		os.Exit(1)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Error("invalid SMTP_ADDR port", "error", err)
		os.Exit(1)
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	})
}

func reviewCriteria(cfg *config.Config) []review.Criterion {
	out := make([]review.Criterion, len(cfg.ReviewCriteria))
	for i, c := range cfg.ReviewCriteria {
		out[i] = review.Criterion{Key: c.Key, Label: c.Label}
	}
	return out
}
