package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/adhera-labs/adhera-backend/api/routes"
	checkoutsvc "github.com/adhera-labs/adhera-backend/internal/checkout"
	"github.com/adhera-labs/adhera-backend/internal/entitlements"
	"github.com/adhera-labs/adhera-backend/internal/notify"
	"github.com/adhera-labs/adhera-backend/internal/proof"
	"github.com/adhera-labs/adhera-backend/internal/reconcile"
	"github.com/adhera-labs/adhera-backend/internal/status"
	stripewebhook "github.com/adhera-labs/adhera-backend/internal/webhooks/stripe"
	"github.com/adhera-labs/adhera-backend/pkg/config"
	"github.com/adhera-labs/adhera-backend/pkg/db"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
	"github.com/adhera-labs/adhera-backend/pkg/migrate"
	"github.com/adhera-labs/adhera-backend/pkg/redis"
	"github.com/adhera-labs/adhera-backend/pkg/stripe"
)

const webhookIdempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	directoryClient, err := status.NewClient(cfg.Directory)
	if err != nil {
		logg.Error(context.Background(), "failed to create directory client", err)
		os.Exit(1)
	}

	smtpSender, err := notify.NewSMTPSender(cfg.SMTP)
	if err != nil {
		logg.Error(context.Background(), "failed to create smtp sender", err)
		os.Exit(1)
	}
	dispatcher, err := notify.NewDispatcher(smtpSender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail dispatcher", err)
		os.Exit(1)
	}

	repo := entitlements.NewRepository(dbClient.DB())

	resolver, err := proof.NewResolver(proof.ResolverParams{
		Provider:    stripeClient,
		Repo:        repo,
		Logger:      logg,
		MaxAttempts: cfg.Worker.MaxProofAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create proof resolver", err)
		os.Exit(1)
	}
	proofQueue := proof.NewQueue(resolver, logg)

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Provider:  stripeClient,
		Repo:      repo,
		Directory: directoryClient,
		Notifier:  dispatcher,
		Proofs:    proofQueue,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	entitlementService, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:     repo,
		Provider: stripeClient,
		Status:   directoryClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Provider:  stripeClient,
		Directory: directoryClient,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Reconciler: reconcileService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			reconcileService,
			entitlementService,
			resolver,
			stripeClient,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
