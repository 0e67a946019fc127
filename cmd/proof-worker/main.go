package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adhera-labs/adhera-backend/internal/entitlements"
	"github.com/adhera-labs/adhera-backend/internal/jobs"
	"github.com/adhera-labs/adhera-backend/internal/proof"
	"github.com/adhera-labs/adhera-backend/pkg/config"
	"github.com/adhera-labs/adhera-backend/pkg/db"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
	"github.com/adhera-labs/adhera-backend/pkg/metrics"
	"github.com/adhera-labs/adhera-backend/pkg/migrate"
	"github.com/adhera-labs/adhera-backend/pkg/redis"
	"github.com/adhera-labs/adhera-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "proof-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "proof-worker"

	logg = logger.New(logger.Options{
		ServiceName: "proof-worker",
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

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	backfillJob, err := jobs.NewProofBackfillJob(jobs.ProofBackfillJobParams{
		Logger:      logg,
		Repo:        repo,
		Resolver:    resolver,
		Metrics:     jobMetrics,
		BatchSize:   cfg.Worker.BatchSize,
		MaxAttempts: cfg.Worker.MaxProofAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create proof backfill job", err)
		os.Exit(1)
	}

	lock, err := jobs.NewRedisLock(redisClient, redisClient.LockKey("proof-worker"), cfg.Worker.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := jobs.NewService(jobs.ServiceParams{
		Logger:   logg,
		Registry: jobs.NewRegistry(backfillJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Worker.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	go serveMetrics(ctx, logg, cfg.Worker.MetricsPort)

	logg.Info(ctx, "starting proof worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "proof worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "proof worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
