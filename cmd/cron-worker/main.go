package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fallstrom/kvittofri-backend/internal/billing"
	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/internal/cron"
	"github.com/fallstrom/kvittofri-backend/internal/exports"
	"github.com/fallstrom/kvittofri-backend/internal/fraud"
	"github.com/fallstrom/kvittofri-backend/internal/notifications"
	"github.com/fallstrom/kvittofri-backend/internal/settlement"
	"github.com/fallstrom/kvittofri-backend/internal/storecodes"
	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
	"github.com/fallstrom/kvittofri-backend/pkg/metrics"
	"github.com/fallstrom/kvittofri-backend/pkg/migrate"
	"github.com/fallstrom/kvittofri-backend/pkg/pubsub"
	"github.com/fallstrom/kvittofri-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	businessRepo := businesses.NewRepository(dbClient.DB())
	verificationRepo := verifications.NewRepository(dbClient.DB())
	batchRepo := billing.NewRepository(dbClient.DB())

	storeCodeService, err := storecodes.NewService(storecodes.NewRepository(dbClient.DB()), businessRepo, cfg.Verification)
	if err != nil {
		logg.Error(context.Background(), "failed to create store code service", err)
		os.Exit(1)
	}

	scorer, err := fraud.NewScorer(fraud.NewHistory(dbClient.DB()), cfg.Fraud, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fraud scorer", err)
		os.Exit(1)
	}

	verificationService, err := verifications.NewService(
		verificationRepo, businessRepo, storeCodeService, scorer, dbClient, cfg.Verification, logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create verification service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(batchRepo, verificationRepo, dbClient, cfg.Verification, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}
	verificationService.AttachTotalsRecomputer(billingService)

	settlementExecutor, err := settlement.NewPubSubExecutor(pubsubClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement executor", err)
		os.Exit(1)
	}

	sender, err := notifications.NewPubSubSender(pubsubClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification sender", err)
		os.Exit(1)
	}
	notificationService, err := notifications.NewService(sender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	renderer, err := exports.NewCSVRenderer(cfg.Exports.Dir)
	if err != nil {
		logg.Error(context.Background(), "failed to create export renderer", err)
		os.Exit(1)
	}

	deadlineJob, err := cron.NewDeadlineEnforcementJob(cron.DeadlineJobParams{
		Logger:        logg,
		Client:        dbClient,
		Batches:       batchRepo,
		Billing:       billingService,
		Verifications: verificationRepo,
		Reviewer:      verificationService,
		Businesses:    businessRepo,
		Settlement:    settlementExecutor,
		Notifications: notificationService,
		Config:        cfg.Verification,
		BatchTimeout:  cfg.Cron.BatchTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create deadline job", err)
		os.Exit(1)
	}

	aggregationJob, err := cron.NewMonthlyAggregationJob(cron.AggregationJobParams{
		Logger:        logg,
		Billing:       billingService,
		Businesses:    businessRepo,
		Verifications: verificationRepo,
		Notifications: notificationService,
		Renderer:      renderer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create aggregation job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:      logg,
		Registry:    cron.NewRegistry(aggregationJob, deadlineJob),
		LockFactory: cron.NewRedisLockFactory(redisClient, cfg.Cron.LockTTL),
		Metrics:     metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:    cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
