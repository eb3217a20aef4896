package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/fallstrom/kvittofri-backend/api/routes"
	"github.com/fallstrom/kvittofri-backend/internal/billing"
	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/internal/fraud"
	"github.com/fallstrom/kvittofri-backend/internal/matching"
	"github.com/fallstrom/kvittofri-backend/internal/pos"
	"github.com/fallstrom/kvittofri-backend/internal/storecodes"
	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
	"github.com/fallstrom/kvittofri-backend/pkg/migrate"
	"github.com/fallstrom/kvittofri-backend/pkg/redis"
)

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

	feed, err := pos.NewGormFeed(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create pos feed", err)
		os.Exit(1)
	}
	matchingService, err := matching.NewService(feed, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create matching service", err)
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
			cfg, logg, dbClient, redisClient,
			verificationService, billingService, storeCodeService, matchingService, businessRepo,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
