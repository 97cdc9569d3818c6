package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"flight-booking-orchestrator/internal/bootstrap"
	"flight-booking-orchestrator/internal/config"
	"flight-booking-orchestrator/internal/fallback"
	"flight-booking-orchestrator/internal/gds"
	"flight-booking-orchestrator/internal/logging"
	"flight-booking-orchestrator/internal/reference"
	"flight-booking-orchestrator/internal/temporal/activities"
	"flight-booking-orchestrator/internal/temporal/workflows"
	"flight-booking-orchestrator/internal/ticket"

	"github.com/go-redis/redis/v8"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	store, err := bootstrap.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	temporalClient, err := bootstrap.DialTemporal(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	var tokens gds.TokenCache = gds.NewMemoryTokenCache()
	if cfg.TokenCache == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		tokens = gds.NewRedisTokenCache(rdb)
		logger.Info("Using Redis token cache", zap.String("addr", cfg.RedisAddr))
	}

	if missing := bootstrap.MissingCredentials(cfg); len(missing) > 0 {
		logger.Warn("Provider credentials missing, bookings will fall back", zap.Strings("missing", missing))
	}

	provider := gds.NewClient(gds.Options{
		BaseURL:      cfg.GDSBaseURL,
		ClientID:     cfg.GDSClientID,
		ClientSecret: cfg.GDSClientSecret,
		Timeout:      cfg.GDSTimeout,
		RateLimit:    cfg.GDSRateLimit,
		Burst:        cfg.GDSRateBurst,
		Cache:        tokens,
		Recorder:     store,
		Logger:       logger.Named("gds"),
	})

	artifacts, err := ticket.NewDirStore(cfg.TicketDir)
	if err != nil {
		logger.Fatal("Failed to prepare ticket directory", zap.Error(err))
	}
	dir := reference.Default()

	// Create worker
	w := worker.New(temporalClient, cfg.TaskQueue, worker.Options{})

	// Register workflows
	w.RegisterWorkflow(workflows.BookingWorkflow)

	// Register activities
	w.RegisterActivity(activities.NewOrderActivities(store))
	w.RegisterActivity(activities.NewProviderActivities(provider))
	w.RegisterActivity(activities.NewFallbackActivities(fallback.NewGenerator(dir, store, logger.Named("fallback"))))
	w.RegisterActivity(activities.NewTicketActivities(
		ticket.NewGenerator(dir, ticket.NewPDFRenderer(), artifacts, cfg.PublicBaseURL, logger.Named("ticket"))))

	// Start worker
	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start worker", zap.Error(err))
	}

	logger.Info("Worker started successfully", zap.String("taskQueue", cfg.TaskQueue))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	w.Stop()
	logger.Info("Worker stopped")
}
