package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flight-booking-orchestrator/internal/api"
	"flight-booking-orchestrator/internal/bootstrap"
	"flight-booking-orchestrator/internal/config"
	"flight-booking-orchestrator/internal/logging"
	"flight-booking-orchestrator/internal/reference"
	"flight-booking-orchestrator/internal/ticket"

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

	artifacts, err := ticket.NewDirStore(cfg.TicketDir)
	if err != nil {
		logger.Fatal("Failed to prepare ticket directory", zap.Error(err))
	}
	tickets := ticket.NewGenerator(reference.Default(), ticket.NewPDFRenderer(), artifacts, cfg.PublicBaseURL, logger)

	// Create API handler
	runner := &api.TemporalRunner{Client: temporalClient, TaskQueue: cfg.TaskQueue}
	handler := api.NewHandler(store, runner, tickets, logger)
	handler.Ticketing = cfg.TicketingAgreement()
	handler.WorkflowTimeout = cfg.WorkflowTimeout
	handler.PublicBaseURL = cfg.PublicBaseURL
	handler.MissingCredentials = bootstrap.MissingCredentials(cfg)
	if len(handler.MissingCredentials) > 0 {
		logger.Warn("Provider credentials missing, bookings will fall back",
			zap.Strings("missing", handler.MissingCredentials))
	}

	// Create router
	router := api.NewRouter(handler, artifacts.Root())

	// Create HTTP server. Booking requests wait for the workflow, so the
	// write timeout leaves room beyond the workflow timeout.
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WorkflowTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
