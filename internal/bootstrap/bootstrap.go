// Package bootstrap builds the shared runtime dependencies of the server
// and worker binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"flight-booking-orchestrator/internal/config"
	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/database/mongostore"
	"flight-booking-orchestrator/internal/logging"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// OpenStore connects the configured storage backend and prepares its schema.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (database.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.StoreBackend {
	case "mongo":
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		return store, nil
	default:
		db, err := database.NewDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Connected to database", zap.String("driver", cfg.DatabaseDriver))
		return db, nil
	}
}

// DialTemporal connects to Temporal with SDK logs routed through logger.
func DialTemporal(cfg *config.Config, logger *zap.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalAddress,
		Logger:   logging.NewTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}
	logger.Info("Connected to Temporal", zap.String("address", cfg.TemporalAddress))
	return c, nil
}

// MissingCredentials lists the provider credential keys left empty.
func MissingCredentials(cfg *config.Config) []string {
	var missing []string
	if cfg.GDSClientID == "" {
		missing = append(missing, "GDS_CLIENT_ID")
	}
	if cfg.GDSClientSecret == "" {
		missing = append(missing, "GDS_CLIENT_SECRET")
	}
	return missing
}
