package config

import (
	"errors"
	"fmt"
	"time"

	"flight-booking-orchestrator/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT" validate:"required"`
	Env        string `mapstructure:"ENV"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	// Storage
	StoreBackend   string `mapstructure:"STORE_BACKEND" validate:"oneof=sql mongo"`
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER" validate:"oneof=mysql sqlite"`
	DatabaseDSN    string `mapstructure:"DATABASE_DSN" validate:"required_if=StoreBackend sql"`
	MongoURI       string `mapstructure:"MONGO_URI" validate:"required_if=StoreBackend mongo"`
	MongoDatabase  string `mapstructure:"MONGO_DATABASE"`

	TemporalAddress string        `mapstructure:"TEMPORAL_ADDRESS" validate:"required"`
	TaskQueue       string        `mapstructure:"TASK_QUEUE" validate:"required"`
	WorkflowTimeout time.Duration `mapstructure:"WORKFLOW_TIMEOUT" validate:"gt=0"`

	// Booking provider
	GDSBaseURL      string        `mapstructure:"GDS_BASE_URL" validate:"required,url"`
	GDSClientID     string        `mapstructure:"GDS_CLIENT_ID"`
	GDSClientSecret string        `mapstructure:"GDS_CLIENT_SECRET"`
	GDSTimeout      time.Duration `mapstructure:"GDS_TIMEOUT" validate:"gt=0"`
	GDSRateLimit    float64       `mapstructure:"GDS_RATE_LIMIT" validate:"gte=0"`
	GDSRateBurst    int           `mapstructure:"GDS_RATE_BURST" validate:"gte=1"`

	// Token cache
	TokenCache    string `mapstructure:"TOKEN_CACHE" validate:"oneof=memory redis"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	TicketingOption string        `mapstructure:"TICKETING_OPTION" validate:"oneof=CONFIRM DELAY_TO_CANCEL"`
	TicketingDelay  time.Duration `mapstructure:"TICKETING_DELAY"`

	// Ticket artifacts
	TicketDir     string `mapstructure:"TICKET_DIR" validate:"required"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL" validate:"required,url"`
}

// Load reads config.yaml from the working directory or ./config, then
// environment variables. A missing file is not an error.
func Load() (*Config, error) {
	return load(".", "./config")
}

func load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", "sql")
	v.SetDefault("DATABASE_DRIVER", "mysql")
	v.SetDefault("DATABASE_DSN", "booking_user:booking_pass@tcp(localhost:3306)/flight_booking?parseTime=true&clientFoundRows=true")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "flight_booking")
	v.SetDefault("TEMPORAL_ADDRESS", "localhost:7233")
	v.SetDefault("TASK_QUEUE", "booking-task-queue")
	v.SetDefault("WORKFLOW_TIMEOUT", "2m")
	v.SetDefault("GDS_BASE_URL", "https://test.api.amadeus.com")
	v.SetDefault("GDS_CLIENT_ID", "")
	v.SetDefault("GDS_CLIENT_SECRET", "")
	v.SetDefault("GDS_TIMEOUT", "30s")
	v.SetDefault("GDS_RATE_LIMIT", 10)
	v.SetDefault("GDS_RATE_BURST", 1)
	v.SetDefault("TOKEN_CACHE", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TICKETING_OPTION", models.TicketingConfirm)
	v.SetDefault("TICKETING_DELAY", "0s")
	v.SetDefault("TICKET_DIR", "./bookings")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.TicketingOption == models.TicketingDelayToCancel && c.TicketingDelay <= 0 {
		return errors.New("invalid config: TICKETING_DELAY must be positive for DELAY_TO_CANCEL")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) TicketingAgreement() models.TicketingAgreement {
	agreement := models.TicketingAgreement{Option: c.TicketingOption}
	if c.TicketingOption == models.TicketingDelayToCancel {
		agreement.Delay = c.TicketingDelay
	}
	return agreement
}
