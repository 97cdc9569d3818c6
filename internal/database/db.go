package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flight-booking-orchestrator/internal/models"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors for non-retriable conditions
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrDuplicate       = errors.New("record already exists")
)

// Store persists booking results, raw provider responses and attempts.
// Booking results and raw responses are write-once.
type Store interface {
	SaveBooking(ctx context.Context, result *models.BookingResult) error
	GetBooking(ctx context.Context, orderID string) (*models.BookingResult, error)
	GetBookingByAttempt(ctx context.Context, attemptID string) (*models.BookingResult, error)
	SaveRawResponse(ctx context.Context, resp *models.RawResponse) error
	ListRawResponses(ctx context.Context, attemptID string) ([]models.RawResponse, error)
	CreateAttempt(ctx context.Context, attempt *models.Attempt) error
	GetAttempt(ctx context.Context, attemptID string) (*models.Attempt, error)
	UpdateAttemptStatus(ctx context.Context, attemptID, status string, update AttemptUpdate) error
	SetAttemptRunID(ctx context.Context, attemptID, runID string) error
	Ping(ctx context.Context) error
	Close() error
}

// AttemptUpdate carries optional fields written alongside a status change.
type AttemptUpdate struct {
	Outcome string
	OrderID string
	Error   string
}

type DB struct {
	*sql.DB
	driver string
}

// NewDB opens a SQL store. driver is "mysql" or "sqlite".
func NewDB(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if driver == "sqlite" {
		// An in-memory database lives in a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, driver: driver}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS booking_results (
		order_id VARCHAR(128) NOT NULL PRIMARY KEY,
		attempt_id VARCHAR(64) NOT NULL UNIQUE,
		outcome VARCHAR(16) NOT NULL,
		reference VARCHAR(32) NOT NULL,
		data MEDIUMTEXT NOT NULL,
		created_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS raw_responses (
		response_key VARCHAR(160) NOT NULL PRIMARY KEY,
		attempt_id VARCHAR(64) NOT NULL,
		status_code INT NOT NULL,
		body MEDIUMTEXT NOT NULL,
		recorded_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booking_attempts (
		attempt_id VARCHAR(64) NOT NULL PRIMARY KEY,
		status VARCHAR(32) NOT NULL,
		outcome VARCHAR(16) NOT NULL DEFAULT '',
		order_id VARCHAR(128) NOT NULL DEFAULT '',
		error_message TEXT,
		workflow_id VARCHAR(128) NOT NULL,
		run_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// isDuplicateKey reports a primary or unique key violation on either driver.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
