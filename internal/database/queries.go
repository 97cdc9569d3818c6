package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flight-booking-orchestrator/internal/models"
)

const timeLayout = time.RFC3339Nano

// SaveBooking writes a booking result once. A second write for the same
// order or attempt returns ErrDuplicate.
func (db *DB) SaveBooking(ctx context.Context, result *models.BookingResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode booking: %w", err)
	}

	query := `
		INSERT INTO booking_results (order_id, attempt_id, outcome, reference, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query, result.OrderID, result.AttemptID, string(result.Outcome),
		result.Reference, string(data), result.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("booking %s: %w", result.OrderID, ErrDuplicate)
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}

	return nil
}

// GetBooking retrieves a booking result by order ID
func (db *DB) GetBooking(ctx context.Context, orderID string) (*models.BookingResult, error) {
	return db.getBooking(ctx, `SELECT data FROM booking_results WHERE order_id = ?`, orderID)
}

// GetBookingByAttempt retrieves the booking result produced by an attempt
func (db *DB) GetBookingByAttempt(ctx context.Context, attemptID string) (*models.BookingResult, error) {
	return db.getBooking(ctx, `SELECT data FROM booking_results WHERE attempt_id = ?`, attemptID)
}

func (db *DB) getBooking(ctx context.Context, query, key string) (*models.BookingResult, error) {
	var data string
	err := db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	var result models.BookingResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to decode booking: %w", err)
	}
	return &result, nil
}

// SaveRawResponse archives a provider response body
func (db *DB) SaveRawResponse(ctx context.Context, resp *models.RawResponse) error {
	query := `
		INSERT INTO raw_responses (response_key, attempt_id, status_code, body, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query, resp.Key, resp.AttemptID, resp.StatusCode, resp.Body,
		resp.RecordedAt.UTC().Format(timeLayout))
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("raw response %s: %w", resp.Key, ErrDuplicate)
		}
		return fmt.Errorf("failed to save raw response: %w", err)
	}

	return nil
}

// ListRawResponses returns the archived responses of an attempt, oldest first
func (db *DB) ListRawResponses(ctx context.Context, attemptID string) ([]models.RawResponse, error) {
	query := `
		SELECT response_key, attempt_id, status_code, body, recorded_at
		FROM raw_responses
		WHERE attempt_id = ?
		ORDER BY recorded_at
	`

	rows, err := db.QueryContext(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw responses: %w", err)
	}
	defer rows.Close()

	var out []models.RawResponse
	for rows.Next() {
		var r models.RawResponse
		var recordedAt string
		if err := rows.Scan(&r.Key, &r.AttemptID, &r.StatusCode, &r.Body, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raw response: %w", err)
		}
		r.RecordedAt, _ = time.Parse(timeLayout, recordedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateAttempt creates a new booking attempt
func (db *DB) CreateAttempt(ctx context.Context, attempt *models.Attempt) error {
	now := time.Now().UTC()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = attempt.CreatedAt

	query := `
		INSERT INTO booking_attempts (attempt_id, status, outcome, order_id, error_message, workflow_id, run_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query, attempt.AttemptID, attempt.Status, attempt.Outcome, attempt.OrderID,
		attempt.Error, attempt.WorkflowID, attempt.RunID,
		attempt.CreatedAt.Format(timeLayout), attempt.UpdatedAt.Format(timeLayout))
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("attempt %s: %w", attempt.AttemptID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create attempt: %w", err)
	}

	return nil
}

// GetAttempt retrieves an attempt by ID
func (db *DB) GetAttempt(ctx context.Context, attemptID string) (*models.Attempt, error) {
	query := `
		SELECT attempt_id, status, outcome, order_id, error_message, workflow_id, run_id, created_at, updated_at
		FROM booking_attempts
		WHERE attempt_id = ?
	`

	var a models.Attempt
	var errMsg sql.NullString
	var createdAt, updatedAt string
	err := db.QueryRowContext(ctx, query, attemptID).Scan(
		&a.AttemptID, &a.Status, &a.Outcome, &a.OrderID, &errMsg,
		&a.WorkflowID, &a.RunID, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	a.Error = errMsg.String
	a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	a.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &a, nil
}

// SetAttemptRunID records the workflow run of an attempt without touching
// its status, which the workflow may already have advanced.
func (db *DB) SetAttemptRunID(ctx context.Context, attemptID, runID string) error {
	result, err := db.ExecContext(ctx, `UPDATE booking_attempts SET run_id = ? WHERE attempt_id = ?`, runID, attemptID)
	if err != nil {
		return fmt.Errorf("failed to set attempt run id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// UpdateAttemptStatus updates an attempt's status. Empty update fields keep
// their stored values.
func (db *DB) UpdateAttemptStatus(ctx context.Context, attemptID, status string, update AttemptUpdate) error {
	query := `
		UPDATE booking_attempts
		SET status = ?,
			outcome = CASE WHEN ? = '' THEN outcome ELSE ? END,
			order_id = CASE WHEN ? = '' THEN order_id ELSE ? END,
			error_message = CASE WHEN ? = '' THEN error_message ELSE ? END,
			updated_at = ?
		WHERE attempt_id = ?
	`

	result, err := db.ExecContext(ctx, query, status,
		update.Outcome, update.Outcome,
		update.OrderID, update.OrderID,
		update.Error, update.Error,
		time.Now().UTC().Format(timeLayout), attemptID)
	if err != nil {
		return fmt.Errorf("failed to update attempt status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAttemptNotFound
	}

	return nil
}
