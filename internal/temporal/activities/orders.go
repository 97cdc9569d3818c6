package activities

import (
	"context"
	"errors"
	"fmt"

	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/models"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

type OrderActivities struct {
	Store database.Store
}

func NewOrderActivities(store database.Store) *OrderActivities {
	return &OrderActivities{Store: store}
}

// RecordBooking persists a confirmed booking. A retried call for the same
// attempt returns the stored record.
func (a *OrderActivities) RecordBooking(ctx context.Context, result *models.BookingResult) (*models.BookingResult, error) {
	existing, err := a.Store.GetBookingByAttempt(ctx, result.AttemptID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrBookingNotFound) {
		return nil, fmt.Errorf("failed to look up booking: %w", err)
	}

	if err := a.Store.SaveBooking(ctx, result); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			existing, getErr := a.Store.GetBookingByAttempt(ctx, result.AttemptID)
			if getErr != nil {
				// Same order id under another attempt is a permanent conflict.
				return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeDuplicateBooking, err)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("failed to record booking: %w", err)
	}

	activity.GetLogger(ctx).Info("Booking recorded",
		"orderID", result.OrderID, "reference", result.Reference, "outcome", string(result.Outcome))
	return result, nil
}

// UpdateAttemptStatus updates an attempt's status
func (a *OrderActivities) UpdateAttemptStatus(ctx context.Context, attemptID, status string, update database.AttemptUpdate) error {
	err := a.Store.UpdateAttemptStatus(ctx, attemptID, status, update)
	if err != nil {
		// Attempt not found is a permanent error - don't retry
		if errors.Is(err, database.ErrAttemptNotFound) {
			return temporal.NewNonRetryableApplicationError(
				err.Error(),
				ErrTypeAttemptNotFound,
				err,
			)
		}
		return fmt.Errorf("failed to update attempt status: %w", err)
	}
	return nil
}
