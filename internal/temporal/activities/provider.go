package activities

import (
	"context"
	"errors"

	"flight-booking-orchestrator/internal/gds"
	"flight-booking-orchestrator/internal/models"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Application error types raised by activities.
const (
	ErrTypeAuthFailure             = "AuthFailure"
	ErrTypeProviderRejected        = "ProviderRejected"
	ErrTypeProviderUnavailable     = "ProviderUnavailable"
	ErrTypeUnknownProviderError    = "UnknownProviderError"
	ErrTypeIncompleteBookingResult = "IncompleteBookingResult"
	ErrTypeAttemptNotFound         = "AttemptNotFound"
	ErrTypeDuplicateBooking        = "DuplicateBooking"
)

// ProviderFailure is attached as details to provider errors so the workflow
// can decide the fallback cause.
type ProviderFailure struct {
	Status int                    `json:"status"`
	Errors []models.ProviderError `json:"errors,omitempty"`
}

// OrderSubmitter is implemented by *gds.Client.
type OrderSubmitter interface {
	CreateOrder(ctx context.Context, attemptID string, payload *gds.OrderRequest) (*gds.OrderConfirmation, error)
}

type ProviderActivities struct {
	Client OrderSubmitter
}

func NewProviderActivities(client OrderSubmitter) *ProviderActivities {
	return &ProviderActivities{Client: client}
}

// SubmitBooking sends the order to the provider once. Only transport
// failures and 5xx responses are returned as retryable.
func (a *ProviderActivities) SubmitBooking(ctx context.Context, attemptID string, payload *gds.OrderRequest) (*gds.OrderConfirmation, error) {
	logger := activity.GetLogger(ctx)

	conf, err := a.Client.CreateOrder(ctx, attemptID, payload)
	if err == nil {
		return conf, nil
	}

	var (
		auth      *gds.AuthFailureError
		rejection *gds.ProviderRejection
		unknown   *gds.UnknownProviderError
	)
	switch {
	case errors.As(err, &auth):
		logger.Warn("Provider authentication failed", "attemptID", attemptID, "status", auth.Status, "error", err)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeAuthFailure, err,
			ProviderFailure{Status: auth.Status})

	case errors.As(err, &rejection):
		details := ProviderFailure{Status: rejection.Status, Errors: rejection.Errors}
		if rejection.Transient() {
			return nil, temporal.NewApplicationError(err.Error(), ErrTypeProviderUnavailable, details)
		}
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeProviderRejected, err, details)

	case errors.As(err, &unknown):
		details := ProviderFailure{Status: unknown.Status}
		if unknown.Transient() {
			return nil, temporal.NewApplicationError(err.Error(), ErrTypeProviderUnavailable, details)
		}
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUnknownProviderError, err, details)

	default:
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUnknownProviderError, err)
	}
}
