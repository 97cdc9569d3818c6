package activities

import (
	"context"
	"errors"

	"flight-booking-orchestrator/internal/fallback"
	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/ticket"

	"go.temporal.io/sdk/temporal"
)

type FallbackGenerator interface {
	Generate(ctx context.Context, in fallback.Input) (*models.BookingResult, error)
}

type FallbackActivities struct {
	Generator FallbackGenerator
}

func NewFallbackActivities(g FallbackGenerator) *FallbackActivities {
	return &FallbackActivities{Generator: g}
}

// GenerateFallbackBooking creates the MOCK booking for a failed submission.
func (a *FallbackActivities) GenerateFallbackBooking(ctx context.Context, in fallback.Input) (*models.BookingResult, error) {
	return a.Generator.Generate(ctx, in)
}

type TicketIssuer interface {
	Issue(ctx context.Context, result *models.BookingResult) (*models.TicketArtifact, error)
}

type TicketActivities struct {
	Generator TicketIssuer
}

func NewTicketActivities(g TicketIssuer) *TicketActivities {
	return &TicketActivities{Generator: g}
}

// IssueTicket renders and publishes the e-ticket for a booking result.
func (a *TicketActivities) IssueTicket(ctx context.Context, result *models.BookingResult) (*models.TicketArtifact, error) {
	artifact, err := a.Generator.Issue(ctx, result)
	if err != nil {
		var incomplete *ticket.IncompleteBookingResultError
		if errors.As(err, &incomplete) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeIncompleteBookingResult, err,
				incomplete.Fields)
		}
		return nil, err
	}
	return artifact, nil
}
