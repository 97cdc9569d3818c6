package workflows

import (
	"errors"
	"fmt"
	"time"

	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/fallback"
	"flight-booking-orchestrator/internal/gds"
	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/normalize"
	"flight-booking-orchestrator/internal/reference"
	"flight-booking-orchestrator/internal/temporal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	TaskQueue      = "booking-task-queue"
	QueryGetStatus = "getStatus"
)

// Application error types returned by BookingWorkflow.
const (
	ErrTypeMissingTravelerField = "MissingTravelerField"
	ErrTypeInvalidTravelerField = "InvalidTravelerField"
	ErrTypeMissingOfferData     = "MissingOfferData"
	ErrTypeInvalidAirportCode   = "InvalidAirportCode"
	ErrTypeUnresolvedCarrier    = "UnresolvedCarrier"
	ErrTypeInvalidSchedule      = "InvalidSchedule"
	ErrTypeInvalidPrice         = "InvalidPrice"
	ErrTypeInvalidOffer         = "InvalidOffer"
	ErrTypeInvalidAgreement     = "InvalidTicketingAgreement"
	ErrTypeBookingFailed        = "BookingFailed"
)

const bookingFailedMessage = "booking could not be completed"

// BookingWorkflow takes one booking attempt from raw offer to ticket. Any
// provider failure falls back to a MOCK booking; input errors fail the
// attempt before the provider is called.
func BookingWorkflow(ctx workflow.Context, input models.BookingInput) (*models.BookingOutcome, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("BookingWorkflow started", "attemptID", input.AttemptID)

	state := &models.BookingState{
		AttemptID: input.AttemptID,
		Status:    models.StatusReceived,
		History:   []string{models.StatusReceived},
		StartedAt: workflow.Now(ctx),
	}

	// Set up query handler for real-time status
	err := workflow.SetQueryHandler(ctx, QueryGetStatus, func() (*models.BookingState, error) {
		return state, nil
	})
	if err != nil {
		return nil, err
	}

	activityCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ErrTypeIncompleteBookingResult},
		},
	})

	// The same payload is resubmitted at most once, and only on transport
	// or 5xx failures.
	submitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 45 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    2,
			NonRetryableErrorTypes: []string{
				activities.ErrTypeAuthFailure,
				activities.ErrTypeProviderRejected,
				activities.ErrTypeUnknownProviderError,
			},
		},
	})

	var orderActivities *activities.OrderActivities
	var providerActivities *activities.ProviderActivities
	var fallbackActivities *activities.FallbackActivities
	var ticketActivities *activities.TicketActivities

	transition := func(status string, update database.AttemptUpdate) {
		state.Status = status
		state.History = append(state.History, status)
		err := workflow.ExecuteActivity(activityCtx, orderActivities.UpdateAttemptStatus,
			input.AttemptID, status, update).Get(ctx, nil)
		if err != nil {
			logger.Warn("Failed to record attempt status", "status", status, "error", err)
		}
	}

	fail := func(err error, message string) (*models.BookingOutcome, error) {
		state.Error = message
		transition(models.StatusFailed, database.AttemptUpdate{Error: message})
		logger.Info("BookingWorkflow failed", "attemptID", input.AttemptID, "error", message)
		return nil, err
	}

	transition(models.StatusNormalizing, database.AttemptUpdate{})

	offer, payload, err := prepare(input)
	if err != nil {
		logger.Warn("Booking input rejected", "error", err)
		return fail(inputError(err), err.Error())
	}

	transition(models.StatusSubmitting, database.AttemptUpdate{})

	var result *models.BookingResult
	var conf *gds.OrderConfirmation
	err = workflow.ExecuteActivity(submitCtx, providerActivities.SubmitBooking, input.AttemptID, payload).Get(ctx, &conf)
	if err == nil {
		transition(models.StatusConfirmed, database.AttemptUpdate{
			Outcome: string(models.OutcomeConfirmed),
			OrderID: conf.OrderID,
		})

		result = confirmedResult(input, offer, conf, workflow.Now(ctx))
		var stored *models.BookingResult
		if err := workflow.ExecuteActivity(activityCtx, orderActivities.RecordBooking, result).Get(ctx, &stored); err != nil {
			// The provider holds the booking; ticketing does not depend on the local record.
			logger.Error("Failed to record confirmed booking", "orderID", conf.OrderID, "error", err)
		} else {
			result = stored
		}
	} else {
		cause, providerErrors := classifyProviderFailure(err)
		if cause == models.CauseRequestRejected {
			logger.Error("Provider rejected the booking request as invalid",
				"attemptID", input.AttemptID, "errors", providerErrors)
		} else {
			logger.Warn("Provider booking failed, falling back",
				"attemptID", input.AttemptID, "cause", string(cause), "error", err)
		}

		transition(models.StatusFallingBack, database.AttemptUpdate{})

		err = workflow.ExecuteActivity(activityCtx, fallbackActivities.GenerateFallbackBooking, fallback.Input{
			AttemptID:      input.AttemptID,
			Offer:          offer,
			RawOffer:       input.RawOffer,
			OfferDetails:   input.OfferDetails,
			Travelers:      travelerNames(input.Travelers),
			ProviderErrors: providerErrors,
			Cause:          cause,
		}).Get(ctx, &result)
		if err != nil {
			logger.Error("Fallback booking failed", "error", err)
			return fail(temporal.NewNonRetryableApplicationError(bookingFailedMessage, ErrTypeBookingFailed, err), bookingFailedMessage)
		}
	}

	state.Outcome = result.Outcome
	state.OrderID = result.OrderID
	state.Reference = result.Reference
	transition(models.StatusTicketing, database.AttemptUpdate{
		Outcome: string(result.Outcome),
		OrderID: result.OrderID,
	})

	var artifact *models.TicketArtifact
	err = workflow.ExecuteActivity(activityCtx, ticketActivities.IssueTicket, result).Get(ctx, &artifact)
	if err != nil {
		logger.Error("Ticket generation failed", "orderID", result.OrderID, "error", err)
		return fail(temporal.NewNonRetryableApplicationError(bookingFailedMessage, ErrTypeBookingFailed, err), bookingFailedMessage)
	}

	state.DownloadURL = artifact.URL
	transition(models.StatusDone, database.AttemptUpdate{})

	logger.Info("BookingWorkflow completed",
		"attemptID", input.AttemptID, "orderID", result.OrderID, "outcome", string(result.Outcome))

	return &models.BookingOutcome{
		AttemptID:     input.AttemptID,
		Outcome:       result.Outcome,
		OrderID:       result.OrderID,
		Reference:     result.Reference,
		DownloadURL:   artifact.URL,
		FileName:      artifact.FileName,
		Summary:       summarize(result),
		FallbackCause: result.FallbackCause,
	}, nil
}

// prepare validates travelers, normalizes the offer and builds the
// provider payload. It is deterministic and performs no I/O.
func prepare(input models.BookingInput) (*models.FlightOffer, *gds.OrderRequest, error) {
	if err := gds.ValidateTravelers(input.Travelers); err != nil {
		return nil, nil, err
	}
	offer, err := normalize.New(reference.Default()).Offer(input.RawOffer, input.OfferDetails)
	if err != nil {
		return nil, nil, err
	}
	payload, err := gds.BuildPayload([]models.FlightOffer{*offer}, input.Travelers, input.Ticketing)
	if err != nil {
		return nil, nil, err
	}
	return offer, payload, nil
}

// inputError converts a preparation failure into a non-retryable
// application error whose type names the failure.
func inputError(err error) error {
	var missing *gds.MissingTravelerFieldError
	if errors.As(err, &missing) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeMissingTravelerField, nil, missing.Fields)
	}
	var invalid *gds.InvalidTravelerFieldError
	if errors.As(err, &invalid) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidTravelerField, nil, invalid.Fields)
	}

	var fields []string
	var nerr *normalize.Error
	if errors.As(err, &nerr) {
		fields = []string{nerr.Field}
	}

	errType := ErrTypeInvalidOffer
	switch {
	case errors.Is(err, normalize.ErrNoOfferData):
		errType = ErrTypeMissingOfferData
	case errors.Is(err, normalize.ErrInvalidAirportCode):
		errType = ErrTypeInvalidAirportCode
	case errors.Is(err, normalize.ErrUnresolvedCarrier):
		errType = ErrTypeUnresolvedCarrier
	case errors.Is(err, normalize.ErrInvalidSchedule):
		errType = ErrTypeInvalidSchedule
	case errors.Is(err, normalize.ErrInvalidPrice):
		errType = ErrTypeInvalidPrice
	case errors.Is(err, gds.ErrInvalidAgreement):
		errType = ErrTypeInvalidAgreement
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, nil, fields)
}

// classifyProviderFailure decides the fallback cause from the submission
// error. Failures without provider details count as unavailability.
func classifyProviderFailure(err error) (models.FallbackCause, []models.ProviderError) {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return models.CauseProviderUnavailable, nil
	}

	var details activities.ProviderFailure
	if appErr.HasDetails() {
		if derr := appErr.Details(&details); derr != nil {
			details = activities.ProviderFailure{}
		}
	}
	return gds.FallbackCause(details.Errors, appErr.Type() == activities.ErrTypeAuthFailure), details.Errors
}

func confirmedResult(input models.BookingInput, offer *models.FlightOffer, conf *gds.OrderConfirmation, now time.Time) *models.BookingResult {
	return &models.BookingResult{
		Outcome:          models.OutcomeConfirmed,
		OrderID:          conf.OrderID,
		Reference:        conf.Reference,
		AttemptID:        input.AttemptID,
		Price:            offer.Price,
		PrimaryCarrier:   offer.PrimaryCarrier(),
		ItinerarySummary: offer.Summary(),
		Segments:         offer.Segments,
		Travelers:        travelerNames(input.Travelers),
		CreatedAt:        now.UTC(),
	}
}

func travelerNames(travelers []models.Traveler) []models.TravelerName {
	names := make([]models.TravelerName, 0, len(travelers))
	for _, t := range travelers {
		names = append(names, t.Name())
	}
	return names
}

func summarize(r *models.BookingResult) string {
	trip := r.ItinerarySummary
	if trip == "" {
		trip = "your flight"
	}
	if r.Outcome == models.OutcomeMock {
		return fmt.Sprintf("Booking for %s recorded with reference %s (order %s, total %s %s). "+
			"The airline did not confirm this reservation.",
			trip, r.Reference, r.OrderID, r.Price.Total, r.Price.Currency)
	}
	return fmt.Sprintf("Booking for %s confirmed with %s, reference %s (order %s, total %s %s).",
		trip, r.PrimaryCarrier, r.Reference, r.OrderID, r.Price.Total, r.Price.Currency)
}
