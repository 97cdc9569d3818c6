package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/temporal/workflows"
	"flight-booking-orchestrator/internal/ticket"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

type TicketIssuer interface {
	Issue(ctx context.Context, result *models.BookingResult) (*models.TicketArtifact, error)
}

type Handler struct {
	Store     database.Store
	Runner    BookingRunner
	Tickets   TicketIssuer
	Logger    *zap.Logger
	Ticketing models.TicketingAgreement

	// WorkflowTimeout bounds how long CreateBooking waits for an outcome.
	WorkflowTimeout time.Duration
	PublicBaseURL   string

	// MissingCredentials names unset provider credentials; when non-empty
	// bookings still work but can only end as MOCK.
	MissingCredentials []string
}

func NewHandler(store database.Store, runner BookingRunner, tickets TicketIssuer, logger *zap.Logger) *Handler {
	return &Handler{
		Store:           store,
		Runner:          runner,
		Tickets:         tickets,
		Logger:          logger,
		Ticketing:       models.TicketingAgreement{Option: models.TicketingConfirm},
		WorkflowTimeout: 2 * time.Minute,
	}
}

// WorkflowID derives the workflow id of a booking attempt.
func WorkflowID(attemptID string) string {
	return "booking-" + attemptID
}

// Health check endpoint
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Logger.Warn("Health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Availability reports whether bookings can reach the provider.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if len(h.MissingCredentials) > 0 {
		json.NewEncoder(w).Encode(map[string]string{
			"status": "limited",
			"message": fmt.Sprintf("Provider credentials not configured (%s); bookings will be recorded without airline confirmation",
				strings.Join(h.MissingCredentials, ", ")),
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "available"})
}

// CreateBooking starts a booking attempt and waits for its outcome.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	attemptID := uuid.New().String()
	workflowID := WorkflowID(attemptID)
	logger := h.Logger.With(zap.String("attemptID", attemptID))

	now := time.Now().UTC()
	attempt := &models.Attempt{
		AttemptID:  attemptID,
		Status:     models.StatusReceived,
		WorkflowID: workflowID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Store.CreateAttempt(r.Context(), attempt); err != nil {
		logger.Error("Failed to create attempt", zap.Error(err))
		writeError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to record booking attempt"})
		return
	}

	input := models.BookingInput{
		AttemptID:    attemptID,
		RawOffer:     req.Offer,
		OfferDetails: req.OfferDetails,
		Travelers:    req.Travelers,
		Ticketing:    h.Ticketing,
	}
	runID, err := h.Runner.StartBooking(r.Context(), workflowID, input)
	if err != nil {
		logger.Error("Failed to start booking workflow", zap.Error(err))
		update := database.AttemptUpdate{Error: "failed to start workflow"}
		if uerr := h.Store.UpdateAttemptStatus(r.Context(), attemptID, models.StatusFailed, update); uerr != nil {
			logger.Warn("Failed to mark attempt failed", zap.Error(uerr))
		}
		writeError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to start booking", AttemptID: attemptID})
		return
	}

	if err := h.Store.SetAttemptRunID(r.Context(), attemptID, runID); err != nil {
		logger.Warn("Failed to record workflow run", zap.String("runID", runID), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.WorkflowTimeout)
	defer cancel()

	outcome, err := h.Runner.AwaitBooking(ctx, workflowID, runID)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Booking still running", zap.Duration("waited", h.WorkflowTimeout))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"attempt_id": attemptID,
				"status":     "PENDING",
			})
			return
		}
		status, body := bookingError(err)
		body.AttemptID = attemptID
		logger.Info("Booking attempt failed", zap.Int("status", status), zap.String("error", body.Error))
		writeError(w, status, body)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.CreateBookingResponse{
		BookingOutcome: *outcome,
		Status:         models.StatusDone,
	})
}

// bookingError maps a workflow failure to an HTTP status and body. Only
// input errors are described to the caller.
func bookingError(err error) (int, models.ErrorResponse) {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, models.ErrorResponse{Error: "booking could not be completed"}
	}

	var fields []string
	if appErr.HasDetails() {
		if derr := appErr.Details(&fields); derr != nil {
			fields = nil
		}
	}

	switch appErr.Type() {
	case workflows.ErrTypeMissingTravelerField, workflows.ErrTypeInvalidTravelerField, workflows.ErrTypeMissingOfferData:
		return http.StatusBadRequest, models.ErrorResponse{Error: appErr.Message(), Fields: fields}
	case workflows.ErrTypeInvalidAirportCode, workflows.ErrTypeUnresolvedCarrier, workflows.ErrTypeInvalidSchedule,
		workflows.ErrTypeInvalidPrice, workflows.ErrTypeInvalidOffer, workflows.ErrTypeInvalidAgreement:
		return http.StatusUnprocessableEntity, models.ErrorResponse{Error: appErr.Message(), Fields: fields}
	}
	return http.StatusInternalServerError, models.ErrorResponse{Error: "booking could not be completed"}
}

// GetBooking returns a stored booking with its ticket link.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	result, err := h.Store.GetBooking(r.Context(), orderID)
	if errors.Is(err, database.ErrBookingNotFound) {
		writeError(w, http.StatusNotFound, models.ErrorResponse{Error: "booking not found"})
		return
	}
	if err != nil {
		h.Logger.Error("Failed to load booking", zap.String("orderID", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load booking"})
		return
	}

	json.NewEncoder(w).Encode(struct {
		*models.BookingResult
		DownloadURL string `json:"download_url"`
	}{result, ticket.URL(h.PublicBaseURL, result.Reference, result.OrderID)})
}

// GetAttempt returns the stored attempt record, merged with the live
// workflow state while the workflow can still be queried.
func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]

	attempt, err := h.Store.GetAttempt(r.Context(), attemptID)
	if errors.Is(err, database.ErrAttemptNotFound) {
		writeError(w, http.StatusNotFound, models.ErrorResponse{Error: "attempt not found"})
		return
	}
	if err != nil {
		h.Logger.Error("Failed to load attempt", zap.String("attemptID", attemptID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load attempt"})
		return
	}

	resp := models.AttemptStatusResponse{Attempt: *attempt}
	state, err := h.Runner.BookingState(r.Context(), attempt.WorkflowID, attempt.RunID)
	if err != nil {
		// If workflow is not queryable, use database status
		h.Logger.Debug("Workflow query failed", zap.String("attemptID", attemptID), zap.Error(err))
	} else {
		resp.Live = true
		resp.Status = state.Status
		resp.History = state.History
		if state.OrderID != "" {
			resp.OrderID = state.OrderID
			resp.Outcome = string(state.Outcome)
		}
		if state.Error != "" {
			resp.Error = state.Error
		}
	}
	json.NewEncoder(w).Encode(resp)
}

// ReissueTicket regenerates the ticket for a stored booking. The file is
// only rendered when it does not exist yet.
func (h *Handler) ReissueTicket(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	result, err := h.Store.GetBooking(r.Context(), orderID)
	if errors.Is(err, database.ErrBookingNotFound) {
		writeError(w, http.StatusNotFound, models.ErrorResponse{Error: "booking not found"})
		return
	}
	if err != nil {
		h.Logger.Error("Failed to load booking", zap.String("orderID", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load booking"})
		return
	}

	artifact, err := h.Tickets.Issue(r.Context(), result)
	if err != nil {
		var incomplete *ticket.IncompleteBookingResultError
		if errors.As(err, &incomplete) {
			writeError(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error(), Fields: incomplete.Fields})
			return
		}
		h.Logger.Error("Failed to issue ticket", zap.String("orderID", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to issue ticket"})
		return
	}
	json.NewEncoder(w).Encode(artifact)
}

func writeError(w http.ResponseWriter, status int, body models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
