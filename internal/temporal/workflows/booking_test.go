package workflows

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/database/dbtest"
	"flight-booking-orchestrator/internal/fallback"
	"flight-booking-orchestrator/internal/gds"
	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/temporal/activities"
	"flight-booking-orchestrator/internal/ticket"

	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

const baseURL = "https://agent.example.com"

type fakeSubmitter struct {
	mu       sync.Mutex
	calls    int
	payloads []*gds.OrderRequest
	conf     *gds.OrderConfirmation
	err      error
}

func (f *fakeSubmitter) CreateOrder(_ context.Context, _ string, payload *gds.OrderRequest) (*gds.OrderConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payloads = append(f.payloads, payload)
	return f.conf, f.err
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type textRenderer struct{}

func (textRenderer) Render(w io.Writer, doc *ticket.Document) error {
	_, err := io.WriteString(w, doc.Text())
	return err
}

type BookingWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env       *testsuite.TestWorkflowEnvironment
	db        *database.DB
	provider  *fakeSubmitter
	ticketDir string
}

func TestBookingWorkflow(t *testing.T) {
	suite.Run(t, new(BookingWorkflowTestSuite))
}

func (s *BookingWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.db = dbtest.New(s.T())
	s.provider = &fakeSubmitter{}
	s.ticketDir = s.T().TempDir()

	store, err := ticket.NewDirStore(s.ticketDir)
	s.Require().NoError(err)

	s.env.RegisterActivity(activities.NewOrderActivities(s.db))
	s.env.RegisterActivity(activities.NewProviderActivities(s.provider))
	s.env.RegisterActivity(activities.NewFallbackActivities(fallback.NewGenerator(nil, s.db, nil)))
	s.env.RegisterActivity(activities.NewTicketActivities(ticket.NewGenerator(nil, textRenderer{}, store, baseURL, nil)))

	s.Require().NoError(s.db.CreateAttempt(context.Background(), &models.Attempt{
		AttemptID:  "attempt-1",
		Status:     models.StatusReceived,
		WorkflowID: "booking-attempt-1",
	}))
}

func (s *BookingWorkflowTestSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func rawOffer() map[string]any {
	return map[string]any{
		"airline":        "ALASKA AIRLINES",
		"flight_number":  "AS435",
		"origin":         "DCA",
		"destination":    "SEA",
		"departure_date": "2025-06-01",
		"departure_time": "08:00",
		"arrival_time":   "11:45",
		"duration":       "5h 45m",
		"price":          "168.02 USD",
	}
}

func traveler() models.Traveler {
	return models.Traveler{
		DateOfBirth: "1990-12-10",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Gender:      models.GenderFemale,
		Email:       "ada@example.com",
		Phone:       models.Phone{CountryCallingCode: "1", Number: "2065550100"},
	}
}

func bookingInput() models.BookingInput {
	return models.BookingInput{
		AttemptID: "attempt-1",
		RawOffer:  rawOffer(),
		Travelers: []models.Traveler{traveler()},
		Ticketing: models.TicketingAgreement{Option: models.TicketingConfirm},
	}
}

func (s *BookingWorkflowTestSuite) outcome() *models.BookingOutcome {
	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())
	var out models.BookingOutcome
	s.Require().NoError(s.env.GetWorkflowResult(&out))
	return &out
}

func (s *BookingWorkflowTestSuite) workflowErrorType() string {
	s.Require().True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Require().Error(err)
	var appErr *temporal.ApplicationError
	s.Require().True(errors.As(err, &appErr), "unexpected error %v", err)
	return appErr.Type()
}

func (s *BookingWorkflowTestSuite) state() models.BookingState {
	val, err := s.env.QueryWorkflow(QueryGetStatus)
	s.Require().NoError(err)
	var st models.BookingState
	s.Require().NoError(val.Get(&st))
	return st
}

func (s *BookingWorkflowTestSuite) attempt() *models.Attempt {
	a, err := s.db.GetAttempt(context.Background(), "attempt-1")
	s.Require().NoError(err)
	return a
}

func (s *BookingWorkflowTestSuite) ticketFiles() []string {
	entries, err := os.ReadDir(s.ticketDir)
	s.Require().NoError(err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (s *BookingWorkflowTestSuite) Test_ConfirmedBooking() {
	s.provider.conf = &gds.OrderConfirmation{OrderID: "eJzTd9f3NjIJdzUGAAp%2fAiY=", Reference: "QSYT6R", Status: 201}

	s.env.ExecuteWorkflow(BookingWorkflow, bookingInput())
	out := s.outcome()

	s.Equal(models.OutcomeConfirmed, out.Outcome)
	s.Equal("QSYT6R", out.Reference)
	s.Equal(ticket.URL(baseURL, "QSYT6R", "eJzTd9f3NjIJdzUGAAp%2fAiY="), out.DownloadURL)
	s.Equal(baseURL+"/bookings/eticket_QSYT6R_eJzTd9f3NjIJdzUGAAp%2fAiY=.pdf", out.DownloadURL)
	s.Equal("eticket_QSYT6R_eJzTd9f3NjIJdzUGAAp%2fAiY=.pdf", out.FileName)
	s.Empty(out.FallbackCause)
	s.Contains(out.Summary, "DCA → SEA")

	s.Require().Equal(1, s.provider.Calls())
	sent := s.provider.payloads[0].Data.FlightOffers[0]
	s.Equal("168.02", sent.Price.Total)
	s.Equal("AS", sent.Itineraries[0].Segments[0].CarrierCode)
	s.Equal("DCA", sent.Itineraries[0].Segments[0].Departure.IATACode)
	s.Equal("SEA", sent.Itineraries[0].Segments[0].Arrival.IATACode)

	stored, err := s.db.GetBooking(context.Background(), "eJzTd9f3NjIJdzUGAAp%2fAiY=")
	s.Require().NoError(err)
	s.Equal(models.OutcomeConfirmed, stored.Outcome)
	s.Equal("AS", stored.PrimaryCarrier)

	s.Equal([]string{
		models.StatusReceived, models.StatusNormalizing, models.StatusSubmitting,
		models.StatusConfirmed, models.StatusTicketing, models.StatusDone,
	}, s.state().History)

	a := s.attempt()
	s.Equal(models.StatusDone, a.Status)
	s.Equal("CONFIRMED", a.Outcome)
	s.Len(s.ticketFiles(), 1)
}

func (s *BookingWorkflowTestSuite) Test_SchemaRejectionFallsBack() {
	s.provider.err = &gds.ProviderRejection{
		Status: 400,
		Errors: []models.ProviderError{{
			Status:  400,
			Code:    477,
			Family:  string(gds.FamilySchema),
			Message: "INVALID FORMAT",
			Path:    "/data/flightOffers[0]/itineraries[0]/segments[0]/carrierCode",
		}},
	}

	s.env.ExecuteWorkflow(BookingWorkflow, bookingInput())
	out := s.outcome()

	s.Equal(models.OutcomeMock, out.Outcome)
	s.Regexp(`^ORDER_\d{14}_[0-9a-f]{8}$`, out.OrderID)
	s.Regexp(`^MOCK-[A-Z]{6}$`, out.Reference)
	s.Regexp(`^https://agent\.example\.com/bookings/eticket_MOCK-[A-Z]{6}_ORDER_\d{14}_[0-9a-f]{8}\.pdf$`, out.DownloadURL)
	s.Equal(models.CauseRequestRejected, out.FallbackCause)
	s.Equal(1, s.provider.Calls())

	stored, err := s.db.GetBooking(context.Background(), out.OrderID)
	s.Require().NoError(err)
	s.Equal(models.OutcomeMock, stored.Outcome)
	s.Equal("AS", stored.PrimaryCarrier)
	s.Require().Len(stored.ProviderErrors, 1)
	s.Equal(477, stored.ProviderErrors[0].Code)

	s.Equal([]string{
		models.StatusReceived, models.StatusNormalizing, models.StatusSubmitting,
		models.StatusFallingBack, models.StatusTicketing, models.StatusDone,
	}, s.state().History)
	s.Equal("MOCK", s.attempt().Outcome)
	s.Len(s.ticketFiles(), 1)
}

func (s *BookingWorkflowTestSuite) Test_AuthFailureFallsBack() {
	s.provider.err = &gds.AuthFailureError{Status: 401, Err: errors.New("invalid_client")}

	s.env.ExecuteWorkflow(BookingWorkflow, bookingInput())
	out := s.outcome()

	s.Equal(models.OutcomeMock, out.Outcome)
	s.Equal(models.CauseAuthFailure, out.FallbackCause)
	s.Equal(1, s.provider.Calls())
}

func (s *BookingWorkflowTestSuite) Test_TransientFailureRetriesOnceThenFallsBack() {
	s.provider.err = &gds.UnknownProviderError{Status: 503, Body: "Service Unavailable"}

	s.env.ExecuteWorkflow(BookingWorkflow, bookingInput())
	out := s.outcome()

	s.Equal(models.OutcomeMock, out.Outcome)
	s.Equal(models.CauseProviderUnavailable, out.FallbackCause)
	s.Equal(2, s.provider.Calls())
}

func (s *BookingWorkflowTestSuite) Test_MissingLastNameFailsWithoutProviderCall() {
	input := bookingInput()
	input.Travelers[0].LastName = ""

	s.env.ExecuteWorkflow(BookingWorkflow, input)

	s.Equal(ErrTypeMissingTravelerField, s.workflowErrorType())
	s.Zero(s.provider.Calls())
	s.Empty(s.ticketFiles())

	a := s.attempt()
	s.Equal(models.StatusFailed, a.Status)
	s.Contains(a.Error, "Missing traveler information: last_name")
	s.Equal([]string{models.StatusReceived, models.StatusNormalizing, models.StatusFailed}, s.state().History)
}

func (s *BookingWorkflowTestSuite) Test_UnresolvedCarrierFailsWithoutFallback() {
	input := bookingInput()
	input.RawOffer["airline"] = "Acme Sky Tours"
	input.RawOffer["flight_number"] = "435"

	s.env.ExecuteWorkflow(BookingWorkflow, input)

	s.Equal(ErrTypeUnresolvedCarrier, s.workflowErrorType())
	s.Zero(s.provider.Calls())
	s.Empty(s.ticketFiles())
	s.Equal(models.StatusFailed, s.attempt().Status)
}

func (s *BookingWorkflowTestSuite) Test_InvalidAirportFails() {
	input := bookingInput()
	input.RawOffer["destination"] = "somewhere nice"

	s.env.ExecuteWorkflow(BookingWorkflow, input)

	s.Equal(ErrTypeInvalidAirportCode, s.workflowErrorType())
	s.Zero(s.provider.Calls())
}

func (s *BookingWorkflowTestSuite) Test_OfferReconstructedFromDetails() {
	s.provider.conf = &gds.OrderConfirmation{OrderID: "O-1", Reference: "ABC123"}

	input := bookingInput()
	input.RawOffer = nil
	input.OfferDetails = &models.OfferDetails{
		Origin:        "DCA",
		Destination:   "SEA",
		DepartureDate: "2025-06-01",
		DepartureTime: "08:00",
		ArrivalTime:   "11:45",
		Airline:       "Alaska Airlines",
		FlightNumber:  "AS435",
		Price:         "$168.02",
	}

	s.env.ExecuteWorkflow(BookingWorkflow, input)
	out := s.outcome()
	s.Equal(models.OutcomeConfirmed, out.Outcome)
	s.Equal("O-1", out.OrderID)
}

func (s *BookingWorkflowTestSuite) Test_NoOfferDataFails() {
	input := bookingInput()
	input.RawOffer = nil

	s.env.ExecuteWorkflow(BookingWorkflow, input)

	s.Equal(ErrTypeMissingOfferData, s.workflowErrorType())
	s.Zero(s.provider.Calls())
}
