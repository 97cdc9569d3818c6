package models

import (
	"strings"
	"time"
)

// Booking attempt states
const (
	StatusReceived    = "RECEIVED"
	StatusNormalizing = "NORMALIZING"
	StatusSubmitting  = "SUBMITTING"
	StatusConfirmed   = "CONFIRMED"
	StatusFallingBack = "FALLING_BACK"
	StatusTicketing   = "TICKETING"
	StatusDone        = "DONE"
	StatusFailed      = "FAILED"
)

// Outcome tags a BookingResult with its provenance.
type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeMock      Outcome = "MOCK"
)

func (o Outcome) Valid() bool {
	return o == OutcomeConfirmed || o == OutcomeMock
}

// FallbackCause records why a MOCK booking was produced.
type FallbackCause string

const (
	CauseAuthFailure         FallbackCause = "AUTH_FAILURE"
	CauseProviderUnavailable FallbackCause = "PROVIDER_UNAVAILABLE"
	CauseRequestRejected     FallbackCause = "REQUEST_REJECTED"
)

// Ticketing agreement options
const (
	TicketingConfirm       = "CONFIRM"
	TicketingDelayToCancel = "DELAY_TO_CANCEL"
)

// UnknownCarrier marks a carrier that could not be determined.
const UnknownCarrier = "UNKNOWN"

// Endpoint is one end of a segment. At is a local timestamp without zone.
type Endpoint struct {
	IATACode string `json:"iataCode"`
	Terminal string `json:"terminal,omitempty"`
	At       string `json:"at"`
}

type Segment struct {
	ID                   string   `json:"id"`
	Leg                  int      `json:"leg"`
	Departure            Endpoint `json:"departure"`
	Arrival              Endpoint `json:"arrival"`
	CarrierCode          string   `json:"carrierCode"`
	Number               string   `json:"number"`
	OperatingCarrierCode string   `json:"operatingCarrierCode"`
	Duration             string   `json:"duration,omitempty"`
	NumberOfStops        int      `json:"numberOfStops"`
}

// Price amounts are decimal strings with two fraction digits.
type Price struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
	Base     string `json:"base,omitempty"`
}

type FlightOffer struct {
	ID                    string    `json:"id"`
	Segments              []Segment `json:"segments"`
	Price                 Price     `json:"price"`
	FareClass             string    `json:"fareClass"`
	ValidatingAirlineCode string    `json:"validatingAirlineCode"`
}

// PrimaryCarrier returns the validating airline, or the first segment's carrier.
func (o *FlightOffer) PrimaryCarrier() string {
	if o == nil {
		return ""
	}
	if o.ValidatingAirlineCode != "" {
		return o.ValidatingAirlineCode
	}
	if len(o.Segments) > 0 {
		return o.Segments[0].CarrierCode
	}
	return ""
}

// Summary renders the airports visited in order, e.g. "DCA → SEA".
func (o *FlightOffer) Summary() string {
	if o == nil || len(o.Segments) == 0 {
		return ""
	}
	stops := []string{o.Segments[0].Departure.IATACode}
	for i, s := range o.Segments {
		if i > 0 && s.Departure.IATACode != stops[len(stops)-1] {
			stops = append(stops, s.Departure.IATACode)
		}
		stops = append(stops, s.Arrival.IATACode)
	}
	return strings.Join(stops, " → ")
}

// OfferDetails is what a caller supplies when no previous search data exists.
type OfferDetails struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	DepartureTime string `json:"departure_time"`
	ArrivalDate   string `json:"arrival_date,omitempty"`
	ArrivalTime   string `json:"arrival_time"`
	Airline       string `json:"airline"`
	FlightNumber  string `json:"flight_number,omitempty"`
	Duration      string `json:"duration,omitempty"`
	Price         string `json:"price"`
	FareClass     string `json:"fare_class,omitempty"`
}

type TravelerName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (n TravelerName) String() string {
	return strings.TrimSpace(n.FirstName + " " + n.LastName)
}

// ProviderError is one entry of a provider error envelope.
type ProviderError struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Family  string `json:"family"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// BookingResult is immutable once persisted.
type BookingResult struct {
	Outcome          Outcome         `json:"outcome"`
	OrderID          string          `json:"order_id"`
	Reference        string          `json:"reference"`
	AttemptID        string          `json:"attempt_id"`
	Price            Price           `json:"price"`
	PrimaryCarrier   string          `json:"primary_carrier"`
	ItinerarySummary string          `json:"itinerary_summary"`
	Segments         []Segment       `json:"segments"`
	Travelers        []TravelerName  `json:"travelers"`
	TicketNumber     string          `json:"ticket_number,omitempty"`
	FallbackCause    FallbackCause   `json:"fallback_cause,omitempty"`
	ProviderErrors   []ProviderError `json:"provider_errors,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type TicketArtifact struct {
	OrderID   string  `json:"order_id"`
	Reference string  `json:"reference"`
	Outcome   Outcome `json:"outcome"`
	FileName  string  `json:"file_name"`
	URL       string  `json:"url"`
}

// RawResponse is a provider response body archived for audit.
type RawResponse struct {
	Key        string    `json:"key"`
	AttemptID  string    `json:"attempt_id"`
	StatusCode int       `json:"status_code"`
	Body       string    `json:"body"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Attempt tracks one booking workflow.
type Attempt struct {
	AttemptID  string    `json:"attemptId"`
	Status     string    `json:"status"`
	Outcome    string    `json:"outcome,omitempty"`
	OrderID    string    `json:"orderId,omitempty"`
	Error      string    `json:"error,omitempty"`
	WorkflowID string    `json:"workflowId"`
	RunID      string    `json:"runId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type TicketingAgreement struct {
	Option string        `json:"option"`
	Delay  time.Duration `json:"delay"`
}

// BookingInput represents workflow input
type BookingInput struct {
	AttemptID    string             `json:"attemptId"`
	RawOffer     map[string]any     `json:"rawOffer,omitempty"`
	OfferDetails *OfferDetails      `json:"offerDetails,omitempty"`
	Travelers    []Traveler         `json:"travelers"`
	Ticketing    TicketingAgreement `json:"ticketing"`
}

// BookingState represents the current workflow state
type BookingState struct {
	AttemptID   string    `json:"attemptId"`
	Status      string    `json:"status"`
	History     []string  `json:"history"`
	Outcome     Outcome   `json:"outcome,omitempty"`
	OrderID     string    `json:"orderId,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
}

// BookingOutcome is the caller-facing result of a booking attempt.
type BookingOutcome struct {
	AttemptID     string        `json:"attempt_id"`
	Outcome       Outcome       `json:"outcome"`
	OrderID       string        `json:"order_id"`
	Reference     string        `json:"reference"`
	DownloadURL   string        `json:"download_url"`
	FileName      string        `json:"file_name"`
	Summary       string        `json:"summary"`
	FallbackCause FallbackCause `json:"fallback_cause,omitempty"`
}

// API Request/Response models

type CreateBookingRequest struct {
	Offer        map[string]any `json:"offer,omitempty"`
	OfferDetails *OfferDetails  `json:"offer_details,omitempty"`
	Travelers    []Traveler     `json:"travelers"`
}

type CreateBookingResponse struct {
	BookingOutcome
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error     string   `json:"error"`
	Fields    []string `json:"fields,omitempty"`
	AttemptID string   `json:"attempt_id,omitempty"`
}

type AttemptStatusResponse struct {
	Attempt
	History []string `json:"history,omitempty"`
	Live    bool     `json:"live"`
}
