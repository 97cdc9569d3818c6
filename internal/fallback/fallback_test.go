package fallback

import (
	"context"
	"testing"
	"time"

	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/database/dbtest"
	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/normalize"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

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

func travelers() []models.TravelerName {
	return []models.TravelerName{{FirstName: "Ada", LastName: "Lovelace"}}
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g := NewGenerator(nil, dbtest.New(t), nil)
	g.now = func() time.Time { return fixedNow }
	return g
}

func storedBooking(t *testing.T, g *Generator, orderID string) *models.BookingResult {
	t.Helper()
	result, err := g.store.(*database.DB).GetBooking(context.Background(), orderID)
	require.NoError(t, err)
	return result
}

func TestGenerateFromOffer(t *testing.T) {
	g := newTestGenerator(t)
	offer, err := normalize.New(nil).Normalize(rawOffer())
	require.NoError(t, err)

	result, err := g.Generate(context.Background(), Input{
		AttemptID: "attempt-1",
		Offer:     offer,
		Travelers: travelers(),
		ProviderErrors: []models.ProviderError{
			{Status: 400, Code: 477, Family: "SCHEMA", Message: "INVALID FORMAT"},
		},
		Cause: models.CauseRequestRejected,
	})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeMock, result.Outcome)
	assert.Regexp(t, `^ORDER_20250601083000_[0-9a-f]{8}$`, result.OrderID)
	assert.Regexp(t, `^MOCK-[A-Z]{6}$`, result.Reference)
	assert.Regexp(t, `^027\d{10}$`, result.TicketNumber)
	assert.Equal(t, "AS", result.PrimaryCarrier)
	assert.Equal(t, "DCA → SEA", result.ItinerarySummary)
	assert.Equal(t, models.Price{Currency: "USD", Total: "168.02"}, result.Price)
	assert.Equal(t, offer.Segments, result.Segments)
	assert.Equal(t, models.CauseRequestRejected, result.FallbackCause)
	assert.Len(t, result.ProviderErrors, 1)

	stored := storedBooking(t, g, result.OrderID)
	assert.Equal(t, models.OutcomeMock, stored.Outcome)
	assert.Equal(t, result.Reference, stored.Reference)
}

func TestGenerateIsIdempotentPerAttempt(t *testing.T) {
	g := newTestGenerator(t)
	in := Input{AttemptID: "attempt-1", RawOffer: rawOffer(), Travelers: travelers()}

	first, err := g.Generate(context.Background(), in)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.Reference, second.Reference)
}

func TestGenerateDistinctAttempts(t *testing.T) {
	g := newTestGenerator(t)

	a, err := g.Generate(context.Background(), Input{AttemptID: "attempt-1", RawOffer: rawOffer(), Travelers: travelers()})
	require.NoError(t, err)
	b, err := g.Generate(context.Background(), Input{AttemptID: "attempt-2", RawOffer: rawOffer(), Travelers: travelers()})
	require.NoError(t, err)

	assert.NotEqual(t, a.OrderID, b.OrderID)
}

func TestGenerateFromPartialRawData(t *testing.T) {
	g := newTestGenerator(t)

	result, err := g.Generate(context.Background(), Input{
		AttemptID: "attempt-1",
		RawOffer: map[string]any{
			"airline":     "Alaska Airlines",
			"origin":      "dca",
			"destination": "sea",
			"price":       "168.02 USD",
		},
		Travelers: travelers(),
	})
	require.NoError(t, err)

	assert.Equal(t, "AS", result.PrimaryCarrier)
	assert.Equal(t, "DCA → SEA", result.ItinerarySummary)
	assert.Equal(t, "168.02", result.Price.Total)
	assert.Equal(t, models.CauseProviderUnavailable, result.FallbackCause)
}

func TestGenerateMarksUnknownCarrier(t *testing.T) {
	g := newTestGenerator(t)

	result, err := g.Generate(context.Background(), Input{
		AttemptID: "attempt-1",
		RawOffer:  map[string]any{"airline": "Acme Sky Tours", "origin": "DCA", "destination": "SEA"},
		Travelers: travelers(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.UnknownCarrier, result.PrimaryCarrier)
	assert.Regexp(t, `^000\d{10}$`, result.TicketNumber)
}

func TestGenerateFromOfferDetails(t *testing.T) {
	g := newTestGenerator(t)

	result, err := g.Generate(context.Background(), Input{
		AttemptID: "attempt-1",
		OfferDetails: &models.OfferDetails{
			Origin:        "DCA",
			Destination:   "SEA",
			DepartureDate: "2025-06-01",
			DepartureTime: "08:00",
			ArrivalTime:   "11:45",
			Airline:       "Alaska Airlines",
			FlightNumber:  "AS435",
			Price:         "168.02 USD",
		},
		Travelers: travelers(),
	})
	require.NoError(t, err)
	assert.Equal(t, "AS", result.PrimaryCarrier)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, "435", result.Segments[0].Number)
}

func TestIdentifierFormats(t *testing.T) {
	id := uuid.MustParse("1a2b3c4d-0000-1111-2222-333344445555")

	assert.Equal(t, "ORDER_20250601083000_1a2b3c4d", OrderID(fixedNow, id))
	assert.Regexp(t, `^MOCK-[A-Z]{6}$`, Reference(id))
	assert.Regexp(t, `^016\d{10}$`, TicketNumber("016", id))
}

func TestGenerateRequiresAttemptID(t *testing.T) {
	_, err := newTestGenerator(t).Generate(context.Background(), Input{RawOffer: rawOffer()})
	assert.Error(t, err)
}
