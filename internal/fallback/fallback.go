// Package fallback produces locally generated MOCK bookings when the
// provider path cannot be used.
package fallback

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/normalize"
	"flight-booking-orchestrator/internal/reference"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const referencePrefix = "MOCK-"

// BookingStore is the part of database.Store the generator writes to.
type BookingStore interface {
	SaveBooking(ctx context.Context, result *models.BookingResult) error
	GetBookingByAttempt(ctx context.Context, attemptID string) (*models.BookingResult, error)
}

// Input carries what is known about the booking at fallback time.
// Offer may be nil when only raw data is available.
type Input struct {
	AttemptID      string                 `json:"attemptId"`
	Offer          *models.FlightOffer    `json:"offer,omitempty"`
	RawOffer       map[string]any         `json:"rawOffer,omitempty"`
	OfferDetails   *models.OfferDetails   `json:"offerDetails,omitempty"`
	Travelers      []models.TravelerName  `json:"travelers"`
	ProviderErrors []models.ProviderError `json:"providerErrors,omitempty"`
	Cause          models.FallbackCause   `json:"cause"`
}

type Generator struct {
	dir        *reference.Directory
	normalizer *normalize.Normalizer
	store      BookingStore
	logger     *zap.Logger
	now        func() time.Time
	newID      func() uuid.UUID
}

func NewGenerator(dir *reference.Directory, store BookingStore, logger *zap.Logger) *Generator {
	if dir == nil {
		dir = reference.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		dir:        dir,
		normalizer: normalize.New(dir),
		store:      store,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.New,
	}
}

// Generate creates and persists a MOCK booking for the attempt. Calling it
// again for the same attempt returns the stored booking.
func (g *Generator) Generate(ctx context.Context, in Input) (*models.BookingResult, error) {
	if in.AttemptID == "" {
		return nil, errors.New("fallback booking requires an attempt id")
	}

	existing, err := g.store.GetBookingByAttempt(ctx, in.AttemptID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrBookingNotFound) {
		return nil, err
	}

	result := g.build(in)
	if err := g.store.SaveBooking(ctx, result); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return g.store.GetBookingByAttempt(ctx, in.AttemptID)
		}
		return nil, err
	}

	g.logger.Info("Mock booking generated",
		zap.String("attemptID", in.AttemptID),
		zap.String("orderID", result.OrderID),
		zap.String("reference", result.Reference),
		zap.String("carrier", result.PrimaryCarrier),
		zap.String("cause", string(result.FallbackCause)),
		zap.Int("providerErrors", len(in.ProviderErrors)),
	)
	return result, nil
}

func (g *Generator) build(in Input) *models.BookingResult {
	now := g.now().UTC()
	id := g.newID()

	offer := in.Offer
	if offer == nil {
		// Normalization may fail on partial data; raw fields are used instead.
		offer, _ = g.normalizer.Offer(in.RawOffer, in.OfferDetails)
	}

	result := &models.BookingResult{
		Outcome:        models.OutcomeMock,
		OrderID:        OrderID(now, id),
		Reference:      Reference(id),
		AttemptID:      in.AttemptID,
		Travelers:      in.Travelers,
		FallbackCause:  in.Cause,
		ProviderErrors: in.ProviderErrors,
		CreatedAt:      now,
	}

	if offer != nil {
		result.PrimaryCarrier = offer.PrimaryCarrier()
		result.ItinerarySummary = offer.Summary()
		result.Segments = offer.Segments
		result.Price = offer.Price
	} else {
		result.PrimaryCarrier = g.rawCarrier(in)
		result.ItinerarySummary = rawSummary(in)
		result.Price = rawPrice(in)
	}
	if result.PrimaryCarrier == "" {
		result.PrimaryCarrier = models.UnknownCarrier
	}
	if result.FallbackCause == "" {
		result.FallbackCause = models.CauseProviderUnavailable
	}
	result.TicketNumber = TicketNumber(g.dir.TicketPrefix(result.PrimaryCarrier), id)
	return result
}

// OrderID is ORDER_<utc timestamp>_<8 hex digits>.
func OrderID(now time.Time, id uuid.UUID) string {
	return fmt.Sprintf("ORDER_%s_%s", now.UTC().Format("20060102150405"), hex.EncodeToString(id[:4]))
}

// Reference is MOCK- followed by six letters. Real PNRs are six
// alphanumerics without a prefix, so the two cannot be confused.
func Reference(id uuid.UUID) string {
	var b strings.Builder
	b.WriteString(referencePrefix)
	for _, c := range id[4:10] {
		b.WriteByte('A' + c%26)
	}
	return b.String()
}

// TicketNumber is the carrier's 3-digit prefix and 10 digits.
func TicketNumber(prefix string, id uuid.UUID) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, c := range id[6:16] {
		b.WriteByte('0' + c%10)
	}
	return b.String()
}

var (
	carrierKeys     = []string{"airline", "carrier", "carrier_name", "airline_name", "validating_airline", "flight_number"}
	originKeys      = []string{"origin", "from", "departure_airport"}
	destinationKeys = []string{"destination", "to", "arrival_airport"}
)

func (g *Generator) rawCarrier(in Input) string {
	candidates := rawStrings(in.RawOffer, carrierKeys)
	if d := in.OfferDetails; d != nil {
		candidates = append(candidates, d.Airline, d.FlightNumber)
	}
	for _, c := range candidates {
		if code, ok := normalize.ResolveCarrier(g.dir, c); ok {
			return code
		}
	}
	return ""
}

func rawSummary(in Input) string {
	origin := firstOf(rawStrings(in.RawOffer, originKeys))
	destination := firstOf(rawStrings(in.RawOffer, destinationKeys))
	if d := in.OfferDetails; d != nil {
		if origin == "" {
			origin = d.Origin
		}
		if destination == "" {
			destination = d.Destination
		}
	}
	if origin == "" || destination == "" {
		return ""
	}
	return strings.ToUpper(origin) + " → " + strings.ToUpper(destination)
}

func rawPrice(in Input) models.Price {
	text := firstOf(rawStrings(in.RawOffer, []string{"price", "total_price", "total"}))
	if text == "" && in.OfferDetails != nil {
		text = in.OfferDetails.Price
	}
	amount, currency, err := normalize.ParsePrice(text, normalize.DefaultCurrency)
	if err != nil {
		return models.Price{}
	}
	return models.Price{Currency: currency, Total: amount}
}

func rawStrings(raw map[string]any, keys []string) []string {
	var out []string
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func firstOf(values []string) string {
	if len(values) > 0 {
		return values[0]
	}
	return ""
}
