// Package normalize turns loosely structured search results into
// provider-valid flight offers.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/reference"
)

const DefaultCurrency = "USD"

// Normalizer is stateless apart from its read-only directory, so it is safe
// to use from workflow code.
type Normalizer struct {
	dir *reference.Directory
}

func New(dir *reference.Directory) *Normalizer {
	if dir == nil {
		dir = reference.Default()
	}
	return &Normalizer{dir: dir}
}

// Offer normalizes the raw offer, or one reconstructed from details when no
// search data is available.
func (n *Normalizer) Offer(raw map[string]any, details *models.OfferDetails) (*models.FlightOffer, error) {
	if len(raw) == 0 {
		if details == nil {
			return nil, ErrNoOfferData
		}
		raw = FromDetails(*details)
	}
	return n.Normalize(raw)
}

// Normalize accepts either a provider-shaped offer (itineraries/segments with
// departure/arrival objects) or a flat search result with free-text fields.
func (n *Normalizer) Normalize(raw map[string]any) (*models.FlightOffer, error) {
	if len(raw) == 0 {
		return nil, ErrNoOfferData
	}

	offerCarrier := firstString(raw, "carrier", "airline", "carrier_name", "airline_name")

	legs := n.rawLegs(raw)
	if len(legs) == 0 {
		return nil, fieldError(ErrInvalidSchedule, "segments", "")
	}

	offer := &models.FlightOffer{
		ID:        firstString(raw, "id", "offer_id"),
		FareClass: FareClass(n.fareClass(raw)),
	}
	if offer.ID == "" {
		offer.ID = "1"
	}

	legDurations := n.legDurations(raw)
	for leg, segs := range legs {
		for i, seg := range segs {
			field := fmt.Sprintf("segments[%d]", len(offer.Segments))
			s, err := n.segment(seg, offerCarrier, field)
			if err != nil {
				return nil, err
			}
			s.ID = strconv.Itoa(len(offer.Segments) + 1)
			s.Leg = leg
			// A single-segment leg inherits the itinerary duration.
			if i == 0 && len(segs) == 1 && s.Duration == "" && leg < len(legDurations) {
				s.Duration = legDurations[leg]
			}
			offer.Segments = append(offer.Segments, s)
		}
	}

	validating, err := n.validatingCarrier(raw, offerCarrier)
	if err != nil {
		return nil, err
	}
	if validating == "" {
		validating = offer.Segments[0].CarrierCode
	}
	offer.ValidatingAirlineCode = validating

	price, err := n.price(raw)
	if err != nil {
		return nil, err
	}
	offer.Price = price

	return offer, nil
}

func (n *Normalizer) rawLegs(raw map[string]any) [][]map[string]any {
	var legs [][]map[string]any
	for _, it := range maps(raw["itineraries"]) {
		if segs := maps(it["segments"]); len(segs) > 0 {
			legs = append(legs, segs)
		}
	}
	if len(legs) > 0 {
		return legs
	}

	if segs := maps(raw["segments"]); len(segs) > 0 {
		legs = append(legs, segs)
	}
	if segs := maps(raw["return_segments"]); len(segs) > 0 {
		legs = append(legs, segs)
	}
	if len(legs) > 0 {
		return legs
	}

	// A flat offer is its own single segment.
	if firstString(raw, "origin", "from", "departure_airport") != "" {
		return [][]map[string]any{{raw}}
	}
	return nil
}

func (n *Normalizer) legDurations(raw map[string]any) []string {
	var out []string
	for _, it := range maps(raw["itineraries"]) {
		d, err := ParseDuration(firstString(it, "duration"))
		if err != nil {
			d = ""
		}
		out = append(out, d)
	}
	return out
}

func (n *Normalizer) segment(seg map[string]any, offerCarrier, field string) (models.Segment, error) {
	var s models.Segment
	var err error

	s.Departure, err = n.endpoint(seg, "departure", []string{"departure_airport", "origin", "from"},
		[]string{"departure_date", "date"}, []string{"departure_time", "departure_at", "depart"}, field+".departure")
	if err != nil {
		return s, err
	}
	s.Arrival, err = n.endpoint(seg, "arrival", []string{"arrival_airport", "destination", "to"},
		[]string{"arrival_date", "departure_date", "date"}, []string{"arrival_time", "arrival_at", "arrive"}, field+".arrival")
	if err != nil {
		return s, err
	}

	number := firstString(seg, "number", "flight_number", "flight")
	prefix, digits, hasPrefix := SplitFlightNumber(number)
	if hasPrefix {
		number = digits
	}

	carrierText := firstString(seg, "carrierCode", "carrier_code", "carrier", "airline", "marketing_carrier")
	candidates := []string{carrierText, offerCarrier}
	if hasPrefix {
		candidates = append(candidates, prefix)
	}
	for _, c := range candidates {
		if code, ok := ResolveCarrier(n.dir, c); ok {
			s.CarrierCode = code
			break
		}
	}
	if s.CarrierCode == "" {
		return s, fieldError(ErrUnresolvedCarrier, field+".carrier", firstNonEmpty(carrierText, offerCarrier))
	}

	number = strings.TrimSpace(number)
	if number == "" || !isFlightNumber(number) {
		return s, fieldError(ErrInvalidSchedule, field+".number", number)
	}
	s.Number = number

	s.OperatingCarrierCode = s.CarrierCode
	opText := firstString(seg, "operating_carrier", "operated_by")
	if op, ok := seg["operating"].(map[string]any); ok {
		opText = firstNonEmpty(firstString(op, "carrierCode", "carrier_code", "carrier"), opText)
	}
	if opText != "" {
		code, ok := ResolveCarrier(n.dir, opText)
		if !ok {
			return s, fieldError(ErrUnresolvedCarrier, field+".operating", opText)
		}
		s.OperatingCarrierCode = code
	}

	if d := firstString(seg, "duration"); d != "" {
		s.Duration, err = ParseDuration(d)
		if err != nil {
			return s, fieldError(ErrInvalidSchedule, field+".duration", d)
		}
	}

	if stops, ok := firstInt(seg, "numberOfStops", "stops", "number_of_stops"); ok {
		if stops < 0 {
			return s, fieldError(ErrInvalidSchedule, field+".stops", strconv.Itoa(stops))
		}
		s.NumberOfStops = stops
	}

	return s, nil
}

// endpoint reads either a nested {iataCode, terminal, at} object or flat
// airport/date/time fields.
func (n *Normalizer) endpoint(seg map[string]any, key string, airportKeys, dateKeys, timeKeys []string, field string) (models.Endpoint, error) {
	var ep models.Endpoint
	var airportText, terminal, date, clock string

	if nested, ok := seg[key].(map[string]any); ok {
		airportText = firstString(nested, "iataCode", "iata_code", "airport", "code")
		terminal = firstString(nested, "terminal")
		clock = firstString(nested, "at", "time")
		date = firstString(nested, "date")
	} else {
		airportText = firstString(seg, airportKeys...)
		date = firstString(seg, dateKeys...)
		clock = firstString(seg, timeKeys...)
	}

	code, embedded, err := ParseAirport(n.dir, airportText)
	if err != nil {
		return ep, fieldError(ErrInvalidAirportCode, field, airportText)
	}
	ep.IATACode = code
	ep.Terminal = strings.ToUpper(firstNonEmpty(terminal, embedded))

	ep.At, err = JoinDateTime(date, clock)
	if err != nil {
		return ep, fieldError(ErrInvalidSchedule, field+".at", strings.TrimSpace(date+" "+clock))
	}
	return ep, nil
}

func (n *Normalizer) validatingCarrier(raw map[string]any, offerCarrier string) (string, error) {
	text := firstString(raw, "validatingAirlineCode", "validating_airline")
	if codes, ok := raw["validatingAirlineCodes"].([]any); ok && len(codes) > 0 {
		text = firstNonEmpty(stringOf(codes[0]), text)
	}
	if text == "" {
		// The free-text airline only counts when it resolves; the first
		// segment's carrier is used otherwise.
		code, _ := ResolveCarrier(n.dir, offerCarrier)
		return code, nil
	}
	code, ok := ResolveCarrier(n.dir, text)
	if !ok {
		return "", fieldError(ErrUnresolvedCarrier, "validatingAirlineCode", text)
	}
	return code, nil
}

func (n *Normalizer) fareClass(raw map[string]any) string {
	if c := firstString(raw, "fare_class", "fareClass", "cabin", "travel_class"); c != "" {
		return c
	}
	for _, tp := range maps(raw["travelerPricings"]) {
		for _, fd := range maps(tp["fareDetailsBySegment"]) {
			if c := firstString(fd, "cabin"); c != "" {
				return c
			}
		}
	}
	return ""
}

func (n *Normalizer) price(raw map[string]any) (models.Price, error) {
	var p models.Price

	text, currency, base := "", "", ""
	switch v := raw["price"].(type) {
	case map[string]any:
		text = firstString(v, "grandTotal", "total", "amount")
		currency = firstString(v, "currency")
		base = firstString(v, "base")
	case nil:
		text = firstString(raw, "total_price", "amount", "fare")
		currency = firstString(raw, "currency")
	default:
		text = stringOf(v)
		currency = firstString(raw, "currency")
	}
	if text == "" {
		return p, fieldError(ErrInvalidPrice, "price", "")
	}

	amount, parsedCurrency, err := ParsePrice(text, DefaultCurrency)
	if err != nil {
		return p, fieldError(ErrInvalidPrice, "price", text)
	}
	p.Total = amount
	p.Currency = strings.ToUpper(firstNonEmpty(currency, parsedCurrency))
	if base != "" {
		if p.Base, err = FormatAmount(base); err != nil {
			return p, fieldError(ErrInvalidPrice, "price.base", base)
		}
	}
	return p, nil
}

// FromDetails rebuilds a flat raw offer from caller-supplied details.
func FromDetails(d models.OfferDetails) map[string]any {
	raw := map[string]any{
		"origin":         d.Origin,
		"destination":    d.Destination,
		"departure_date": d.DepartureDate,
		"departure_time": d.DepartureTime,
		"arrival_date":   firstNonEmpty(d.ArrivalDate, d.DepartureDate),
		"arrival_time":   d.ArrivalTime,
		"airline":        d.Airline,
		"flight_number":  d.FlightNumber,
		"price":          d.Price,
		"fare_class":     d.FareClass,
	}
	if d.Duration != "" {
		raw["duration"] = d.Duration
	}
	return raw
}

func isFlightNumber(s string) bool {
	if len(s) == 0 || len(s) > 5 {
		return false
	}
	for i, r := range s {
		if r >= '0' && r <= '9' {
			continue
		}
		if i == len(s)-1 && r >= 'A' && r <= 'Z' && i > 0 {
			continue
		}
		return false
	}
	return true
}
