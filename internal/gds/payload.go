package gds

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/normalize"

	"github.com/go-playground/validator/v10"
)

// OrderRequest is the flight-order request body.
type OrderRequest struct {
	Data OrderData `json:"data"`
}

type OrderData struct {
	Type               string             `json:"type"`
	FlightOffers       []Offer            `json:"flightOffers"`
	Travelers          []Traveler         `json:"travelers"`
	TicketingAgreement TicketingAgreement `json:"ticketingAgreement"`
}

type TicketingAgreement struct {
	Option string `json:"option"`
	Delay  string `json:"delay,omitempty"`
}

type Offer struct {
	Type                   string          `json:"type"`
	ID                     string          `json:"id"`
	Source                 string          `json:"source"`
	Itineraries            []Itinerary     `json:"itineraries"`
	Price                  Price           `json:"price"`
	ValidatingAirlineCodes []string        `json:"validatingAirlineCodes"`
	TravelerPricings       []TravelerPrice `json:"travelerPricings"`
}

type Itinerary struct {
	Segments []Segment `json:"segments"`
}

type Segment struct {
	ID            string     `json:"id"`
	Departure     Endpoint   `json:"departure"`
	Arrival       Endpoint   `json:"arrival"`
	CarrierCode   string     `json:"carrierCode"`
	Number        string     `json:"number"`
	Operating     *Operating `json:"operating,omitempty"`
	Duration      string     `json:"duration,omitempty"`
	NumberOfStops int        `json:"numberOfStops"`
}

type Endpoint struct {
	IATACode string `json:"iataCode"`
	Terminal string `json:"terminal,omitempty"`
	At       string `json:"at"`
}

type Operating struct {
	CarrierCode string `json:"carrierCode"`
}

type Price struct {
	Currency   string `json:"currency"`
	Total      string `json:"total"`
	Base       string `json:"base,omitempty"`
	GrandTotal string `json:"grandTotal,omitempty"`
}

type TravelerPrice struct {
	TravelerID           string       `json:"travelerId"`
	FareOption           string       `json:"fareOption"`
	TravelerType         string       `json:"travelerType"`
	Price                Price        `json:"price"`
	FareDetailsBySegment []FareDetail `json:"fareDetailsBySegment"`
}

type FareDetail struct {
	SegmentID string `json:"segmentId"`
	Cabin     string `json:"cabin"`
}

type Traveler struct {
	ID          string  `json:"id"`
	DateOfBirth string  `json:"dateOfBirth"`
	Name        Name    `json:"name"`
	Gender      string  `json:"gender,omitempty"`
	Contact     Contact `json:"contact"`
}

type Name struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Contact struct {
	EmailAddress string  `json:"emailAddress"`
	Phones       []Phone `json:"phones"`
}

type Phone struct {
	DeviceType         string `json:"deviceType"`
	CountryCallingCode string `json:"countryCallingCode"`
	Number             string `json:"number"`
}

var (
	validate      = newValidator()
	amountPattern = regexp.MustCompile(`^\d+\.\d{2}$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateTravelers checks every traveler before any network call. Missing
// fields win over malformed ones so the caller is asked for data first.
func ValidateTravelers(travelers []models.Traveler) error {
	if len(travelers) == 0 {
		return &MissingTravelerFieldError{Fields: []string{"travelers"}}
	}
	for i, t := range travelers {
		t.Gender = models.NormalizeGender(t.Gender)
		err := validate.Struct(t)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate traveler %d: %w", i, err)
		}
		var missing, invalid []string
		for _, fe := range verrs {
			field := travelerField(fe.Namespace())
			if fe.Tag() == "required" {
				missing = appendUnique(missing, field)
			} else {
				invalid = appendUnique(invalid, field)
			}
		}
		if len(missing) > 0 {
			return &MissingTravelerFieldError{Traveler: i, Fields: missing}
		}
		return &InvalidTravelerFieldError{Traveler: i, Fields: invalid}
	}
	return nil
}

// travelerField maps "Traveler.phone.number" to "phone".
func travelerField(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		return parts[1]
	}
	return namespace
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// BuildPayload assembles the order request. It is a pure function of its
// inputs and embeds no generation timestamp.
func BuildPayload(offers []models.FlightOffer, travelers []models.Traveler, agreement models.TicketingAgreement) (*OrderRequest, error) {
	if err := ValidateTravelers(travelers); err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, fmt.Errorf("%w: no offers", ErrInvalidOffer)
	}

	ta, err := ticketingAgreement(agreement)
	if err != nil {
		return nil, err
	}

	wireTravelers := make([]Traveler, len(travelers))
	travelerIDs := make([]string, len(travelers))
	for i, t := range travelers {
		id := t.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		travelerIDs[i] = id
		wireTravelers[i] = wireTraveler(id, t)
	}

	wireOffers := make([]Offer, 0, len(offers))
	for _, o := range offers {
		wo, err := wireOffer(o, travelerIDs)
		if err != nil {
			return nil, err
		}
		wireOffers = append(wireOffers, wo)
	}

	return &OrderRequest{Data: OrderData{
		Type:               "flight-order",
		FlightOffers:       wireOffers,
		Travelers:          wireTravelers,
		TicketingAgreement: ta,
	}}, nil
}

func ticketingAgreement(a models.TicketingAgreement) (TicketingAgreement, error) {
	switch a.Option {
	case "", models.TicketingConfirm:
		return TicketingAgreement{Option: models.TicketingConfirm}, nil
	case models.TicketingDelayToCancel:
		if a.Delay <= 0 {
			return TicketingAgreement{}, fmt.Errorf("%w: %s needs a positive delay", ErrInvalidAgreement, a.Option)
		}
		days := int((a.Delay + 24*time.Hour - 1) / (24 * time.Hour))
		return TicketingAgreement{Option: a.Option, Delay: fmt.Sprintf("%dD", days)}, nil
	default:
		return TicketingAgreement{}, fmt.Errorf("%w: unknown option %q", ErrInvalidAgreement, a.Option)
	}
}

func wireTraveler(id string, t models.Traveler) Traveler {
	cc := t.Phone.CountryCallingCode
	if cc == "" {
		cc = "1"
	}
	return Traveler{
		ID:          id,
		DateOfBirth: t.DateOfBirth,
		Name: Name{
			FirstName: strings.ToUpper(strings.TrimSpace(t.FirstName)),
			LastName:  strings.ToUpper(strings.TrimSpace(t.LastName)),
		},
		Gender: models.NormalizeGender(t.Gender),
		Contact: Contact{
			EmailAddress: t.Email,
			Phones: []Phone{{
				DeviceType:         "MOBILE",
				CountryCallingCode: cc,
				Number:             t.Phone.Number,
			}},
		},
	}
}

func wireOffer(o models.FlightOffer, travelerIDs []string) (Offer, error) {
	if len(o.Segments) == 0 {
		return Offer{}, fmt.Errorf("%w: offer %s has no segments", ErrInvalidOffer, o.ID)
	}
	if !normalize.ValidCarrierCode(o.ValidatingAirlineCode) {
		return Offer{}, fmt.Errorf("%w: validating airline %q", ErrInvalidOffer, o.ValidatingAirlineCode)
	}
	if !amountPattern.MatchString(o.Price.Total) {
		return Offer{}, fmt.Errorf("%w: price %q is not a decimal amount", ErrInvalidOffer, o.Price.Total)
	}
	if o.Price.Base != "" && !amountPattern.MatchString(o.Price.Base) {
		return Offer{}, fmt.Errorf("%w: base price %q is not a decimal amount", ErrInvalidOffer, o.Price.Base)
	}

	var itineraries []Itinerary
	fareDetails := make([]FareDetail, 0, len(o.Segments))
	for _, s := range o.Segments {
		if err := checkSegment(s); err != nil {
			return Offer{}, err
		}
		for len(itineraries) <= s.Leg {
			itineraries = append(itineraries, Itinerary{})
		}
		ws := Segment{
			ID:            s.ID,
			Departure:     Endpoint(s.Departure),
			Arrival:       Endpoint(s.Arrival),
			CarrierCode:   s.CarrierCode,
			Number:        s.Number,
			Duration:      s.Duration,
			NumberOfStops: s.NumberOfStops,
		}
		if s.OperatingCarrierCode != "" {
			ws.Operating = &Operating{CarrierCode: s.OperatingCarrierCode}
		}
		itineraries[s.Leg].Segments = append(itineraries[s.Leg].Segments, ws)
		fareDetails = append(fareDetails, FareDetail{SegmentID: s.ID, Cabin: o.FareClass})
	}

	perTraveler, err := normalize.DivideAmount(o.Price.Total, len(travelerIDs))
	if err != nil {
		return Offer{}, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	pricings := make([]TravelerPrice, len(travelerIDs))
	for i, id := range travelerIDs {
		pricings[i] = TravelerPrice{
			TravelerID:           id,
			FareOption:           "STANDARD",
			TravelerType:         "ADULT",
			Price:                Price{Currency: o.Price.Currency, Total: perTraveler},
			FareDetailsBySegment: fareDetails,
		}
	}

	return Offer{
		Type:        "flight-offer",
		ID:          o.ID,
		Source:      "GDS",
		Itineraries: itineraries,
		Price: Price{
			Currency:   o.Price.Currency,
			Total:      o.Price.Total,
			Base:       o.Price.Base,
			GrandTotal: o.Price.Total,
		},
		ValidatingAirlineCodes: []string{o.ValidatingAirlineCode},
		TravelerPricings:       pricings,
	}, nil
}

// checkSegment rejects codes that would only fail at the provider.
func checkSegment(s models.Segment) error {
	if !normalize.ValidCarrierCode(s.CarrierCode) {
		return fmt.Errorf("%w: segment %s carrier %q", ErrInvalidOffer, s.ID, s.CarrierCode)
	}
	if s.OperatingCarrierCode != "" && !normalize.ValidCarrierCode(s.OperatingCarrierCode) {
		return fmt.Errorf("%w: segment %s operating carrier %q", ErrInvalidOffer, s.ID, s.OperatingCarrierCode)
	}
	if !normalize.ValidAirportCode(s.Departure.IATACode) || !normalize.ValidAirportCode(s.Arrival.IATACode) {
		return fmt.Errorf("%w: segment %s airports %q-%q", ErrInvalidOffer, s.ID, s.Departure.IATACode, s.Arrival.IATACode)
	}
	if s.Leg < 0 {
		return fmt.Errorf("%w: segment %s leg %d", ErrInvalidOffer, s.ID, s.Leg)
	}
	return nil
}
