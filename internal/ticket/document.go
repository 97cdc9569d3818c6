package ticket

import (
	"fmt"
	"strings"

	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/reference"
)

const (
	arrivalNotice = "Please arrive at the airport at least 2 hours before departure."
	mockFooter    = "MOCK BOOKING: this reservation was not confirmed by the airline and is not valid for travel."
)

// Style selects how a line is rendered.
type Style int

const (
	StyleBody Style = iota
	StyleTitle
	StyleHeading
	StyleFooter
)

type Line struct {
	Text  string
	Style Style
}

// Document is the renderer-independent content of an e-ticket.
type Document struct {
	Title string
	Lines []Line
}

func (d *Document) heading(s string) {
	d.Lines = append(d.Lines, Line{}, Line{Text: s, Style: StyleHeading})
}

func (d *Document) add(format string, args ...any) {
	d.Lines = append(d.Lines, Line{Text: fmt.Sprintf(format, args...)})
}

// Text returns the document as plain lines.
func (d *Document) Text() string {
	var b strings.Builder
	b.WriteString(d.Title)
	for _, l := range d.Lines {
		b.WriteByte('\n')
		b.WriteString(l.Text)
	}
	return b.String()
}

// NewDocument lays out the e-ticket for a booking. It reads only the
// booking result and static reference data.
func NewDocument(result *models.BookingResult, dir *reference.Directory) *Document {
	if dir == nil {
		dir = reference.Default()
	}
	doc := &Document{Title: "Electronic Ticket"}

	carrier := result.PrimaryCarrier
	var phone string
	if c, ok := dir.Carrier(result.PrimaryCarrier); ok {
		carrier = fmt.Sprintf("%s (%s)", c.Name, c.Code)
		phone = c.Phone
	}

	doc.add("Booking reference: %s", result.Reference)
	doc.add("Order ID: %s", result.OrderID)
	doc.add("Issue date: %s", result.CreatedAt.UTC().Format("2006-01-02"))
	doc.add("Airline: %s", carrier)

	doc.heading("Passengers")
	for _, t := range result.Travelers {
		doc.add("%s", strings.ToUpper(t.LastName)+"/"+strings.ToUpper(t.FirstName))
	}
	if result.TicketNumber != "" {
		doc.add("E-ticket number: %s", result.TicketNumber)
	}

	doc.heading("Itinerary")
	if result.ItinerarySummary != "" {
		doc.add("%s", result.ItinerarySummary)
	}
	for i, s := range result.Segments {
		doc.add("%d. %s %s  %s to %s", i+1, s.CarrierCode, s.Number, airportLabel(dir, s.Departure.IATACode), airportLabel(dir, s.Arrival.IATACode))
		doc.add("   Departs %s%s", s.Departure.At, terminal(s.Departure.Terminal))
		doc.add("   Arrives %s%s", s.Arrival.At, terminal(s.Arrival.Terminal))
		if s.Duration != "" {
			doc.add("   Duration %s", s.Duration)
		}
		if s.OperatingCarrierCode != "" && s.OperatingCarrierCode != s.CarrierCode {
			doc.add("   Operated by %s", s.OperatingCarrierCode)
		}
	}

	doc.heading("Fare")
	doc.add("Total: %s %s", result.Price.Total, result.Price.Currency)

	doc.heading("Important")
	doc.add("%s", arrivalNotice)
	if phone != "" {
		doc.add("Customer service: %s", phone)
	}

	if result.Outcome == models.OutcomeMock {
		doc.Lines = append(doc.Lines, Line{}, Line{Text: mockFooter, Style: StyleFooter})
		if result.FallbackCause != "" {
			doc.Lines = append(doc.Lines, Line{Text: "Reason: " + string(result.FallbackCause), Style: StyleFooter})
		}
	}
	return doc
}

func airportLabel(dir *reference.Directory, code string) string {
	if a, ok := dir.Airport(code); ok && a.City != "" {
		return fmt.Sprintf("%s (%s)", a.City, code)
	}
	return code
}

func terminal(t string) string {
	if t == "" {
		return ""
	}
	return ", terminal " + t
}
