package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Phone
	}{
		{"object", `{"country_calling_code":"+44","number":"20 7946 0958"}`, Phone{CountryCallingCode: "44", Number: "2079460958"}},
		{"international string", `"+1 206-555-0100"`, Phone{CountryCallingCode: "1", Number: "2065550100"}},
		{"national string", `"(206) 555-0100"`, Phone{CountryCallingCode: "1", Number: "2065550100"}},
		{"number", `2065550100`, Phone{CountryCallingCode: "1", Number: "2065550100"}},
		{"null", `null`, Phone{}},
		{"empty string", `""`, Phone{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Phone
			require.NoError(t, json.Unmarshal([]byte(tt.in), &p))
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestTravelerDecode(t *testing.T) {
	var tr Traveler
	err := json.Unmarshal([]byte(`{
		"first_name": "Ada",
		"last_name": "Lovelace",
		"date_of_birth": "1990-12-10",
		"email": "ada@example.com",
		"phone": "+12065550100"
	}`), &tr)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", tr.Name().String())
	assert.Equal(t, "1", tr.Phone.CountryCallingCode)
	assert.Equal(t, "2065550100", tr.Phone.Number)
	assert.Equal(t, "", tr.Gender)
}

func TestTravelerGenderIsNormalized(t *testing.T) {
	for in, want := range map[string]string{
		"female":  GenderFemale,
		" Male ":  GenderMale,
		"f":       GenderFemale,
		"M":       GenderMale,
		"unknown": "UNKNOWN",
	} {
		var tr Traveler
		require.NoError(t, json.Unmarshal([]byte(`{"first_name":"Ada","gender":"`+in+`"}`), &tr))
		assert.Equal(t, want, tr.Gender, in)
		assert.Equal(t, "Ada", tr.FirstName)
	}
}

func TestFlightOfferSummary(t *testing.T) {
	offer := &FlightOffer{
		Segments: []Segment{
			{Departure: Endpoint{IATACode: "DCA"}, Arrival: Endpoint{IATACode: "ORD"}, CarrierCode: "UA"},
			{Departure: Endpoint{IATACode: "ORD"}, Arrival: Endpoint{IATACode: "SEA"}, CarrierCode: "AS"},
		},
	}
	assert.Equal(t, "DCA → ORD → SEA", offer.Summary())
	assert.Equal(t, "UA", offer.PrimaryCarrier())

	offer.ValidatingAirlineCode = "AS"
	assert.Equal(t, "AS", offer.PrimaryCarrier())

	var empty *FlightOffer
	assert.Equal(t, "", empty.Summary())
	assert.Equal(t, "", empty.PrimaryCarrier())
}

func TestOutcomeValid(t *testing.T) {
	assert.True(t, OutcomeConfirmed.Valid())
	assert.True(t, OutcomeMock.Valid())
	assert.False(t, Outcome("").Valid())
}
