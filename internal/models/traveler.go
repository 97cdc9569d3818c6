package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Traveler genders
const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
)

type Traveler struct {
	ID          string `json:"id,omitempty"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Gender      string `json:"gender,omitempty" validate:"omitempty,oneof=MALE FEMALE"`
	Email       string `json:"email" validate:"required,email"`
	Phone       Phone  `json:"phone"`
}

// UnmarshalJSON normalizes the gender so "female" or "F" validate.
func (t *Traveler) UnmarshalJSON(data []byte) error {
	type plain Traveler
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Traveler(p)
	t.Gender = NormalizeGender(t.Gender)
	return nil
}

// NormalizeGender upper-cases a gender and expands the M and F shorthands.
// Anything else is returned upper-cased for validation to reject.
func NormalizeGender(s string) string {
	switch g := strings.ToUpper(strings.TrimSpace(s)); g {
	case "M":
		return GenderMale
	case "F":
		return GenderFemale
	default:
		return g
	}
}

func (t Traveler) Name() TravelerName {
	return TravelerName{FirstName: t.FirstName, LastName: t.LastName}
}

type Phone struct {
	CountryCallingCode string `json:"country_calling_code,omitempty"`
	Number             string `json:"number" validate:"required"`
}

// UnmarshalJSON accepts an object, a plain string or a bare number.
// "+1 206 555 0100" becomes {1, 2065550100}; numbers without a leading
// "+" keep the default country code of 1.
func (p *Phone) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		type plain Phone
		var v plain
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = Phone(v)
		p.Number = digits(p.Number)
		p.CountryCallingCode = digits(p.CountryCallingCode)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ParsePhone(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("phone must be a string, number or object: %w", err)
		}
		*p = ParsePhone(n.String())
		return nil
	}
}

// ParsePhone splits a free-form phone string into country code and number.
func ParsePhone(s string) Phone {
	s = strings.TrimSpace(s)
	if s == "" {
		return Phone{}
	}
	if strings.HasPrefix(s, "+") {
		fields := strings.FieldsFunc(s[1:], func(r rune) bool {
			return r == ' ' || r == '-' || r == '.' || r == '(' || r == ')'
		})
		if len(fields) > 1 {
			return Phone{CountryCallingCode: digits(fields[0]), Number: digits(strings.Join(fields[1:], ""))}
		}
		all := digits(s)
		if len(all) == 11 && all[0] == '1' {
			return Phone{CountryCallingCode: "1", Number: all[1:]}
		}
		return Phone{Number: all}
	}
	all := digits(s)
	if len(all) == 11 && all[0] == '1' {
		all = all[1:]
	}
	if all == "" {
		return Phone{}
	}
	return Phone{CountryCallingCode: "1", Number: all}
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
