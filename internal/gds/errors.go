package gds

import (
	"errors"
	"fmt"
	"strings"

	"flight-booking-orchestrator/internal/models"
)

// Family groups provider error codes by what they mean for the booking.
type Family string

const (
	FamilySchema       Family = "SCHEMA"
	FamilyAuth         Family = "AUTH"
	FamilyRateLimit    Family = "RATE_LIMIT"
	FamilyAvailability Family = "AVAILABILITY"
	FamilySystem       Family = "SYSTEM"
	FamilyUnknown      Family = "UNKNOWN"
)

var codeFamilies = map[int]Family{
	477:   FamilySchema, // INVALID FORMAT
	4926:  FamilySchema, // INVALID DATA RECEIVED
	32171: FamilySchema, // MANDATORY DATA MISSING
	38190: FamilyAuth,   // invalid access token
	38191: FamilyAuth,   // invalid HTTP header
	38192: FamilyAuth,   // access token expired
	38194: FamilyRateLimit,
	34651: FamilyAvailability, // SEGMENT SELL FAILURE
	141:   FamilySystem,
	38189: FamilySystem,
}

// FamilyOf classifies a numeric provider error code.
func FamilyOf(code int) Family {
	if f, ok := codeFamilies[code]; ok {
		return f
	}
	return FamilyUnknown
}

var (
	ErrInvalidOffer     = errors.New("invalid flight offer")
	ErrInvalidAgreement = errors.New("invalid ticketing agreement")
)

// MissingTravelerFieldError is returned before any provider call when a
// traveler lacks required data.
type MissingTravelerFieldError struct {
	Traveler int
	Fields   []string
}

func (e *MissingTravelerFieldError) Error() string {
	return fmt.Sprintf("Missing traveler information: %s", strings.Join(e.Fields, ", "))
}

// InvalidTravelerFieldError reports present but malformed traveler fields.
type InvalidTravelerFieldError struct {
	Traveler int
	Fields   []string
}

func (e *InvalidTravelerFieldError) Error() string {
	return fmt.Sprintf("Invalid traveler information: %s", strings.Join(e.Fields, ", "))
}

// ProviderRejection is a non-2xx response with a parseable error envelope.
type ProviderRejection struct {
	Status int
	Errors []models.ProviderError
}

func (e *ProviderRejection) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		s := fmt.Sprintf("%d %s", pe.Code, pe.Message)
		if pe.Path != "" {
			s += " at " + pe.Path
		}
		parts = append(parts, s)
	}
	return fmt.Sprintf("provider rejected booking (HTTP %d): %s", e.Status, strings.Join(parts, "; "))
}

// Transient reports whether resubmitting the same payload could succeed.
func (e *ProviderRejection) Transient() bool {
	return e.Status >= 500
}

// HasFamily reports whether any error entry belongs to f.
func (e *ProviderRejection) HasFamily(f Family) bool {
	return HasFamily(e.Errors, f)
}

func HasFamily(errs []models.ProviderError, f Family) bool {
	for _, pe := range errs {
		if Family(pe.Family) == f {
			return true
		}
	}
	return false
}

// UnknownProviderError is a failed call with no parseable error envelope.
type UnknownProviderError struct {
	Status int
	Body   string
	Err    error
}

func (e *UnknownProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider call failed: %v", e.Err)
	}
	return fmt.Sprintf("provider returned HTTP %d without error details", e.Status)
}

func (e *UnknownProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure was at the transport level or a 5xx.
func (e *UnknownProviderError) Transient() bool {
	return e.Status == 0 || e.Status >= 500
}

// AuthFailureError means no access token could be obtained.
type AuthFailureError struct {
	Status int
	Err    error
}

func (e *AuthFailureError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed with HTTP %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthFailureError) Unwrap() error {
	return e.Err
}

// FallbackCause decides why a failed submission falls back to a mock booking.
func FallbackCause(errs []models.ProviderError, authFailure bool) models.FallbackCause {
	switch {
	case authFailure || HasFamily(errs, FamilyAuth):
		return models.CauseAuthFailure
	case HasFamily(errs, FamilySchema):
		return models.CauseRequestRejected
	default:
		return models.CauseProviderUnavailable
	}
}
