package normalize

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAirportCode = errors.New("invalid airport code")
	ErrUnresolvedCarrier  = errors.New("unresolved carrier")
	ErrInvalidSchedule    = errors.New("invalid schedule")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrNoOfferData        = errors.New("no offer data")
)

// Error reports which field of the raw offer could not be normalized.
type Error struct {
	Kind  error
	Field string
	Value string
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%v: %s is missing", e.Kind, e.Field)
	}
	return fmt.Sprintf("%v: %s %q", e.Kind, e.Field, e.Value)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func fieldError(kind error, field, value string) *Error {
	return &Error{Kind: kind, Field: field, Value: value}
}
