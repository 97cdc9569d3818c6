package activities

import (
	"context"
	"errors"
	"testing"

	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/database/dbtest"
	"flight-booking-orchestrator/internal/gds"
	"flight-booking-orchestrator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type stubSubmitter struct {
	conf *gds.OrderConfirmation
	err  error
}

func (s stubSubmitter) CreateOrder(context.Context, string, *gds.OrderRequest) (*gds.OrderConfirmation, error) {
	return s.conf, s.err
}

func TestSubmitBookingErrorMapping(t *testing.T) {
	schema := []models.ProviderError{{Status: 400, Code: 477, Family: string(gds.FamilySchema), Message: "INVALID FORMAT", Path: "/data/flightOffers[0]/price/total"}}

	tests := []struct {
		name          string
		err           error
		wantType      string
		wantRetryable bool
		wantStatus    int
		wantErrors    int
	}{
		{
			name:       "auth failure",
			err:        &gds.AuthFailureError{Status: 401, Err: errors.New("invalid_client")},
			wantType:   ErrTypeAuthFailure,
			wantStatus: 401,
		},
		{
			name:       "schema rejection",
			err:        &gds.ProviderRejection{Status: 400, Errors: schema},
			wantType:   ErrTypeProviderRejected,
			wantStatus: 400,
			wantErrors: 1,
		},
		{
			name:          "server error",
			err:           &gds.ProviderRejection{Status: 503, Errors: []models.ProviderError{{Status: 503, Code: 141, Message: "SYSTEM ERROR HAS OCCURRED"}}},
			wantType:      ErrTypeProviderUnavailable,
			wantRetryable: true,
			wantStatus:    503,
			wantErrors:    1,
		},
		{
			name:          "transport failure",
			err:           &gds.UnknownProviderError{Err: errors.New("connection reset")},
			wantType:      ErrTypeProviderUnavailable,
			wantRetryable: true,
		},
		{
			name:       "client error without envelope",
			err:        &gds.UnknownProviderError{Status: 404, Body: "not found"},
			wantType:   ErrTypeUnknownProviderError,
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestActivityEnvironment()
			a := NewProviderActivities(stubSubmitter{err: tt.err})
			env.RegisterActivity(a)

			_, err := env.ExecuteActivity(a.SubmitBooking, "attempt-1", &gds.OrderRequest{})
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantType, appErr.Type())
			assert.Equal(t, tt.wantRetryable, !appErr.NonRetryable())

			var details ProviderFailure
			require.NoError(t, appErr.Details(&details))
			assert.Equal(t, tt.wantStatus, details.Status)
			assert.Len(t, details.Errors, tt.wantErrors)
		})
	}
}

func TestSubmitBookingSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a := NewProviderActivities(stubSubmitter{conf: &gds.OrderConfirmation{OrderID: "eJzTd9f3NjIyMQ", Reference: "QX7R2K", Status: 201}})
	env.RegisterActivity(a)

	val, err := env.ExecuteActivity(a.SubmitBooking, "attempt-1", &gds.OrderRequest{})
	require.NoError(t, err)

	var conf gds.OrderConfirmation
	require.NoError(t, val.Get(&conf))
	assert.Equal(t, "QX7R2K", conf.Reference)
}

func TestUpdateAttemptStatusMissing(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a := NewOrderActivities(dbtest.New(t))
	env.RegisterActivity(a)

	_, err := env.ExecuteActivity(a.UpdateAttemptStatus, "missing", models.StatusDone, database.AttemptUpdate{})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrTypeAttemptNotFound, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}
