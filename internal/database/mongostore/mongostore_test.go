package mongostore

import (
	"context"
	"testing"
	"time"

	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func toD(t *testing.T, v any) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	result := models.BookingResult{
		Outcome:   models.OutcomeMock,
		OrderID:   "ORDER_1",
		Reference: "MOCK-ABCDEF",
		AttemptID: "attempt-1",
		Price:     models.Price{Currency: "USD", Total: "168.02"},
		CreatedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}

	mt.Run("save booking", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, New(mt.Client, "test").SaveBooking(ctx, &result))
	})

	mt.Run("duplicate booking", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		err := New(mt.Client, "test").SaveBooking(ctx, &result)
		assert.ErrorIs(mt, err, database.ErrDuplicate)
	})

	mt.Run("get booking", func(mt *mtest.T) {
		doc := toD(mt.T, bookingDoc{
			OrderID:   result.OrderID,
			AttemptID: result.AttemptID,
			Outcome:   string(result.Outcome),
			Reference: result.Reference,
			Result:    result,
			CreatedAt: result.CreatedAt,
		})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.booking_results", mtest.FirstBatch, doc))

		got, err := New(mt.Client, "test").GetBooking(ctx, "ORDER_1")
		require.NoError(mt, err)
		assert.Equal(mt, result.OrderID, got.OrderID)
		assert.Equal(mt, result.Reference, got.Reference)
		assert.Equal(mt, result.Price, got.Price)
		assert.True(mt, result.CreatedAt.Equal(got.CreatedAt))
	})

	mt.Run("booking not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.booking_results", mtest.FirstBatch))
		_, err := New(mt.Client, "test").GetBookingByAttempt(ctx, "missing")
		assert.ErrorIs(mt, err, database.ErrBookingNotFound)
	})

	mt.Run("update missing attempt", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		err := New(mt.Client, "test").UpdateAttemptStatus(ctx, "missing", models.StatusDone, database.AttemptUpdate{})
		assert.ErrorIs(mt, err, database.ErrAttemptNotFound)
	})

	mt.Run("update attempt", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		err := New(mt.Client, "test").UpdateAttemptStatus(ctx, "attempt-1", models.StatusDone,
			database.AttemptUpdate{Outcome: "MOCK", OrderID: "ORDER_1"})
		assert.NoError(mt, err)
	})

	mt.Run("set run id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		assert.NoError(mt, New(mt.Client, "test").SetAttemptRunID(ctx, "attempt-1", "run-1"))

		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		err := New(mt.Client, "test").SetAttemptRunID(ctx, "missing", "run-1")
		assert.ErrorIs(mt, err, database.ErrAttemptNotFound)
	})
}
