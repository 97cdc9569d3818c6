// Package mongostore implements database.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flight-booking-orchestrator/internal/database"
	"flight-booking-orchestrator/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	bookingsCollection  = "booking_results"
	responsesCollection = "raw_responses"
	attemptsCollection  = "booking_attempts"
)

type Store struct {
	client    *mongo.Client
	bookings  *mongo.Collection
	responses *mongo.Collection
	attempts  *mongo.Collection
}

var _ database.Store = (*Store)(nil)

type bookingDoc struct {
	OrderID   string               `bson:"_id"`
	AttemptID string               `bson:"attempt_id"`
	Outcome   string               `bson:"outcome"`
	Reference string               `bson:"reference"`
	Result    models.BookingResult `bson:"result"`
	CreatedAt time.Time            `bson:"created_at"`
}

type responseDoc struct {
	Key        string    `bson:"_id"`
	AttemptID  string    `bson:"attempt_id"`
	StatusCode int       `bson:"status_code"`
	Body       string    `bson:"body"`
	RecordedAt time.Time `bson:"recorded_at"`
}

type attemptDoc struct {
	AttemptID  string    `bson:"_id"`
	Status     string    `bson:"status"`
	Outcome    string    `bson:"outcome"`
	OrderID    string    `bson:"order_id"`
	Error      string    `bson:"error_message"`
	WorkflowID string    `bson:"workflow_id"`
	RunID      string    `bson:"run_id"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// Connect dials MongoDB and prepares the collections and indexes.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := New(client, dbName)
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an already connected client.
func New(client *mongo.Client, dbName string) *Store {
	db := client.Database(dbName)
	return &Store{
		client:    client,
		bookings:  db.Collection(bookingsCollection),
		responses: db.Collection(responsesCollection),
		attempts:  db.Collection(attemptsCollection),
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.bookings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "attempt_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	_, err = s.responses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "attempt_id", Value: 1}, {Key: "recorded_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *Store) SaveBooking(ctx context.Context, result *models.BookingResult) error {
	doc := bookingDoc{
		OrderID:   result.OrderID,
		AttemptID: result.AttemptID,
		Outcome:   string(result.Outcome),
		Reference: result.Reference,
		Result:    *result,
		CreatedAt: result.CreatedAt.UTC(),
	}
	if _, err := s.bookings.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("booking %s: %w", result.OrderID, database.ErrDuplicate)
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, orderID string) (*models.BookingResult, error) {
	return s.findBooking(ctx, bson.M{"_id": orderID})
}

func (s *Store) GetBookingByAttempt(ctx context.Context, attemptID string) (*models.BookingResult, error) {
	return s.findBooking(ctx, bson.M{"attempt_id": attemptID})
}

func (s *Store) findBooking(ctx context.Context, filter bson.M) (*models.BookingResult, error) {
	var doc bookingDoc
	err := s.bookings.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, database.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &doc.Result, nil
}

func (s *Store) SaveRawResponse(ctx context.Context, resp *models.RawResponse) error {
	doc := responseDoc{
		Key:        resp.Key,
		AttemptID:  resp.AttemptID,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		RecordedAt: resp.RecordedAt.UTC(),
	}
	if _, err := s.responses.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("raw response %s: %w", resp.Key, database.ErrDuplicate)
		}
		return fmt.Errorf("failed to save raw response: %w", err)
	}
	return nil
}

func (s *Store) ListRawResponses(ctx context.Context, attemptID string) ([]models.RawResponse, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}})
	cur, err := s.responses.Find(ctx, bson.M{"attempt_id": attemptID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw responses: %w", err)
	}
	defer cur.Close(ctx)

	var docs []responseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode raw responses: %w", err)
	}
	out := make([]models.RawResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.RawResponse{
			Key:        d.Key,
			AttemptID:  d.AttemptID,
			StatusCode: d.StatusCode,
			Body:       d.Body,
			RecordedAt: d.RecordedAt,
		})
	}
	return out, nil
}

func (s *Store) CreateAttempt(ctx context.Context, attempt *models.Attempt) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	attempt.UpdatedAt = attempt.CreatedAt

	doc := attemptDoc{
		AttemptID:  attempt.AttemptID,
		Status:     attempt.Status,
		Outcome:    attempt.Outcome,
		OrderID:    attempt.OrderID,
		Error:      attempt.Error,
		WorkflowID: attempt.WorkflowID,
		RunID:      attempt.RunID,
		CreatedAt:  attempt.CreatedAt,
		UpdatedAt:  attempt.UpdatedAt,
	}
	if _, err := s.attempts.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("attempt %s: %w", attempt.AttemptID, database.ErrDuplicate)
		}
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, attemptID string) (*models.Attempt, error) {
	var doc attemptDoc
	err := s.attempts.FindOne(ctx, bson.M{"_id": attemptID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, database.ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &models.Attempt{
		AttemptID:  doc.AttemptID,
		Status:     doc.Status,
		Outcome:    doc.Outcome,
		OrderID:    doc.OrderID,
		Error:      doc.Error,
		WorkflowID: doc.WorkflowID,
		RunID:      doc.RunID,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

func (s *Store) UpdateAttemptStatus(ctx context.Context, attemptID, status string, update database.AttemptUpdate) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if update.Outcome != "" {
		set["outcome"] = update.Outcome
	}
	if update.OrderID != "" {
		set["order_id"] = update.OrderID
	}
	if update.Error != "" {
		set["error_message"] = update.Error
	}

	res, err := s.attempts.UpdateOne(ctx, bson.M{"_id": attemptID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update attempt status: %w", err)
	}
	if res.MatchedCount == 0 {
		return database.ErrAttemptNotFound
	}
	return nil
}

func (s *Store) SetAttemptRunID(ctx context.Context, attemptID, runID string) error {
	res, err := s.attempts.UpdateOne(ctx, bson.M{"_id": attemptID}, bson.M{"$set": bson.M{"run_id": runID}})
	if err != nil {
		return fmt.Errorf("failed to set attempt run id: %w", err)
	}
	if res.MatchedCount == 0 {
		return database.ErrAttemptNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
