package api

import (
	"context"

	"flight-booking-orchestrator/internal/models"
	"flight-booking-orchestrator/internal/temporal/workflows"

	"go.temporal.io/sdk/client"
)

// BookingRunner starts booking workflows and reads their results.
type BookingRunner interface {
	StartBooking(ctx context.Context, workflowID string, input models.BookingInput) (runID string, err error)
	AwaitBooking(ctx context.Context, workflowID, runID string) (*models.BookingOutcome, error)
	BookingState(ctx context.Context, workflowID, runID string) (*models.BookingState, error)
}

// TemporalRunner runs bookings as BookingWorkflow executions.
type TemporalRunner struct {
	Client    client.Client
	TaskQueue string
}

func (t *TemporalRunner) StartBooking(ctx context.Context, workflowID string, input models.BookingInput) (string, error) {
	workflowOptions := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: t.TaskQueue,
	}
	we, err := t.Client.ExecuteWorkflow(ctx, workflowOptions, workflows.BookingWorkflow, input)
	if err != nil {
		return "", err
	}
	return we.GetRunID(), nil
}

func (t *TemporalRunner) AwaitBooking(ctx context.Context, workflowID, runID string) (*models.BookingOutcome, error) {
	var out models.BookingOutcome
	if err := t.Client.GetWorkflow(ctx, workflowID, runID).Get(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *TemporalRunner) BookingState(ctx context.Context, workflowID, runID string) (*models.BookingState, error) {
	resp, err := t.Client.QueryWorkflow(ctx, workflowID, runID, workflows.QueryGetStatus)
	if err != nil {
		return nil, err
	}
	var state models.BookingState
	if err := resp.Get(&state); err != nil {
		return nil, err
	}
	return &state, nil
}
