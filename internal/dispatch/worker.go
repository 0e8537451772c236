package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/rides"
	"github.com/richxcame/ride-dispatch/pkg/eventbus"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"go.uber.org/zap"
)

// Worker re-dispatches rides from the durable event stream. With the
// inline fan-out on the request path this is the safety net: a ride
// created on an instance whose publish failed still reaches drivers.
type Worker struct {
	dispatch *Service
	rides    *rides.Service
	events   *eventbus.Bus
}

// NewWorker creates a new dispatch worker.
func NewWorker(dispatch *Service, rideService *rides.Service, events *eventbus.Bus) *Worker {
	return &Worker{
		dispatch: dispatch,
		rides:    rideService,
		events:   events,
	}
}

// Start subscribes to ride-requested events with a durable consumer.
func (w *Worker) Start(ctx context.Context) error {
	return w.events.Subscribe(ctx, eventbus.SubjectRideRequested, "dispatch-requested", w.handleRequested)
}

type requestedPayload struct {
	RideID string `json:"ride_id"`
}

func (w *Worker) handleRequested(ctx context.Context, event *eventbus.Event) error {
	var payload requestedPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Warn("malformed ride-requested payload", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	rideID, err := uuid.Parse(payload.RideID)
	if err != nil {
		logger.Warn("invalid ride id in event", zap.String("event_id", event.ID))
		return nil
	}

	ride, err := w.rides.LoadRide(ctx, rideID)
	if err != nil {
		if errors.Is(err, rides.ErrRideNotFound) {
			return nil
		}
		return fmt.Errorf("load ride %s: %w", rideID, err)
	}

	// Rides assigned or cancelled between publish and delivery are
	// stale offers; skip them.
	if ride.Status != rides.StatusPending {
		return nil
	}

	if _, err := w.dispatch.DispatchRide(ctx, ride); err != nil {
		return err
	}
	return nil
}
