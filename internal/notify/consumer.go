package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/pkg/eventbus"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"go.uber.org/zap"
)

// Consumer turns ride lifecycle events into stored notifications for
// the passenger. Delivery is at-least-once; inserts are keyed by a
// fresh id so a redelivery at worst duplicates a message, never loses
// one.
type Consumer struct {
	repo   *Repository
	events *eventbus.Bus
}

// NewConsumer creates a new notifications consumer.
func NewConsumer(repo *Repository, events *eventbus.Bus) *Consumer {
	return &Consumer{repo: repo, events: events}
}

// Start subscribes to the lifecycle subjects that produce passenger
// notifications.
func (c *Consumer) Start(ctx context.Context) error {
	subscriptions := map[string]string{
		eventbus.SubjectRideAssigned:  "notify-assigned",
		eventbus.SubjectRideCancelled: "notify-cancelled",
		eventbus.SubjectRideCompleted: "notify-completed",
	}
	for subject, consumer := range subscriptions {
		if err := c.events.Subscribe(ctx, subject, consumer, c.handleEvent); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}
	return nil
}

type lifecyclePayload struct {
	RideID      string `json:"ride_id"`
	PassengerID string `json:"passenger_id"`
	Status      string `json:"status"`
}

func (c *Consumer) handleEvent(ctx context.Context, event *eventbus.Event) error {
	var payload lifecyclePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Warn("malformed lifecycle payload", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	userID, err := uuid.Parse(payload.PassengerID)
	if err != nil {
		logger.Warn("invalid passenger id in event", zap.String("event_id", event.ID))
		return nil
	}
	rideID, err := uuid.Parse(payload.RideID)
	if err != nil {
		logger.Warn("invalid ride id in event", zap.String("event_id", event.ID))
		return nil
	}

	kind, title, body := messageFor(event.Type)
	if kind == "" {
		return nil
	}

	notification := &Notification{
		ID:     uuid.New(),
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
		RideID: &rideID,
	}

	// Returning the error naks the message so the insert is retried.
	return c.repo.Create(ctx, notification)
}

func messageFor(eventType string) (kind, title, body string) {
	switch eventType {
	case eventbus.SubjectRideAssigned:
		return KindRideAssigned, "Driver assigned", "A driver accepted your ride and is on the way."
	case eventbus.SubjectRideCancelled:
		return KindRideCancelled, "Ride cancelled", "Your ride was cancelled."
	case eventbus.SubjectRideCompleted:
		return KindRideCompleted, "Ride completed", "Your ride is complete. Rate your trip when you have a moment."
	default:
		return "", "", ""
	}
}
