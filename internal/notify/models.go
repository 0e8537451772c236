package notify

import (
	"time"

	"github.com/google/uuid"
)

// Notification is one in-app message for a user, produced off the
// event stream.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	RideID    *uuid.UUID `json:"ride_id,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Notification kinds.
const (
	KindRideAssigned  = "ride_assigned"
	KindRideCancelled = "ride_cancelled"
	KindRideCompleted = "ride_completed"
)
