package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/pricing"
)

// ChannelAvailableDrivers is the broadcast topic every idle driver
// client listens on. A vehicle-type suffix narrows it.
const ChannelAvailableDrivers = "available-drivers"

// DriverChannel is the per-driver offer topic.
func DriverChannel(driverID uuid.UUID) string {
	return "driver:" + driverID.String()
}

// VehicleChannel is the per-vehicle-type broadcast topic.
func VehicleChannel(vehicleType pricing.VehicleType) string {
	return ChannelAvailableDrivers + ":" + string(vehicleType)
}

// OfferEvent is the payload pushed to drivers when a ride needs one.
// It deliberately carries no OTP and no passenger contact details.
type OfferEvent struct {
	Type          string              `json:"type"`
	RideID        uuid.UUID           `json:"ride_id"`
	PickupLat     float64             `json:"pickup_lat"`
	PickupLng     float64             `json:"pickup_lng"`
	DropLat       float64             `json:"drop_lat"`
	DropLng       float64             `json:"drop_lng"`
	PickupAddress string              `json:"pickup_address"`
	DropAddress   string              `json:"drop_address"`
	VehicleType   pricing.VehicleType `json:"vehicle_type"`
	TotalFare     float64             `json:"total_fare"`
	DistanceKm    float64             `json:"distance_km"`
	PassengerName string              `json:"passenger_name,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

// BroadcastReport summarizes one fan-out attempt.
type BroadcastReport struct {
	RideID                      uuid.UUID `json:"ride_id"`
	TargetedDrivers             int       `json:"targeted_drivers"`
	ConnectedDrivers            int       `json:"connected_drivers"`
	AvailableChannelSubscribers int       `json:"available_channel_subscribers"`
	Errors                      []string  `json:"errors,omitempty"`
}
