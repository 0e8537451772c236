package drivers

import (
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/pricing"
)

// DriverRecord is the in-process view of a driver. The persistent
// store owns durable truth; this record serves all dispatch reads.
type DriverRecord struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	IsOnline   bool      `json:"is_online"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`

	// CurrentLat and CurrentLng are both nil or both set. H3Index holds
	// latLngToCell(lat,lng) at the configured resolution whenever set.
	CurrentLat *float64 `json:"current_lat,omitempty"`
	CurrentLng *float64 `json:"current_lng,omitempty"`
	H3Index    string   `json:"h3_index,omitempty"`

	VehicleType   pricing.VehicleType `json:"vehicle_type"`
	VehicleNumber string              `json:"vehicle_number"`
	VehicleModel  string              `json:"vehicle_model"`

	Rating        float64 `json:"rating"`
	RatingCount   int     `json:"rating_count"`
	TotalRides    int     `json:"total_rides"`
	TotalEarnings float64 `json:"total_earnings"`

	LastActiveAt        time.Time `json:"last_active_at"`
	ConnectedTransports []string  `json:"connected_transports,omitempty"`
}

// HasCoordinates reports whether the record carries a location.
func (r *DriverRecord) HasCoordinates() bool {
	return r.CurrentLat != nil && r.CurrentLng != nil
}

// LocationUpdateResult reports the effect of a telemetry update.
type LocationUpdateResult struct {
	Updated   bool   `json:"updated"`
	H3Changed bool   `json:"h3_changed"`
	NewCell   string `json:"new_cell"`
}

// NearbyDriver is a dispatch candidate with its distance from the
// query point.
type NearbyDriver struct {
	Driver     DriverRecord `json:"driver"`
	DistanceKm float64      `json:"distance_km"`
}

// LocationWrite is a pending persistent location flush for one driver.
// The flush loop batches the latest coordinates per driver, so the
// telemetry rate never amplifies the write rate.
type LocationWrite struct {
	DriverID     uuid.UUID
	Lat          float64
	Lng          float64
	H3Index      string
	LastActiveAt time.Time
}

// StatusWrite is a pending persistent online-status flush.
type StatusWrite struct {
	DriverID  uuid.UUID
	IsOnline  bool
	ChangedAt time.Time
}

// StoreMetrics is the counter snapshot returned by GetMetrics.
type StoreMetrics struct {
	UpdatesProcessed  int64   `json:"updates_processed"`
	Queries           int64   `json:"queries"`
	AvgQueryLatencyMs float64 `json:"avg_query_latency_ms"`
	TrackedCells      int     `json:"tracked_cells"`
	QueuedWrites      int     `json:"queued_writes"`
	WriteFailures     int64   `json:"write_failures"`
}

// PenaltyReason identifies why a penalty was recorded.
type PenaltyReason string

const (
	PenaltyStopRiding PenaltyReason = "STOP_RIDING"
)

// PenaltyStatus tracks whether a penalty has been settled.
type PenaltyStatus string

const (
	PenaltyPending PenaltyStatus = "PENDING"
	PenaltyPaid    PenaltyStatus = "PAID"
)

// DriverPenalty is a fee recorded against a driver. A PENDING penalty
// blocks the online transition.
type DriverPenalty struct {
	ID        uuid.UUID     `json:"id"`
	DriverID  uuid.UUID     `json:"driver_id"`
	Reason    PenaltyReason `json:"reason"`
	Amount    float64       `json:"amount"`
	Status    PenaltyStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	PaidAt    *time.Time    `json:"paid_at,omitempty"`
}

// UpdateLocationRequest is the telemetry ingest payload. Coordinates
// are pointers so a legal 0 (equator, prime meridian) survives the
// required check, which rejects zero values on plain floats.
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	Heading   *float64 `json:"heading,omitempty" binding:"omitempty,min=0,max=360"`
	Speed     *float64 `json:"speed,omitempty" binding:"omitempty,min=0"`
}

// SetStatusRequest toggles a driver online or offline.
type SetStatusRequest struct {
	IsOnline *bool `json:"is_online" binding:"required"`
}

// NearbyQuery is the query shape for the nearby-drivers endpoint.
type NearbyQuery struct {
	Latitude    *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Longitude   *float64 `form:"lng" binding:"required,min=-180,max=180"`
	RadiusKm    float64  `form:"radius_km" binding:"omitempty,min=0.1,max=50"`
	VehicleType string   `form:"vehicle_type" binding:"omitempty,vehicletype"`
}
