package rides

import (
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/pricing"
)

// Status is a ride lifecycle state.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusDriverAssigned Status = "DRIVER_ASSIGNED"
	StatusConfirmed      Status = "CONFIRMED"
	StatusDriverArrived  Status = "DRIVER_ARRIVED"
	StatusRideStarted    Status = "RIDE_STARTED"
	StatusRideCompleted  Status = "RIDE_COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// allowedTransitions is the ride state machine. Anything not listed
// here is an invalid transition.
var allowedTransitions = map[Status][]Status{
	StatusPending:        {StatusDriverAssigned, StatusCancelled},
	StatusDriverAssigned: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusDriverArrived, StatusCancelled},
	StatusDriverArrived:  {StatusRideStarted, StatusCancelled},
	StatusRideStarted:    {StatusRideCompleted, StatusCancelled},
	StatusRideCompleted:  {},
	StatusCancelled:      {},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRideCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// driverOnlyStatuses may only be set by the assigned driver.
var driverOnlyStatuses = map[Status]bool{
	StatusConfirmed:     true,
	StatusDriverArrived: true,
	StatusRideStarted:   true,
	StatusRideCompleted: true,
}

// DriverOnly reports whether the status may only be set by the
// assigned driver.
func (s Status) DriverOnly() bool {
	return driverOnlyStatuses[s]
}

// PaymentMethod is how the passenger pays.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentCard   PaymentMethod = "CARD"
	PaymentUPI    PaymentMethod = "UPI"
	PaymentWallet PaymentMethod = "WALLET"
)

// PaymentStatus tracks settlement.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// CancelledBy identifies who cancelled a ride.
type CancelledBy string

const (
	CancelledByPassenger CancelledBy = "passenger"
	CancelledByDriver    CancelledBy = "driver"
	CancelledBySystem    CancelledBy = "system"
)

// Ride is the durable ride record. The fare breakdown is locked at
// creation and never recomputed at completion.
type Ride struct {
	ID          uuid.UUID  `json:"id"`
	PassengerID uuid.UUID  `json:"passenger_id"`
	DriverID    *uuid.UUID `json:"driver_id,omitempty"`

	PickupLat     float64 `json:"pickup_lat"`
	PickupLng     float64 `json:"pickup_lng"`
	DropLat       float64 `json:"drop_lat"`
	DropLng       float64 `json:"drop_lng"`
	PickupAddress string  `json:"pickup_address"`
	DropAddress   string  `json:"drop_address"`

	VehicleType pricing.VehicleType `json:"vehicle_type"`

	BaseFare     float64 `json:"base_fare"`
	DistanceFare float64 `json:"distance_fare"`
	TimeFare     float64 `json:"time_fare"`
	ServiceFee   float64 `json:"service_fee"`
	InsuranceFee float64 `json:"insurance_fee"`
	PlatformFee  float64 `json:"platform_fee"`
	TotalFare    float64 `json:"total_fare"`

	DistanceKm  float64 `json:"distance_km"`
	DurationMin int     `json:"duration_min"`

	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	// RideOTP is disclosed only to the passenger and never logged.
	RideOTP string `json:"ride_otp,omitempty"`

	Status Status `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	CancelledBy        *CancelledBy `json:"cancelled_by,omitempty"`
	CancellationReason *string      `json:"cancellation_reason,omitempty"`

	PassengerRating    *int       `json:"passenger_rating,omitempty"`
	DriverRating       *int       `json:"driver_rating,omitempty"`
	PassengerFeedback  *string    `json:"passenger_feedback,omitempty"`
	DriverFeedback     *string    `json:"driver_feedback,omitempty"`
	RatedByPassengerAt *time.Time `json:"rated_by_passenger_at,omitempty"`
	RatedByDriverAt    *time.Time `json:"rated_by_driver_at,omitempty"`
}

// Sanitized returns a copy without the OTP for non-passenger viewers.
func (r *Ride) Sanitized() *Ride {
	clean := *r
	clean.RideOTP = ""
	return &clean
}

// CreateRideRequest is the ride creation payload. Coordinates are
// pointers so a legal 0 (equator, prime meridian) survives the
// required check, which rejects zero values on plain floats.
type CreateRideRequest struct {
	PickupLat     *float64   `json:"pickup_lat" binding:"required,min=-90,max=90"`
	PickupLng     *float64   `json:"pickup_lng" binding:"required,min=-180,max=180"`
	DropLat       *float64   `json:"drop_lat" binding:"required,min=-90,max=90"`
	DropLng       *float64   `json:"drop_lng" binding:"required,min=-180,max=180"`
	PickupAddress string     `json:"pickup_address" binding:"required,max=255"`
	DropAddress   string     `json:"drop_address" binding:"required,max=255"`
	PaymentMethod string     `json:"payment_method" binding:"required,oneof=CASH CARD UPI WALLET"`
	VehicleType   string     `json:"vehicle_type" binding:"omitempty,vehicletype"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

// UpdateStatusRequest drives the generic status transition endpoint.
type UpdateStatusRequest struct {
	Status             string  `json:"status" binding:"required"`
	CancellationReason *string `json:"cancellation_reason,omitempty" binding:"omitempty,max=255"`
	OTP                *string `json:"otp,omitempty" binding:"omitempty,len=4,numeric"`
}

// StartRideRequest carries the start OTP.
type StartRideRequest struct {
	OTP string `json:"otp" binding:"required,len=4,numeric"`
}

// CancelRideRequest carries an optional reason.
type CancelRideRequest struct {
	Reason *string `json:"reason,omitempty" binding:"omitempty,max=255"`
}

// RatingRequest is the rating submission payload.
type RatingRequest struct {
	Rating   int     `json:"rating" binding:"required,min=1,max=5"`
	Feedback *string `json:"feedback,omitempty" binding:"omitempty,max=500"`
}

// ListRidesQuery filters the ride history endpoint.
type ListRidesQuery struct {
	Status string `form:"status" binding:"omitempty"`
}

// AvailableRide is the driver-facing projection of a pending ride.
// It never carries the OTP.
type AvailableRide struct {
	Ride               *Ride   `json:"ride"`
	DistanceToPickupKm float64 `json:"distance_to_pickup_km"`
	OTPRequiredAtStart bool    `json:"otp_required_at_start"`
}
