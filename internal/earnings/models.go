package earnings

import (
	"time"

	"github.com/google/uuid"
)

// Earning is one settled ride's payout row. ride_id is unique: a ride
// settles at most once.
type Earning struct {
	ID               uuid.UUID `json:"id"`
	DriverID         uuid.UUID `json:"driver_id"`
	RideID           uuid.UUID `json:"ride_id"`
	GrossAmount      float64   `json:"gross_amount"`
	CommissionRate   float64   `json:"commission_rate"`
	CommissionAmount float64   `json:"commission_amount"`
	NetAmount        float64   `json:"net_amount"`
	PaymentMethod    string    `json:"payment_method"`
	CreatedAt        time.Time `json:"created_at"`
}

// Summary aggregates a driver's earnings over a window.
type Summary struct {
	TotalRides      int64   `json:"total_rides"`
	TotalGross      float64 `json:"total_gross"`
	TotalCommission float64 `json:"total_commission"`
	TotalNet        float64 `json:"total_net"`

	Daily []DailyTotal `json:"daily"`
}

// DailyTotal is one day's aggregate, newest first.
type DailyTotal struct {
	Date     string  `json:"date"`
	Rides    int64   `json:"rides"`
	NetTotal float64 `json:"net_total"`
}

// SummaryQuery bounds the summary window in days.
type SummaryQuery struct {
	Days int `form:"days" binding:"omitempty,min=1,max=90"`
}
