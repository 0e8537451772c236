package pricing

// VehicleType identifies the vehicle class a fare is quoted for.
type VehicleType string

const (
	VehicleCab  VehicleType = "cab"
	VehicleAuto VehicleType = "auto"
	VehicleBike VehicleType = "bike"
)

// Valid reports whether the vehicle type is one we price.
func (v VehicleType) Valid() bool {
	switch v {
	case VehicleCab, VehicleAuto, VehicleBike:
		return true
	}
	return false
}

// AllVehicleTypes lists the priced vehicle classes in display order.
func AllVehicleTypes() []VehicleType {
	return []VehicleType{VehicleCab, VehicleAuto, VehicleBike}
}

// Rate is the absolute per-vehicle rate card.
type Rate struct {
	BaseFare  float64
	PerKm     float64
	PerMinute float64
}

// FareQuote is the complete fare breakdown for one vehicle type.
// TotalFare is always the sum of the other monetary fields.
type FareQuote struct {
	VehicleType  VehicleType `json:"vehicle_type"`
	BaseFare     float64     `json:"base_fare"`
	DistanceFare float64     `json:"distance_fare"`
	TimeFare     float64     `json:"time_fare"`
	ServiceFee   float64     `json:"service_fee"`
	InsuranceFee float64     `json:"insurance_fee"`
	PlatformFee  float64     `json:"platform_fee"`
	TotalFare    float64     `json:"total_fare"`
	DistanceKm   float64     `json:"distance_km"`
	DurationMin  int         `json:"duration_min"`

	// Extension points for dynamic pricing, currently pinned to 1.0.
	SurgeMultiplier    float64 `json:"surge_multiplier"`
	PeakHourMultiplier float64 `json:"peak_hour_multiplier"`
}

// EstimateRequest is the query shape for fare quotes. Coordinates are
// pointers so a legal 0 (equator, prime meridian) survives the
// required check, which rejects zero values on plain floats.
type EstimateRequest struct {
	PickupLat *float64 `form:"pickup_lat" binding:"required,min=-90,max=90"`
	PickupLng *float64 `form:"pickup_lng" binding:"required,min=-180,max=180"`
	DropLat   *float64 `form:"drop_lat" binding:"required,min=-90,max=90"`
	DropLng   *float64 `form:"drop_lng" binding:"required,min=-180,max=180"`
}
