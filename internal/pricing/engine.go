package pricing

import (
	"math"
	"time"

	"github.com/richxcame/ride-dispatch/internal/geo"
	"github.com/richxcame/ride-dispatch/pkg/config"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"go.uber.org/zap"
)

// averageSpeedKmh is the fixed speed assumption behind duration estimates.
const averageSpeedKmh = 25.0

// Engine computes fares from coordinates and the configured rate card.
// Stateless and safe for concurrent use.
type Engine struct {
	rates        map[VehicleType]Rate
	serviceFee   float64
	insuranceFee float64
	platformFee  float64
}

// NewEngine creates a pricing engine with the rate card and fee
// schedule from config.
func NewEngine(cfg *config.PricingConfig) *Engine {
	return &Engine{
		rates: map[VehicleType]Rate{
			VehicleCab:  rateFromConfig(cfg.CabRate),
			VehicleAuto: rateFromConfig(cfg.AutoRate),
			VehicleBike: rateFromConfig(cfg.BikeRate),
		},
		serviceFee:   cfg.ServiceFee,
		insuranceFee: cfg.InsuranceFee,
		platformFee:  cfg.PlatformFee,
	}
}

func rateFromConfig(r config.VehicleRate) Rate {
	return Rate{BaseFare: r.BaseFare, PerKm: r.PerKm, PerMinute: r.PerMinute}
}

// CalculateFare quotes a fare for a single vehicle type. An unknown
// vehicle type falls back to cab with a warning, it never hard-fails.
func (e *Engine) CalculateFare(pickupLat, pickupLng, dropLat, dropLng float64, vehicleType VehicleType, scheduledTime *time.Time) *FareQuote {
	rate, ok := e.rates[vehicleType]
	if !ok {
		logger.Warn("unknown vehicle type, defaulting to cab",
			zap.String("vehicle_type", string(vehicleType)),
		)
		vehicleType = VehicleCab
		rate = e.rates[VehicleCab]
	}

	distanceKm := geo.RoundKm(geo.HaversineKm(pickupLat, pickupLng, dropLat, dropLng))
	durationMin := int(math.Ceil(distanceKm / averageSpeedKmh * 60))

	quote := &FareQuote{
		VehicleType:        vehicleType,
		BaseFare:           rate.BaseFare,
		DistanceFare:       distanceKm * rate.PerKm,
		TimeFare:           float64(durationMin) * rate.PerMinute,
		ServiceFee:         e.serviceFee,
		InsuranceFee:       e.insuranceFee,
		PlatformFee:        e.platformFee,
		DistanceKm:         distanceKm,
		DurationMin:        durationMin,
		SurgeMultiplier:    1.0,
		PeakHourMultiplier: 1.0,
	}

	rideFare := (quote.BaseFare + quote.DistanceFare + quote.TimeFare) *
		quote.SurgeMultiplier * quote.PeakHourMultiplier
	quote.TotalFare = rideFare + quote.ServiceFee + quote.InsuranceFee + quote.PlatformFee

	quote.roundValues()
	return quote
}

// CalculateAllFares quotes every vehicle type for the same trip.
func (e *Engine) CalculateAllFares(pickupLat, pickupLng, dropLat, dropLng float64) map[VehicleType]*FareQuote {
	quotes := make(map[VehicleType]*FareQuote, len(e.rates))
	for _, vt := range AllVehicleTypes() {
		quotes[vt] = e.CalculateFare(pickupLat, pickupLng, dropLat, dropLng, vt, nil)
	}
	return quotes
}

// roundValues rounds all monetary values to 2 decimal places
func (f *FareQuote) roundValues() {
	f.BaseFare = round2(f.BaseFare)
	f.DistanceFare = round2(f.DistanceFare)
	f.TimeFare = round2(f.TimeFare)
	f.ServiceFee = round2(f.ServiceFee)
	f.InsuranceFee = round2(f.InsuranceFee)
	f.PlatformFee = round2(f.PlatformFee)
	f.TotalFare = round2(f.TotalFare)
	f.DistanceKm = round2(f.DistanceKm)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
