package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/ride-dispatch/internal/geo"
	"github.com/richxcame/ride-dispatch/pkg/config"
)

func testEngine() *Engine {
	return NewEngine(&config.PricingConfig{
		ServiceFee:   10,
		InsuranceFee: 2,
		PlatformFee:  10,
		CabRate:      config.VehicleRate{BaseFare: 30, PerKm: 15, PerMinute: 1.5},
		AutoRate:     config.VehicleRate{BaseFare: 30, PerKm: 10, PerMinute: 1.0},
		BikeRate:     config.VehicleRate{BaseFare: 20, PerKm: 7, PerMinute: 1.0},
	})
}

func TestCalculateFare_ZeroDistance(t *testing.T) {
	engine := testEngine()

	quote := engine.CalculateFare(28.6139, 77.2090, 28.6139, 77.2090, VehicleCab, nil)
	require.NotNil(t, quote)

	assert.Equal(t, VehicleCab, quote.VehicleType)
	assert.Equal(t, 0.0, quote.DistanceKm)
	assert.Equal(t, 0, quote.DurationMin)
	assert.Equal(t, 30.0, quote.BaseFare)
	assert.Equal(t, 0.0, quote.DistanceFare)
	assert.Equal(t, 0.0, quote.TimeFare)
	// base 30 + service 10 + insurance 2 + platform 10
	assert.Equal(t, 52.0, quote.TotalFare)
}

func TestCalculateFare_CityTrip(t *testing.T) {
	engine := testEngine()

	// Delhi to Noida, roughly 20 km.
	quote := engine.CalculateFare(28.6139, 77.2090, 28.5355, 77.3910, VehicleCab, nil)
	require.NotNil(t, quote)

	wantDistance := geo.RoundKm(geo.HaversineKm(28.6139, 77.2090, 28.5355, 77.3910))
	assert.Equal(t, wantDistance, quote.DistanceKm)
	assert.InDelta(t, 19.8, quote.DistanceKm, 1.0)

	wantDuration := int(math.Ceil(quote.DistanceKm / 25.0 * 60))
	assert.Equal(t, wantDuration, quote.DurationMin)

	assert.Equal(t, 30.0, quote.BaseFare)
	assert.InDelta(t, quote.DistanceKm*15, quote.DistanceFare, 0.01)
	assert.InDelta(t, float64(quote.DurationMin)*1.5, quote.TimeFare, 0.01)
	assert.Equal(t, 1.0, quote.SurgeMultiplier)
	assert.Equal(t, 1.0, quote.PeakHourMultiplier)
}

func TestCalculateFare_TotalIsSumOfParts(t *testing.T) {
	engine := testEngine()

	for _, vt := range AllVehicleTypes() {
		quote := engine.CalculateFare(28.6139, 77.2090, 28.5355, 77.3910, vt, nil)
		sum := quote.BaseFare + quote.DistanceFare + quote.TimeFare +
			quote.ServiceFee + quote.InsuranceFee + quote.PlatformFee
		// Parts and total are rounded independently.
		assert.InDelta(t, sum, quote.TotalFare, 0.03, "vehicle=%s", vt)
	}
}

func TestCalculateFare_UsesConfiguredRateCard(t *testing.T) {
	engine := NewEngine(&config.PricingConfig{
		ServiceFee:   5,
		InsuranceFee: 1,
		PlatformFee:  4,
		CabRate:      config.VehicleRate{BaseFare: 50, PerKm: 20, PerMinute: 2.0},
		AutoRate:     config.VehicleRate{BaseFare: 30, PerKm: 10, PerMinute: 1.0},
		BikeRate:     config.VehicleRate{BaseFare: 20, PerKm: 7, PerMinute: 1.0},
	})

	quote := engine.CalculateFare(28.6139, 77.2090, 28.5355, 77.3910, VehicleCab, nil)
	require.NotNil(t, quote)

	assert.Equal(t, 50.0, quote.BaseFare)
	assert.InDelta(t, quote.DistanceKm*20, quote.DistanceFare, 0.01)
	assert.InDelta(t, float64(quote.DurationMin)*2.0, quote.TimeFare, 0.01)
	assert.Equal(t, 5.0, quote.ServiceFee)
	assert.Equal(t, 1.0, quote.InsuranceFee)
	assert.Equal(t, 4.0, quote.PlatformFee)
}

func TestCalculateFare_UnknownVehicleFallsBackToCab(t *testing.T) {
	engine := testEngine()

	quote := engine.CalculateFare(28.6139, 77.2090, 28.5355, 77.3910, VehicleType("rickshaw"), nil)
	cab := engine.CalculateFare(28.6139, 77.2090, 28.5355, 77.3910, VehicleCab, nil)

	assert.Equal(t, VehicleCab, quote.VehicleType)
	assert.Equal(t, cab.TotalFare, quote.TotalFare)
}

func TestCalculateAllFares(t *testing.T) {
	engine := testEngine()

	quotes := engine.CalculateAllFares(28.6139, 77.2090, 28.5355, 77.3910)
	require.Len(t, quotes, 3)

	for _, vt := range AllVehicleTypes() {
		require.Contains(t, quotes, vt)
		assert.Equal(t, vt, quotes[vt].VehicleType)
	}

	// Rate cards order the totals for any non-trivial trip.
	assert.Greater(t, quotes[VehicleCab].TotalFare, quotes[VehicleAuto].TotalFare)
	assert.Greater(t, quotes[VehicleAuto].TotalFare, quotes[VehicleBike].TotalFare)
}

func TestVehicleType_Valid(t *testing.T) {
	assert.True(t, VehicleCab.Valid())
	assert.True(t, VehicleAuto.Valid())
	assert.True(t, VehicleBike.Valid())
	assert.False(t, VehicleType("truck").Valid())
	assert.False(t, VehicleType("").Valid())
}
