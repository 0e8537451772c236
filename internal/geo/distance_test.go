package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name     string
		lat1     float64
		lng1     float64
		lat2     float64
		lng2     float64
		expected float64
		delta    float64
	}{
		{
			name: "same point returns zero",
			lat1: 28.6139, lng1: 77.2090,
			lat2: 28.6139, lng2: 77.2090,
			expected: 0.0,
			delta:    0.001,
		},
		{
			name: "one degree along the equator",
			lat1: 0, lng1: 0,
			lat2: 0, lng2: 1,
			expected: 111.19,
			delta:    0.05,
		},
		{
			name: "Delhi to Noida approximately 20 km",
			lat1: 28.6139, lng1: 77.2090,
			lat2: 28.5355, lng2: 77.3910,
			expected: 19.8,
			delta:    1.0,
		},
		{
			name: "Delhi to Mumbai approximately 1150 km",
			lat1: 28.6139, lng1: 77.2090,
			lat2: 19.0760, lng2: 72.8777,
			expected: 1150.0,
			delta:    30.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2), tt.delta)
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := HaversineKm(28.6139, 77.2090, 19.0760, 72.8777)
	d2 := HaversineKm(19.0760, 72.8777, 28.6139, 77.2090)
	assert.InDelta(t, d1, d2, 0.001)
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 1.23, RoundKm(1.2345))
	assert.Equal(t, 1.24, RoundKm(1.235))
	assert.Equal(t, 0.0, RoundKm(0))
}
