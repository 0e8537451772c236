package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{name: "valid city coordinates", lat: 28.6139, lng: 77.2090, wantErr: false},
		{name: "boundary values are valid", lat: 90, lng: -180, wantErr: false},
		{name: "latitude too high", lat: 90.01, lng: 0, wantErr: true},
		{name: "latitude too low", lat: -91, lng: 0, wantErr: true},
		{name: "longitude too high", lat: 0, lng: 180.5, wantErr: true},
		{name: "longitude too low", lat: 0, lng: -181, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lng)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadCoordinate)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCellIndex_Deterministic(t *testing.T) {
	a, err := CellIndex(28.6139, 77.2090, DefaultResolution)
	require.NoError(t, err)
	b, err := CellIndex(28.6139, 77.2090, DefaultResolution)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestCellIndex_DistantPointsDiffer(t *testing.T) {
	delhi, err := CellIndex(28.6139, 77.2090, DefaultResolution)
	require.NoError(t, err)
	mumbai, err := CellIndex(19.0760, 72.8777, DefaultResolution)
	require.NoError(t, err)
	assert.NotEqual(t, delhi, mumbai)
}

func TestCellIndex_RejectsBadCoordinates(t *testing.T) {
	_, err := CellIndex(120, 77, DefaultResolution)
	assert.ErrorIs(t, err, ErrBadCoordinate)
}

func TestKRing_Sizes(t *testing.T) {
	origin, err := LatLngToCell(28.6139, 77.2090, DefaultResolution)
	require.NoError(t, err)

	// |KRing(c,k)| = 1 + 3k(k+1)
	tests := []struct {
		k    int
		want int
	}{
		{k: 0, want: 1},
		{k: 1, want: 7},
		{k: 2, want: 19},
		{k: 3, want: 37},
	}
	for _, tt := range tests {
		cells, err := KRing(origin, tt.k)
		require.NoError(t, err)
		assert.Len(t, cells, tt.want, "k=%d", tt.k)
	}
}

func TestKRing_ContainsOrigin(t *testing.T) {
	origin, err := LatLngToCell(28.6139, 77.2090, DefaultResolution)
	require.NoError(t, err)

	cells, err := KRing(origin, 2)
	require.NoError(t, err)
	assert.Contains(t, cells, origin)
}

func TestKRingStrings_MatchesCells(t *testing.T) {
	origin, err := LatLngToCell(28.6139, 77.2090, DefaultResolution)
	require.NoError(t, err)

	strs, err := KRingStrings(origin, 1)
	require.NoError(t, err)
	require.Len(t, strs, 7)
	assert.Contains(t, strs, origin.String())
}

func TestNeighbors_ExcludesCenter(t *testing.T) {
	origin, err := LatLngToCell(28.6139, 77.2090, DefaultResolution)
	require.NoError(t, err)

	neighbors := Neighbors(origin)
	assert.Len(t, neighbors, 6)
	assert.NotContains(t, neighbors, origin)
}

func TestCellDistance(t *testing.T) {
	origin, err := LatLngToCell(28.6139, 77.2090, DefaultResolution)
	require.NoError(t, err)

	assert.Equal(t, 0, CellDistance(origin, origin))

	for _, neighbor := range Neighbors(origin) {
		assert.Equal(t, 1, CellDistance(origin, neighbor))
	}
}

func TestStringToCell_RoundTrip(t *testing.T) {
	origin, err := LatLngToCell(28.6139, 77.2090, DefaultResolution)
	require.NoError(t, err)
	assert.Equal(t, origin, StringToCell(origin.String()))
}
