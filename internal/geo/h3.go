package geo

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// H3 resolution levels.
// See: https://h3geo.org/docs/core-library/restable
const (
	// DefaultResolution is used for driver-rider matching (~175m edge, ~0.11 km²).
	DefaultResolution = 9

	// MinResolution and MaxResolution bound the configurable matching resolution.
	MinResolution = 7
	MaxResolution = 10

	// DefaultMaxK is the widest k-ring the dispatcher expands to.
	DefaultMaxK = 3
)

// ErrBadCoordinate is returned for out-of-range latitude or longitude.
var ErrBadCoordinate = fmt.Errorf("coordinates out of range")

// ValidateCoordinates checks latitude and longitude bounds.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: lat=%f lng=%f", ErrBadCoordinate, lat, lng)
	}
	return nil
}

// LatLngToCell converts latitude/longitude to an H3 cell index at the given
// resolution. Deterministic: the same input always yields the same cell.
func LatLngToCell(lat, lng float64, resolution int) (h3.Cell, error) {
	if err := ValidateCoordinates(lat, lng); err != nil {
		return 0, err
	}
	latLng := h3.NewLatLng(lat, lng)
	cell, err := h3.LatLngToCell(latLng, resolution)
	if err != nil {
		return 0, fmt.Errorf("lat/lng to cell: %w", err)
	}
	return cell, nil
}

// CellIndex returns the cell for the coordinates as a hex string, the form
// the driver index and Redis keys use.
func CellIndex(lat, lng float64, resolution int) (string, error) {
	cell, err := LatLngToCell(lat, lng, resolution)
	if err != nil {
		return "", err
	}
	return cell.String(), nil
}

// KRing returns the set of cells within k hexagonal steps of the origin,
// origin included. |KRing(c,k)| = 1 + 3k(k+1), so k=1 yields 7 cells.
func KRing(origin h3.Cell, k int) ([]h3.Cell, error) {
	cells, err := origin.GridDisk(k)
	if err != nil {
		return nil, fmt.Errorf("grid disk k=%d: %w", k, err)
	}
	return cells, nil
}

// KRingStrings returns the k-ring as hex strings.
func KRingStrings(origin h3.Cell, k int) ([]string, error) {
	cells, err := KRing(origin, k)
	if err != nil {
		return nil, err
	}
	result := make([]string, len(cells))
	for i, cell := range cells {
		result[i] = cell.String()
	}
	return result, nil
}

// CellToLatLng returns the center coordinates of an H3 cell.
func CellToLatLng(cell h3.Cell) (lat, lng float64) {
	latLng, err := cell.LatLng()
	if err != nil {
		return 0, 0
	}
	return latLng.Lat, latLng.Lng
}

// StringToCell parses an H3 cell hex string back to a Cell.
func StringToCell(s string) h3.Cell {
	return h3.CellFromString(s)
}

// Neighbors returns the immediate neighbors of a cell (k=1 ring excluding center).
func Neighbors(cell h3.Cell) []h3.Cell {
	ring, err := cell.GridDisk(1)
	if err != nil {
		return nil
	}
	neighbors := make([]h3.Cell, 0, len(ring)-1)
	for _, c := range ring {
		if c != cell {
			neighbors = append(neighbors, c)
		}
	}
	return neighbors
}

// CellDistance returns the grid distance between two H3 cells at the same
// resolution, or -1 if it cannot be computed.
func CellDistance(a, b h3.Cell) int {
	dist, err := a.GridDistance(b)
	if err != nil {
		return -1
	}
	return dist
}
