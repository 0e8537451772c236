package drivers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/pricing"
)

// ErrDriverNotFound is returned by store lookups for unknown drivers.
var ErrDriverNotFound = errors.New("driver not found in state store")

// StateStore is the authoritative in-process view of hydrated drivers.
// Two implementations exist: MemoryStore (single process) and
// RedisStore (shared key-value backend for horizontal scale).
type StateStore interface {
	// RegisterDriver upserts a record; if it has coordinates it is
	// indexed under its H3 cell.
	RegisterDriver(ctx context.Context, record *DriverRecord) error

	// UpdateLocation applies a telemetry update: coordinates,
	// lastActiveAt, and the cell index move when the cell changes.
	// The record is marked location-dirty for the flush loop.
	UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lng float64, heading, speed *float64) (*LocationUpdateResult, error)

	// SetOnlineStatus toggles online-set membership and enqueues a
	// persistent status write.
	SetOnlineStatus(ctx context.Context, driverID uuid.UUID, isOnline bool) error

	// FindNearbyDrivers runs the progressive k-ring search and returns
	// eligible drivers ordered by ascending distance.
	FindNearbyDrivers(ctx context.Context, lat, lng, maxRadiusKm float64, vehicleType *pricing.VehicleType) ([]*NearbyDriver, error)

	GetDriver(ctx context.Context, driverID uuid.UUID) (*DriverRecord, error)
	GetDriverByUserID(ctx context.Context, userID uuid.UUID) (*DriverRecord, error)

	// ResolveDriverID accepts either a driver id or a user id and
	// returns the driver id.
	ResolveDriverID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

	// HydrateFromStore bulk-loads records on startup. Readiness is
	// gated on this completing.
	HydrateFromStore(ctx context.Context, records []*DriverRecord) error

	// DrainDirtyLocations returns and clears pending location writes,
	// latest coordinates per driver.
	DrainDirtyLocations(ctx context.Context) []LocationWrite

	// DrainStatusWrites returns and clears the pending status queue.
	DrainStatusWrites(ctx context.Context) []StatusWrite

	// RequeueStatusWrites puts failed status writes back for the next
	// flush cycle.
	RequeueStatusWrites(ctx context.Context, writes []StatusWrite)

	// RecordWriteFailure counts a persistent write dropped after
	// exhausting retries.
	RecordWriteFailure(kind string)

	// GetMetrics returns the counter snapshot.
	GetMetrics(ctx context.Context) StoreMetrics
}
