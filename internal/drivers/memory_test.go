package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/ride-dispatch/internal/pricing"
	"github.com/richxcame/ride-dispatch/pkg/config"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore(&config.DispatchConfig{
		H3Resolution:       9,
		MaxKRing:           3,
		HeartbeatStaleness: 5 * time.Minute,
	})
}

func registerTestDriver(t *testing.T, store *MemoryStore, lat, lng float64, vehicleType pricing.VehicleType, online bool) *DriverRecord {
	t.Helper()
	record := &DriverRecord{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		IsOnline:     online,
		IsActive:     true,
		CurrentLat:   &lat,
		CurrentLng:   &lng,
		VehicleType:  vehicleType,
		LastActiveAt: time.Now(),
	}
	require.NoError(t, store.RegisterDriver(context.Background(), record))
	return record
}

func TestFindNearbyDrivers_ReturnsCloseDriver(t *testing.T) {
	store := newTestStore()
	driver := registerTestDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab, true)

	nearby, err := store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, nil)
	require.NoError(t, err)
	require.Len(t, nearby, 1)

	assert.Equal(t, driver.ID, nearby[0].Driver.ID)
	assert.Less(t, nearby[0].DistanceKm, 1.0)
}

func TestFindNearbyDrivers_SortedByDistance(t *testing.T) {
	store := newTestStore()
	// Both inside the first k-ring so a single expansion sees them.
	far := registerTestDriver(t, store, 28.6152, 77.2090, pricing.VehicleCab, true)
	near := registerTestDriver(t, store, 28.6142, 77.2091, pricing.VehicleCab, true)

	nearby, err := store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, nil)
	require.NoError(t, err)
	require.Len(t, nearby, 2)

	assert.Equal(t, near.ID, nearby[0].Driver.ID)
	assert.Equal(t, far.ID, nearby[1].Driver.ID)
	assert.LessOrEqual(t, nearby[0].DistanceKm, nearby[1].DistanceKm)
}

func TestFindNearbyDrivers_ExcludesOffline(t *testing.T) {
	store := newTestStore()
	registerTestDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab, false)

	nearby, err := store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, nearby)
}

func TestFindNearbyDrivers_ExcludesStaleHeartbeat(t *testing.T) {
	store := newTestStore()
	driver := registerTestDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab, true)

	// Age the heartbeat past the staleness cutoff.
	store.mu.Lock()
	store.drivers[driver.ID].record.LastActiveAt = time.Now().Add(-10 * time.Minute)
	store.mu.Unlock()

	nearby, err := store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, nearby)
}

func TestFindNearbyDrivers_VehicleTypeFilter(t *testing.T) {
	store := newTestStore()
	registerTestDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab, true)
	bike := registerTestDriver(t, store, 28.6145, 77.2095, pricing.VehicleBike, true)

	vt := pricing.VehicleBike
	nearby, err := store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, &vt)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, bike.ID, nearby[0].Driver.ID)
}

func TestFindNearbyDrivers_RespectsRadius(t *testing.T) {
	store := newTestStore()
	registerTestDriver(t, store, 28.6250, 77.2200, pricing.VehicleCab, true)

	nearby, err := store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 0.5, nil)
	require.NoError(t, err)
	assert.Empty(t, nearby)
}

func TestFindNearbyDrivers_RejectsBadCoordinates(t *testing.T) {
	store := newTestStore()
	_, err := store.FindNearbyDrivers(context.Background(), 120, 77.2090, 10, nil)
	assert.Error(t, err)
}

func TestUpdateLocation_MovesCell(t *testing.T) {
	store := newTestStore()
	driver := registerTestDriver(t, store, 28.6139, 77.2090, pricing.VehicleCab, true)

	// Delhi to Mumbai always crosses cells at resolution 9.
	result, err := store.UpdateLocation(context.Background(), driver.ID, 19.0760, 72.8777, nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.True(t, result.H3Changed)
	assert.NotEmpty(t, result.NewCell)

	nearDelhi, err := store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, nearDelhi)

	nearMumbai, err := store.FindNearbyDrivers(context.Background(), 19.0760, 72.8777, 10, nil)
	require.NoError(t, err)
	require.Len(t, nearMumbai, 1)
	assert.Equal(t, driver.ID, nearMumbai[0].Driver.ID)
}

func TestUpdateLocation_UnknownDriver(t *testing.T) {
	store := newTestStore()
	_, err := store.UpdateLocation(context.Background(), uuid.New(), 28.6139, 77.2090, nil, nil)
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestSetOnlineStatus_TogglesVisibility(t *testing.T) {
	store := newTestStore()
	driver := registerTestDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab, true)

	require.NoError(t, store.SetOnlineStatus(context.Background(), driver.ID, false))
	nearby, err := store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, nearby)

	require.NoError(t, store.SetOnlineStatus(context.Background(), driver.ID, true))
	nearby, err = store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, nil)
	require.NoError(t, err)
	assert.Len(t, nearby, 1)
}

func TestResolveDriverID(t *testing.T) {
	store := newTestStore()
	driver := registerTestDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab, true)

	byDriver, err := store.ResolveDriverID(context.Background(), driver.ID)
	require.NoError(t, err)
	assert.Equal(t, driver.ID, byDriver)

	byUser, err := store.ResolveDriverID(context.Background(), driver.UserID)
	require.NoError(t, err)
	assert.Equal(t, driver.ID, byUser)

	_, err = store.ResolveDriverID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestGetDriver_ReturnsCopy(t *testing.T) {
	store := newTestStore()
	driver := registerTestDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab, true)

	got, err := store.GetDriver(context.Background(), driver.ID)
	require.NoError(t, err)
	got.IsOnline = false

	again, err := store.GetDriver(context.Background(), driver.ID)
	require.NoError(t, err)
	assert.True(t, again.IsOnline)
}

func TestDrainDirtyLocations_LatestWritePerDriver(t *testing.T) {
	store := newTestStore()
	driver := registerTestDriver(t, store, 28.6139, 77.2090, pricing.VehicleCab, true)

	_, err := store.UpdateLocation(context.Background(), driver.ID, 28.6150, 77.2100, nil, nil)
	require.NoError(t, err)
	_, err = store.UpdateLocation(context.Background(), driver.ID, 28.6160, 77.2110, nil, nil)
	require.NoError(t, err)

	writes := store.DrainDirtyLocations(context.Background())
	require.Len(t, writes, 1)
	assert.Equal(t, driver.ID, writes[0].DriverID)
	assert.Equal(t, 28.6160, writes[0].Lat)
	assert.Equal(t, 77.2110, writes[0].Lng)
	assert.NotEmpty(t, writes[0].H3Index)

	// Nothing dirty remains after a drain.
	assert.Empty(t, store.DrainDirtyLocations(context.Background()))
}

func TestDrainStatusWrites_AndRequeue(t *testing.T) {
	store := newTestStore()
	driver := registerTestDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab, true)

	require.NoError(t, store.SetOnlineStatus(context.Background(), driver.ID, false))
	require.NoError(t, store.SetOnlineStatus(context.Background(), driver.ID, true))

	writes := store.DrainStatusWrites(context.Background())
	require.Len(t, writes, 2)
	assert.False(t, writes[0].IsOnline)
	assert.True(t, writes[1].IsOnline)
	assert.Empty(t, store.DrainStatusWrites(context.Background()))

	store.RequeueStatusWrites(context.Background(), writes)
	requeued := store.DrainStatusWrites(context.Background())
	assert.Len(t, requeued, 2)
}

func TestHydrateFromStore(t *testing.T) {
	store := newTestStore()
	lat, lng := 28.6150, 77.2100
	records := []*DriverRecord{
		{ID: uuid.New(), UserID: uuid.New(), IsOnline: true, IsActive: true, CurrentLat: &lat, CurrentLng: &lng, VehicleType: pricing.VehicleCab, LastActiveAt: time.Now()},
		{ID: uuid.New(), UserID: uuid.New(), IsOnline: false, IsActive: true, VehicleType: pricing.VehicleAuto, LastActiveAt: time.Now()},
	}
	require.NoError(t, store.HydrateFromStore(context.Background(), records))

	nearby, err := store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, nil)
	require.NoError(t, err)
	assert.Len(t, nearby, 1)

	for _, record := range records {
		_, err := store.GetDriver(context.Background(), record.ID)
		assert.NoError(t, err)
	}
}

func TestGetMetrics_Counters(t *testing.T) {
	store := newTestStore()
	driver := registerTestDriver(t, store, 28.6139, 77.2090, pricing.VehicleCab, true)

	_, err := store.UpdateLocation(context.Background(), driver.ID, 28.6150, 77.2100, nil, nil)
	require.NoError(t, err)
	_, err = store.FindNearbyDrivers(context.Background(), 28.6139, 77.2090, 10, nil)
	require.NoError(t, err)

	metrics := store.GetMetrics(context.Background())
	assert.Equal(t, int64(1), metrics.UpdatesProcessed)
	assert.Equal(t, int64(1), metrics.Queries)
	assert.GreaterOrEqual(t, metrics.TrackedCells, 1)
	assert.GreaterOrEqual(t, metrics.QueuedWrites, 1)
}
