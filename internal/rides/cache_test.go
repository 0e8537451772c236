package rides

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveRideCache_PutGet(t *testing.T) {
	cache := NewActiveRideCache()
	ride := &Ride{ID: uuid.New(), Status: StatusPending, RideOTP: "4821"}

	cache.Put(ride)
	got := cache.Get(ride.ID)
	require.NotNil(t, got)
	assert.Equal(t, ride.ID, got.ID)
	assert.Equal(t, "4821", got.RideOTP)
	assert.Equal(t, 1, cache.Len())
}

func TestActiveRideCache_GetReturnsCopy(t *testing.T) {
	cache := NewActiveRideCache()
	ride := &Ride{ID: uuid.New(), Status: StatusPending}
	cache.Put(ride)

	got := cache.Get(ride.ID)
	got.Status = StatusRideStarted

	again := cache.Get(ride.ID)
	assert.Equal(t, StatusPending, again.Status)
}

func TestActiveRideCache_TerminalPutEvicts(t *testing.T) {
	cache := NewActiveRideCache()
	ride := &Ride{ID: uuid.New(), Status: StatusRideStarted}
	cache.Put(ride)
	require.NotNil(t, cache.Get(ride.ID))

	done := *ride
	done.Status = StatusRideCompleted
	cache.Put(&done)

	assert.Nil(t, cache.Get(ride.ID))
	assert.Equal(t, 0, cache.Len())
}

func TestActiveRideCache_Evict(t *testing.T) {
	cache := NewActiveRideCache()
	ride := &Ride{ID: uuid.New(), Status: StatusPending}
	cache.Put(ride)

	cache.Evict(ride.ID)
	assert.Nil(t, cache.Get(ride.ID))

	// Evicting a missing ride is a no-op.
	cache.Evict(uuid.New())
}

func TestActiveRideCache_MissReturnsNil(t *testing.T) {
	cache := NewActiveRideCache()
	assert.Nil(t, cache.Get(uuid.New()))
}
