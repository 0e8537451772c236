package rides

import (
	"sync"

	"github.com/google/uuid"
)

// ActiveRideCache keeps in-flight rides in memory so the hot paths,
// OTP verification above all, never touch the database. Terminal
// transitions evict the entry.
type ActiveRideCache struct {
	mu    sync.RWMutex
	rides map[uuid.UUID]*Ride
}

// NewActiveRideCache creates an empty cache.
func NewActiveRideCache() *ActiveRideCache {
	return &ActiveRideCache{
		rides: make(map[uuid.UUID]*Ride),
	}
}

// Put stores or refreshes a ride. Terminal rides are evicted instead.
func (c *ActiveRideCache) Put(ride *Ride) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ride.Status.Terminal() {
		delete(c.rides, ride.ID)
		return
	}

	clone := *ride
	c.rides[ride.ID] = &clone
}

// Get returns a copy of the cached ride, or nil on a miss. Callers
// fall back to the repository on a miss.
func (c *ActiveRideCache) Get(rideID uuid.UUID) *Ride {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ride, ok := c.rides[rideID]
	if !ok {
		return nil
	}
	clone := *ride
	return &clone
}

// Evict removes a ride regardless of status.
func (c *ActiveRideCache) Evict(rideID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rides, rideID)
}

// Len reports the number of cached rides.
func (c *ActiveRideCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rides)
}
