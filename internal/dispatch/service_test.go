package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/ride-dispatch/internal/drivers"
	"github.com/richxcame/ride-dispatch/internal/pricing"
	"github.com/richxcame/ride-dispatch/internal/rides"
	"github.com/richxcame/ride-dispatch/pkg/bus"
	"github.com/richxcame/ride-dispatch/pkg/config"
)

func testDispatchConfig() *config.DispatchConfig {
	return &config.DispatchConfig{
		H3Resolution:       9,
		MaxKRing:           3,
		NearbyRadiusKm:     10,
		HeartbeatStaleness: 5 * time.Minute,
		MaxPublishRetries:  2,
	}
}

func seedDriver(t *testing.T, store *drivers.MemoryStore, lat, lng float64, vehicleType pricing.VehicleType) *drivers.DriverRecord {
	t.Helper()
	record := &drivers.DriverRecord{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		IsOnline:     true,
		IsActive:     true,
		CurrentLat:   &lat,
		CurrentLng:   &lng,
		VehicleType:  vehicleType,
		LastActiveAt: time.Now(),
	}
	require.NoError(t, store.RegisterDriver(context.Background(), record))
	return record
}

func testRide() *rides.Ride {
	return &rides.Ride{
		ID:            uuid.New(),
		PassengerID:   uuid.New(),
		PickupLat:     28.6139,
		PickupLng:     77.2090,
		DropLat:       28.5355,
		DropLng:       77.3910,
		PickupAddress: "Connaught Place",
		DropAddress:   "Sector 18",
		VehicleType:   pricing.VehicleCab,
		TotalFare:     457,
		DistanceKm:    19.8,
		RideOTP:       "4821",
		Status:        rides.StatusPending,
	}
}

func TestDispatchRide_NoDriversNearby(t *testing.T) {
	cfg := testDispatchConfig()
	store := drivers.NewMemoryStore(cfg)
	svc := NewService(store, nil, bus.NewMemoryBus(), cfg)

	report, err := svc.DispatchRide(context.Background(), testRide())
	require.NoError(t, err)

	assert.Equal(t, 0, report.TargetedDrivers)
	assert.Equal(t, 0, report.ConnectedDrivers)
	assert.Empty(t, report.Errors)
}

func TestDispatchRide_TargetedButNobodyConnected(t *testing.T) {
	cfg := testDispatchConfig()
	store := drivers.NewMemoryStore(cfg)
	seedDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab)
	svc := NewService(store, nil, bus.NewMemoryBus(), cfg)

	report, err := svc.DispatchRide(context.Background(), testRide())
	require.NoError(t, err)

	// Drivers exist near the pickup but no socket picked up the offer.
	assert.Equal(t, 1, report.TargetedDrivers)
	assert.Equal(t, 0, report.ConnectedDrivers)
	assert.Equal(t, 0, report.AvailableChannelSubscribers)
}

func TestDispatchRide_ConnectedDriverReceivesOffer(t *testing.T) {
	cfg := testDispatchConfig()
	store := drivers.NewMemoryStore(cfg)
	driver := seedDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab)

	realtime := bus.NewMemoryBus()
	var payloads [][]byte
	_, err := realtime.Subscribe(context.Background(), DriverChannel(driver.ID), func(channel string, payload []byte) {
		payloads = append(payloads, payload)
	})
	require.NoError(t, err)

	svc := NewService(store, nil, realtime, cfg)
	ride := testRide()

	report, err := svc.DispatchRide(context.Background(), ride)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TargetedDrivers)
	assert.Equal(t, 1, report.ConnectedDrivers)
	require.Len(t, payloads, 1)

	var offer OfferEvent
	require.NoError(t, json.Unmarshal(payloads[0], &offer))
	assert.Equal(t, ride.ID, offer.RideID)
	assert.Equal(t, "ride_offer", offer.Type)
	assert.Equal(t, pricing.VehicleCab, offer.VehicleType)
	assert.Equal(t, 457.0, offer.TotalFare)
}

func TestDispatchRide_OfferCarriesNoSecrets(t *testing.T) {
	cfg := testDispatchConfig()
	store := drivers.NewMemoryStore(cfg)
	driver := seedDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab)

	realtime := bus.NewMemoryBus()
	var raw []byte
	_, err := realtime.Subscribe(context.Background(), DriverChannel(driver.ID), func(channel string, payload []byte) {
		raw = payload
	})
	require.NoError(t, err)

	svc := NewService(store, nil, realtime, cfg)
	ride := testRide()

	_, err = svc.DispatchRide(context.Background(), ride)
	require.NoError(t, err)
	require.NotNil(t, raw)

	assert.False(t, strings.Contains(string(raw), ride.RideOTP))

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "ride_otp")
	assert.NotContains(t, fields, "passenger_id")
	assert.NotContains(t, fields, "passenger_phone")
}

func TestDispatchRide_BroadcastChannels(t *testing.T) {
	cfg := testDispatchConfig()
	store := drivers.NewMemoryStore(cfg)
	svc := NewService(store, nil, newCountingBus(t), cfg)

	ride := testRide()
	report, err := svc.DispatchRide(context.Background(), ride)
	require.NoError(t, err)

	assert.Equal(t, 1, report.AvailableChannelSubscribers)
}

// newCountingBus returns a memory bus with one subscriber on the
// available-drivers channel and one on its cab-suffixed variant.
func newCountingBus(t *testing.T) *bus.MemoryBus {
	t.Helper()
	b := bus.NewMemoryBus()
	ctx := context.Background()
	_, err := b.Subscribe(ctx, ChannelAvailableDrivers, func(string, []byte) {})
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, VehicleChannel(pricing.VehicleCab), func(string, []byte) {})
	require.NoError(t, err)
	return b
}

// stubPresence marks a fixed set of user ids as connected.
type stubPresence struct {
	connected map[string]bool
}

func (p stubPresence) IsConnected(userID string) bool {
	return p.connected[userID]
}

func TestDispatchRide_PatternSubscriberIsNotAConnectedDriver(t *testing.T) {
	cfg := testDispatchConfig()
	store := drivers.NewMemoryStore(cfg)
	seedDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab)

	// A wildcard subscriber stands in for the websocket bridge, which
	// always listens on driver:* regardless of connected sockets.
	realtime := bus.NewMemoryBus()
	_, err := realtime.PSubscribe(context.Background(), "driver:*", func(string, []byte) {})
	require.NoError(t, err)

	svc := NewService(store, nil, realtime, cfg)
	svc.SetPresence(stubPresence{connected: map[string]bool{}})

	report, err := svc.DispatchRide(context.Background(), testRide())
	require.NoError(t, err)

	assert.Equal(t, 1, report.TargetedDrivers)
	assert.Equal(t, 0, report.ConnectedDrivers)
}

func TestDispatchRide_PresenceCountsLiveSocket(t *testing.T) {
	cfg := testDispatchConfig()
	store := drivers.NewMemoryStore(cfg)
	driver := seedDriver(t, store, 28.6150, 77.2100, pricing.VehicleCab)

	realtime := bus.NewMemoryBus()
	_, err := realtime.PSubscribe(context.Background(), "driver:*", func(string, []byte) {})
	require.NoError(t, err)

	svc := NewService(store, nil, realtime, cfg)
	svc.SetPresence(stubPresence{connected: map[string]bool{
		driver.UserID.String(): true,
	}})

	report, err := svc.DispatchRide(context.Background(), testRide())
	require.NoError(t, err)

	assert.Equal(t, 1, report.TargetedDrivers)
	assert.Equal(t, 1, report.ConnectedDrivers)
}

func TestDispatchRide_VehicleMismatchNotTargeted(t *testing.T) {
	cfg := testDispatchConfig()
	store := drivers.NewMemoryStore(cfg)
	seedDriver(t, store, 28.6150, 77.2100, pricing.VehicleBike)
	svc := NewService(store, nil, bus.NewMemoryBus(), cfg)

	// A cab request never targets a bike driver.
	report, err := svc.DispatchRide(context.Background(), testRide())
	require.NoError(t, err)
	assert.Equal(t, 0, report.TargetedDrivers)
}

func TestChannelNames(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "driver:"+id.String(), DriverChannel(id))
	assert.Equal(t, "available-drivers:cab", VehicleChannel(pricing.VehicleCab))
}
