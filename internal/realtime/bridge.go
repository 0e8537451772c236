// Package realtime connects the pub/sub fabric to the WebSocket hub:
// offers published on driver channels and events on ride channels are
// forwarded to the matching connected clients.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/dispatch"
	"github.com/richxcame/ride-dispatch/internal/drivers"
	"github.com/richxcame/ride-dispatch/pkg/bus"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"github.com/richxcame/ride-dispatch/pkg/websocket"
	"go.uber.org/zap"
)

// Bridge subscribes to the bus and pushes payloads into the hub.
type Bridge struct {
	bus   bus.PatternBus
	hub   *websocket.Hub
	store drivers.StateStore

	unsubs []bus.Unsubscribe
}

// NewBridge creates a new bridge.
func NewBridge(b bus.PatternBus, hub *websocket.Hub, store drivers.StateStore) *Bridge {
	return &Bridge{bus: b, hub: hub, store: store}
}

// Start opens the subscriptions. Must be called before clients connect
// so early offers are not dropped by the bridge itself.
func (b *Bridge) Start(ctx context.Context) error {
	subs := []struct {
		pattern string
		handler bus.Handler
	}{
		{"ride:*", b.forwardRideEvent},
		{"driver:*", func(channel string, payload []byte) { b.forwardDriverOffer(ctx, channel, payload) }},
		{dispatch.ChannelAvailableDrivers + "*", b.forwardBroadcast},
	}

	for _, sub := range subs {
		unsub, err := b.bus.PSubscribe(ctx, sub.pattern, sub.handler)
		if err != nil {
			b.Stop()
			return err
		}
		b.unsubs = append(b.unsubs, unsub)
	}
	return nil
}

// Stop detaches all subscriptions.
func (b *Bridge) Stop() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}

// forwardRideEvent delivers ride lifecycle events to the ride room.
func (b *Bridge) forwardRideEvent(channel string, payload []byte) {
	rideID, ok := strings.CutPrefix(channel, "ride:")
	if !ok {
		return
	}
	b.hub.SendToRide(rideID, wrap("ride_update", rideID, payload))
}

// forwardDriverOffer delivers a targeted offer to the driver's socket.
// Channels are keyed by driver id, the hub by user id.
func (b *Bridge) forwardDriverOffer(ctx context.Context, channel string, payload []byte) {
	raw, ok := strings.CutPrefix(channel, "driver:")
	if !ok {
		return
	}
	driverID, err := uuid.Parse(raw)
	if err != nil {
		return
	}

	record, err := b.store.GetDriver(ctx, driverID)
	if err != nil {
		logger.Debug("offer for unknown driver dropped",
			zap.String("driver_id", raw),
		)
		return
	}

	b.hub.SendToUser(record.UserID.String(), wrap("ride_offer", "", payload))
}

// forwardBroadcast fans the offer to every connected client; driver
// apps filter by vehicle type client-side.
func (b *Bridge) forwardBroadcast(channel string, payload []byte) {
	b.hub.SendToAll(wrap("ride_offer", "", payload))
}

func wrap(msgType, rideID string, payload []byte) *websocket.Message {
	data := make(map[string]interface{})
	if err := json.Unmarshal(payload, &data); err != nil {
		data = map[string]interface{}{"raw": string(payload)}
	}
	return &websocket.Message{
		Type:      msgType,
		RideID:    rideID,
		Timestamp: time.Now(),
		Data:      data,
	}
}
