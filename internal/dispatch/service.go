package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richxcame/ride-dispatch/internal/drivers"
	"github.com/richxcame/ride-dispatch/internal/rides"
	"github.com/richxcame/ride-dispatch/pkg/bus"
	"github.com/richxcame/ride-dispatch/pkg/config"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"github.com/richxcame/ride-dispatch/pkg/resilience"
	"go.uber.org/zap"
)

// Presence reports whether a user has a live realtime connection.
// Implemented by the websocket hub.
type Presence interface {
	IsConnected(userID string) bool
}

// Service fans new rides out to nearby drivers: a targeted offer per
// driver channel plus a broadcast on the available-drivers channels.
type Service struct {
	driverStore drivers.StateStore
	repo        *Repository
	realtime    bus.Bus
	presence    Presence
	radiusKm    float64
	retryCfg    resilience.RetryConfig
}

// NewService creates a new dispatch service.
func NewService(driverStore drivers.StateStore, repo *Repository, realtime bus.Bus, cfg *config.DispatchConfig) *Service {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:       cfg.MaxPublishRetries,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
	return &Service{
		driverStore: driverStore,
		repo:        repo,
		realtime:    realtime,
		radiusKm:    cfg.NearbyRadiusKm,
		retryCfg:    retryCfg,
	}
}

// SetPresence attaches the connection tracker used to decide whether a
// targeted driver actually received the offer.
func (s *Service) SetPresence(p Presence) {
	s.presence = p
}

// Dispatch satisfies rides.OfferDispatcher. Errors are reported, not
// returned: the ride stays PENDING and drivers can still pull it from
// the available list.
func (s *Service) Dispatch(ctx context.Context, ride *rides.Ride) {
	report, err := s.DispatchRide(ctx, ride)
	if err != nil {
		logger.ErrorContext(ctx, "ride dispatch failed",
			zap.String("ride_id", ride.ID.String()),
			zap.Error(err),
		)
		return
	}
	logger.InfoContext(ctx, "ride dispatched",
		zap.String("ride_id", ride.ID.String()),
		zap.Int("targeted_drivers", report.TargetedDrivers),
		zap.Int("connected_drivers", report.ConnectedDrivers),
		zap.Int("available_channel_subscribers", report.AvailableChannelSubscribers),
		zap.Int("errors", len(report.Errors)),
	)
}

// DispatchRide finds eligible drivers near the pickup and pushes the
// offer. The report tells apart "nobody nearby" (targeted 0) from
// "nearby but not connected" (targeted > 0, connected 0), which pages.
func (s *Service) DispatchRide(ctx context.Context, ride *rides.Ride) (*BroadcastReport, error) {
	dispatchAttemptsTotal.Inc()

	vehicleType := ride.VehicleType
	nearby, err := s.driverStore.FindNearbyDrivers(ctx, ride.PickupLat, ride.PickupLng, s.radiusKm, &vehicleType)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby drivers: %w", err)
	}

	offer := s.buildOffer(ctx, ride)
	payload, err := json.Marshal(offer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offer: %w", err)
	}

	report := &BroadcastReport{
		RideID:          ride.ID,
		TargetedDrivers: len(nearby),
	}
	dispatchTargetedDrivers.Observe(float64(len(nearby)))

	for _, candidate := range nearby {
		receivers, err := s.publishWithRetry(ctx, DriverChannel(candidate.Driver.ID), payload)
		if err != nil {
			dispatchPublishErrorsTotal.Inc()
			report.Errors = append(report.Errors, fmt.Sprintf("driver %s: %v", candidate.Driver.ID, err))
			continue
		}
		// The bridge subscribes to driver:* as a pattern, so the raw
		// receiver count is nonzero even with no driver app attached.
		// A driver counts as connected only when their socket is live.
		connected := receivers > 0
		if s.presence != nil {
			connected = s.presence.IsConnected(candidate.Driver.UserID.String())
		}
		if connected {
			report.ConnectedDrivers++
		}
	}

	broadcastReceivers, err := s.publishWithRetry(ctx, ChannelAvailableDrivers, payload)
	if err != nil {
		dispatchPublishErrorsTotal.Inc()
		report.Errors = append(report.Errors, fmt.Sprintf("available channel: %v", err))
	} else {
		report.AvailableChannelSubscribers = int(broadcastReceivers)
	}

	if _, err := s.publishWithRetry(ctx, VehicleChannel(vehicleType), payload); err != nil {
		dispatchPublishErrorsTotal.Inc()
		report.Errors = append(report.Errors, fmt.Sprintf("vehicle channel: %v", err))
	}

	if report.TargetedDrivers > 0 && report.ConnectedDrivers == 0 {
		dispatchNoReceiversTotal.Inc()
		// P0: drivers exist near the pickup but none received the
		// offer, which means the realtime path is down.
		logger.ErrorContext(ctx, "P0: no connected drivers received offer",
			zap.String("ride_id", ride.ID.String()),
			zap.Int("targeted_drivers", report.TargetedDrivers),
			zap.Float64("radius_km", s.radiusKm),
		)
	}

	return report, nil
}

func (s *Service) buildOffer(ctx context.Context, ride *rides.Ride) *OfferEvent {
	offer := &OfferEvent{
		Type:          "ride_offer",
		RideID:        ride.ID,
		PickupLat:     ride.PickupLat,
		PickupLng:     ride.PickupLng,
		DropLat:       ride.DropLat,
		DropLng:       ride.DropLng,
		PickupAddress: ride.PickupAddress,
		DropAddress:   ride.DropAddress,
		VehicleType:   ride.VehicleType,
		TotalFare:     ride.TotalFare,
		DistanceKm:    ride.DistanceKm,
		Timestamp:     time.Now(),
	}

	if s.repo != nil {
		name, err := s.repo.GetPassengerName(ctx, ride.PassengerID)
		if err != nil {
			logger.DebugContext(ctx, "passenger name lookup failed",
				zap.String("ride_id", ride.ID.String()),
				zap.Error(err),
			)
		} else {
			offer.PassengerName = name
		}
	}

	return offer
}

func (s *Service) publishWithRetry(ctx context.Context, channel string, payload []byte) (int64, error) {
	result, err := resilience.RetryWithName(ctx, s.retryCfg,
		func(ctx context.Context) (interface{}, error) {
			return s.realtime.Publish(ctx, channel, payload)
		}, "dispatch_publish")
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}
