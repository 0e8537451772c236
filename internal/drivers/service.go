package drivers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/geo"
	"github.com/richxcame/ride-dispatch/internal/pricing"
	"github.com/richxcame/ride-dispatch/pkg/bus"
	"github.com/richxcame/ride-dispatch/pkg/common"
	"github.com/richxcame/ride-dispatch/pkg/config"
	"github.com/richxcame/ride-dispatch/pkg/eventbus"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"go.uber.org/zap"
)

// ChannelDriverLocations is the fan-out topic carrying location events.
const ChannelDriverLocations = "driver-locations"

// LocationEvent is the payload published on the driver-locations topic.
type LocationEvent struct {
	DriverID  uuid.UUID `json:"driver_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	H3Index   string    `json:"h3_index"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Service is the driver-facing application layer: telemetry ingest,
// online toggles, nearby queries, hydration.
type Service struct {
	store      StateStore
	repo       *Repository
	realtime   bus.Bus
	events     *eventbus.Bus
	pricingCfg *config.PricingConfig

	hydrated bool
}

// NewService creates a new driver service. events may be nil when NATS
// is disabled.
func NewService(store StateStore, repo *Repository, realtime bus.Bus, events *eventbus.Bus, pricingCfg *config.PricingConfig) *Service {
	return &Service{
		store:      store,
		repo:       repo,
		realtime:   realtime,
		events:     events,
		pricingCfg: pricingCfg,
	}
}

// Hydrate bulk-loads every driver row into the state store. Readiness
// is gated on this succeeding.
func (s *Service) Hydrate(ctx context.Context) error {
	records, err := s.repo.LoadAllDrivers(ctx)
	if err != nil {
		return err
	}
	if err := s.store.HydrateFromStore(ctx, records); err != nil {
		return err
	}
	s.hydrated = true
	logger.Info("driver state store hydrated", zap.Int("drivers", len(records)))
	return nil
}

// Hydrated reports whether startup hydration completed.
func (s *Service) Hydrated() bool {
	return s.hydrated
}

// IngestLocation is the telemetry path: validate, update the store,
// publish a location event. Never blocks on persistence.
func (s *Service) IngestLocation(ctx context.Context, userID uuid.UUID, req *UpdateLocationRequest) (*LocationUpdateResult, error) {
	lat, lng := *req.Latitude, *req.Longitude
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return nil, common.NewValidationError("latitude or longitude out of range")
	}

	driverID, err := s.store.ResolveDriverID(ctx, userID)
	if err != nil {
		return nil, common.NewNotFoundError("driver not found", err)
	}

	result, err := s.store.UpdateLocation(ctx, driverID, lat, lng, req.Heading, req.Speed)
	if err != nil {
		if errors.Is(err, ErrDriverNotFound) {
			return nil, common.NewNotFoundError("driver not found", err)
		}
		return nil, common.NewInternalErrorWithError("failed to update location", err)
	}

	if result.Updated {
		s.publishLocationEvent(ctx, &LocationEvent{
			DriverID:  driverID,
			Latitude:  lat,
			Longitude: lng,
			H3Index:   result.NewCell,
			Heading:   req.Heading,
			Speed:     req.Speed,
			Timestamp: time.Now(),
		})
	}

	return result, nil
}

// SetOnlineStatus toggles a driver online or offline. A PENDING
// penalty blocks the online transition; going offline records the
// stop-riding fee when the toggle is enabled.
func (s *Service) SetOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool) (*DriverRecord, error) {
	driverID, err := s.store.ResolveDriverID(ctx, userID)
	if err != nil {
		return nil, common.NewNotFoundError("driver not found", err)
	}

	record, err := s.store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, common.NewNotFoundError("driver not found", err)
	}

	if isOnline {
		if !record.IsActive {
			return nil, common.NewForbiddenError("driver account is inactive")
		}
		pending, err := s.repo.HasPendingPenalty(ctx, driverID)
		if err != nil {
			return nil, common.NewInternalErrorWithError("failed to check penalties", err)
		}
		if pending {
			return nil, common.NewForbiddenError("pending penalty must be settled before going online")
		}
	}

	wasOnline := record.IsOnline
	if err := s.store.SetOnlineStatus(ctx, driverID, isOnline); err != nil {
		return nil, common.NewInternalErrorWithError("failed to update status", err)
	}

	if wasOnline && !isOnline && s.pricingCfg.StopRidingFeeEnabled {
		penalty := &DriverPenalty{
			ID:        uuid.New(),
			DriverID:  driverID,
			Reason:    PenaltyStopRiding,
			Amount:    s.pricingCfg.StopRidingFee,
			Status:    PenaltyPending,
			CreatedAt: time.Now(),
		}
		if err := s.repo.CreatePenalty(ctx, penalty); err != nil {
			// The toggle already took effect; the fee is best-effort.
			logger.ErrorContext(ctx, "failed to record stop-riding fee",
				zap.String("driver_id", driverID.String()),
				zap.Error(err),
			)
		}
	}

	s.publishStatusEvent(ctx, driverID, isOnline)

	return s.store.GetDriver(ctx, driverID)
}

// FindNearbyDrivers answers the dispatch query.
func (s *Service) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, vehicleType *pricing.VehicleType) ([]*NearbyDriver, error) {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return nil, common.NewValidationError("latitude or longitude out of range")
	}
	drivers, err := s.store.FindNearbyDrivers(ctx, lat, lng, radiusKm, vehicleType)
	if err != nil {
		return nil, common.NewInternalErrorWithError("failed to query nearby drivers", err)
	}
	return drivers, nil
}

// GetDriverForUser resolves and returns the caller's driver record.
func (s *Service) GetDriverForUser(ctx context.Context, userID uuid.UUID) (*DriverRecord, error) {
	record, err := s.store.GetDriverByUserID(ctx, userID)
	if err != nil {
		return nil, common.NewNotFoundError("driver not found", err)
	}
	return record, nil
}

// GetMetrics returns the state store counter snapshot.
func (s *Service) GetMetrics(ctx context.Context) StoreMetrics {
	return s.store.GetMetrics(ctx)
}

// ListPenalties returns the caller's penalties.
func (s *Service) ListPenalties(ctx context.Context, userID uuid.UUID) ([]*DriverPenalty, error) {
	driverID, err := s.store.ResolveDriverID(ctx, userID)
	if err != nil {
		return nil, common.NewNotFoundError("driver not found", err)
	}
	penalties, err := s.repo.ListPenalties(ctx, driverID)
	if err != nil {
		return nil, common.NewInternalErrorWithError("failed to list penalties", err)
	}
	return penalties, nil
}

func (s *Service) publishLocationEvent(ctx context.Context, event *LocationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.WarnContext(ctx, "failed to marshal location event", zap.Error(err))
		return
	}
	if _, err := s.realtime.Publish(ctx, ChannelDriverLocations, payload); err != nil {
		logger.WarnContext(ctx, "failed to publish location event", zap.Error(err))
	}
}

func (s *Service) publishStatusEvent(ctx context.Context, driverID uuid.UUID, isOnline bool) {
	if s.events == nil {
		return
	}

	subject := eventbus.SubjectDriverOnline
	if !isOnline {
		subject = eventbus.SubjectDriverOffline
	}

	event, err := eventbus.NewEvent(subject, "dispatch", map[string]interface{}{
		"driver_id": driverID.String(),
		"is_online": isOnline,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to build status event", zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, subject, event); err != nil {
		logger.WarnContext(ctx, "failed to publish status event", zap.Error(err))
	}
}
