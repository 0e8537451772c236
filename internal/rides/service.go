package rides

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/drivers"
	"github.com/richxcame/ride-dispatch/internal/geo"
	"github.com/richxcame/ride-dispatch/internal/pricing"
	"github.com/richxcame/ride-dispatch/pkg/bus"
	"github.com/richxcame/ride-dispatch/pkg/common"
	"github.com/richxcame/ride-dispatch/pkg/eventbus"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"github.com/richxcame/ride-dispatch/pkg/middleware"
	"go.uber.org/zap"
)

// OfferDispatcher fans a new ride out to nearby drivers. Implemented
// by the dispatch package; nil disables inline dispatch (the event
// worker picks the ride up instead).
type OfferDispatcher interface {
	Dispatch(ctx context.Context, ride *Ride)
}

// RideEvent is the payload published on the per-ride channel. The
// ride inside is always sanitized.
type RideEvent struct {
	Type      string    `json:"type"`
	Ride      *Ride     `json:"ride"`
	Timestamp time.Time `json:"timestamp"`
}

// Service implements the ride lifecycle: creation with a locked fare,
// race-free assignment, guarded transitions, atomic settlement.
type Service struct {
	repo        *Repository
	cache       *ActiveRideCache
	driverStore drivers.StateStore
	engine      *pricing.Engine
	realtime    bus.Bus
	events      *eventbus.Bus
	dispatcher  OfferDispatcher
}

// NewService creates a new ride service. events and dispatcher may be
// nil when NATS or inline dispatch is disabled.
func NewService(repo *Repository, cache *ActiveRideCache, driverStore drivers.StateStore, engine *pricing.Engine, realtime bus.Bus, events *eventbus.Bus) *Service {
	return &Service{
		repo:        repo,
		cache:       cache,
		driverStore: driverStore,
		engine:      engine,
		realtime:    realtime,
		events:      events,
	}
}

// SetDispatcher wires the offer fan-out after construction. The
// dispatcher needs the ride service too, so wiring is two-phase.
func (s *Service) SetDispatcher(d OfferDispatcher) {
	s.dispatcher = d
}

// RideChannel is the per-ride realtime topic.
func RideChannel(rideID uuid.UUID) string {
	return "ride:" + rideID.String()
}

// CreateRide validates the route, locks the fare breakdown, generates
// the start OTP, and persists the ride as PENDING. Dispatch happens
// asynchronously.
func (s *Service) CreateRide(ctx context.Context, passengerID uuid.UUID, req *CreateRideRequest) (*Ride, error) {
	pickupLat, pickupLng := *req.PickupLat, *req.PickupLng
	dropLat, dropLng := *req.DropLat, *req.DropLng

	if err := geo.ValidateCoordinates(pickupLat, pickupLng); err != nil {
		return nil, common.NewValidationError("pickup coordinates out of range")
	}
	if err := geo.ValidateCoordinates(dropLat, dropLng); err != nil {
		return nil, common.NewValidationError("drop coordinates out of range")
	}

	vehicleType := pricing.VehicleType(req.VehicleType)
	if req.VehicleType == "" {
		vehicleType = pricing.VehicleCab
	}

	quote := s.engine.CalculateFare(pickupLat, pickupLng, dropLat, dropLng, vehicleType, req.ScheduledTime)

	otp, err := GenerateOTP()
	if err != nil {
		return nil, common.NewInternalErrorWithError("failed to create ride", err)
	}

	ride := &Ride{
		ID:            uuid.New(),
		PassengerID:   passengerID,
		PickupLat:     pickupLat,
		PickupLng:     pickupLng,
		DropLat:       dropLat,
		DropLng:       dropLng,
		PickupAddress: req.PickupAddress,
		DropAddress:   req.DropAddress,
		VehicleType:   quote.VehicleType,
		BaseFare:      quote.BaseFare,
		DistanceFare:  quote.DistanceFare,
		TimeFare:      quote.TimeFare,
		ServiceFee:    quote.ServiceFee,
		InsuranceFee:  quote.InsuranceFee,
		PlatformFee:   quote.PlatformFee,
		TotalFare:     quote.TotalFare,
		DistanceKm:    quote.DistanceKm,
		DurationMin:   quote.DurationMin,
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		PaymentStatus: PaymentPending,
		RideOTP:       otp,
		Status:        StatusPending,
	}

	if err := s.repo.CreateRide(ctx, ride); err != nil {
		return nil, common.NewInternalErrorWithError("failed to create ride", err)
	}

	s.cache.Put(ride)
	s.publishLifecycleEvent(ctx, eventbus.SubjectRideRequested, ride)

	if s.dispatcher != nil {
		// Offers fan out off the request path.
		go s.dispatcher.Dispatch(context.WithoutCancel(ctx), ride)
	}

	return ride, nil
}

// GetRide returns a ride with viewer-dependent projection: the
// passenger sees the OTP, everyone else gets a sanitized copy.
func (s *Service) GetRide(ctx context.Context, rideID, callerID uuid.UUID, role middleware.UserRole) (*Ride, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if ride.PassengerID == callerID {
		return ride, nil
	}
	if role == middleware.RoleAdmin {
		return ride.Sanitized(), nil
	}
	if ride.DriverID != nil {
		driverID, resolveErr := s.driverStore.ResolveDriverID(ctx, callerID)
		if resolveErr == nil && *ride.DriverID == driverID {
			return ride.Sanitized(), nil
		}
	}

	return nil, common.NewForbiddenError("not a participant in this ride")
}

// ListMyRides pages through the caller's ride history with an
// optional status filter.
func (s *Service) ListMyRides(ctx context.Context, callerID uuid.UUID, role middleware.UserRole, statusFilter string, limit, offset int) ([]*Ride, int64, error) {
	var status *Status
	if statusFilter != "" {
		st := Status(statusFilter)
		if !st.Valid() {
			return nil, 0, common.NewValidationError("unknown ride status")
		}
		status = &st
	}

	var (
		list  []*Ride
		total int64
		err   error
	)
	if role == middleware.RoleDriver {
		driverID, resolveErr := s.driverStore.ResolveDriverID(ctx, callerID)
		if resolveErr != nil {
			return nil, 0, common.NewNotFoundError("driver not found", resolveErr)
		}
		list, total, err = s.repo.ListRidesForDriver(ctx, driverID, status, limit, offset)
		for _, ride := range list {
			ride.RideOTP = ""
		}
	} else {
		list, total, err = s.repo.ListRidesForPassenger(ctx, callerID, status, limit, offset)
	}
	if err != nil {
		return nil, 0, common.NewInternalErrorWithError("failed to list rides", err)
	}

	return list, total, nil
}

// ListAvailableRides returns unassigned rides the driver can accept,
// sanitized and annotated with the distance to pickup.
func (s *Service) ListAvailableRides(ctx context.Context, userID uuid.UUID, limit int) ([]*AvailableRide, error) {
	driverID, err := s.driverStore.ResolveDriverID(ctx, userID)
	if err != nil {
		return nil, common.NewNotFoundError("driver not found", err)
	}
	driver, err := s.driverStore.GetDriver(ctx, driverID)
	if err != nil {
		return nil, common.NewNotFoundError("driver not found", err)
	}

	vehicleType := string(driver.VehicleType)
	pending, err := s.repo.ListPendingRides(ctx, &vehicleType, limit)
	if err != nil {
		return nil, common.NewInternalErrorWithError("failed to list available rides", err)
	}

	available := make([]*AvailableRide, 0, len(pending))
	for _, ride := range pending {
		entry := &AvailableRide{
			Ride:               ride.Sanitized(),
			OTPRequiredAtStart: true,
		}
		if driver.HasCoordinates() {
			entry.DistanceToPickupKm = geo.RoundKm(
				geo.HaversineKm(*driver.CurrentLat, *driver.CurrentLng, ride.PickupLat, ride.PickupLng),
			)
		}
		available = append(available, entry)
	}

	return available, nil
}

// AcceptRide claims a pending ride for the calling driver. Exactly one
// of N concurrent accepts wins; the rest get RIDE_ALREADY_TAKEN.
func (s *Service) AcceptRide(ctx context.Context, userID, rideID uuid.UUID) (*Ride, error) {
	driverID, err := s.driverStore.ResolveDriverID(ctx, userID)
	if err != nil {
		return nil, common.NewNotFoundError("driver not found", err)
	}
	driver, err := s.driverStore.GetDriver(ctx, driverID)
	if err != nil {
		return nil, common.NewNotFoundError("driver not found", err)
	}
	if !driver.IsOnline {
		return nil, common.NewForbiddenError("driver must be online to accept rides")
	}

	ride, err := s.repo.AtomicAssignDriver(ctx, rideID, driverID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRideTaken):
			return nil, common.NewRideAlreadyTakenError()
		case errors.Is(err, ErrRideNotFound):
			return nil, common.NewNotFoundError("ride not found", err)
		default:
			return nil, common.NewInternalErrorWithError("failed to accept ride", err)
		}
	}

	s.cache.Put(ride)
	s.publishRideEvent(ctx, "ride.assigned", ride)
	s.publishLifecycleEvent(ctx, eventbus.SubjectRideAssigned, ride)

	return ride.Sanitized(), nil
}

// UpdateStatus applies a lifecycle transition with role, state
// machine, and OTP checks.
func (s *Service) UpdateStatus(ctx context.Context, callerID uuid.UUID, role middleware.UserRole, rideID uuid.UUID, req *UpdateStatusRequest) (*Ride, error) {
	target := Status(req.Status)
	if !target.Valid() {
		return nil, common.NewValidationError("unknown ride status")
	}
	if target == StatusCancelled {
		return s.CancelRide(ctx, callerID, role, rideID, req.CancellationReason)
	}

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if target.DriverOnly() {
		if err := s.requireAssignedDriver(ctx, callerID, ride); err != nil {
			return nil, err
		}
	} else if ride.PassengerID != callerID && role != middleware.RoleAdmin {
		return nil, common.NewForbiddenError("not a participant in this ride")
	}

	if !CanTransition(ride.Status, target) {
		return nil, common.NewInvalidTransitionError(
			"cannot transition from " + string(ride.Status) + " to " + string(target),
		)
	}

	if target == StatusRideStarted {
		if req.OTP == nil || !VerifyOTP(ride.RideOTP, *req.OTP) {
			return nil, common.NewInvalidOTPError()
		}
	}

	var updated *Ride
	if target == StatusRideCompleted {
		updated, err = s.repo.CompleteRide(ctx, rideID, *ride.DriverID)
	} else {
		updated, err = s.repo.UpdateStatus(ctx, rideID, ride.Status, target, nil, nil)
	}
	if err != nil {
		if errors.Is(err, ErrStaleStatus) {
			s.cache.Evict(rideID)
			return nil, common.NewInvalidTransitionError("ride status changed, retry with current state")
		}
		return nil, common.NewInternalErrorWithError("failed to update ride status", err)
	}

	s.cache.Put(updated)
	s.publishRideEvent(ctx, "ride."+string(target), updated)
	s.publishLifecycleEvent(ctx, subjectForStatus(target), updated)

	return updated.Sanitized(), nil
}

// StartRide is the OTP-gated start shortcut.
func (s *Service) StartRide(ctx context.Context, callerID uuid.UUID, role middleware.UserRole, rideID uuid.UUID, otp string) (*Ride, error) {
	return s.UpdateStatus(ctx, callerID, role, rideID, &UpdateStatusRequest{
		Status: string(StatusRideStarted),
		OTP:    &otp,
	})
}

// CancelRide cancels a non-terminal ride. Who cancelled is derived
// from the caller's role, never from the payload.
func (s *Service) CancelRide(ctx context.Context, callerID uuid.UUID, role middleware.UserRole, rideID uuid.UUID, reason *string) (*Ride, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	var by CancelledBy
	switch {
	case ride.PassengerID == callerID:
		by = CancelledByPassenger
	case role == middleware.RoleAdmin:
		by = CancelledBySystem
	default:
		if err := s.requireAssignedDriver(ctx, callerID, ride); err != nil {
			return nil, err
		}
		by = CancelledByDriver
	}

	if ride.Status.Terminal() {
		return nil, common.NewBadRequestError("ride is already completed or cancelled", common.ErrBadRequest)
	}

	updated, err := s.repo.UpdateStatus(ctx, rideID, ride.Status, StatusCancelled, &by, reason)
	if err != nil {
		if errors.Is(err, ErrStaleStatus) {
			s.cache.Evict(rideID)
			return nil, common.NewInvalidTransitionError("ride status changed, retry with current state")
		}
		return nil, common.NewInternalErrorWithError("failed to cancel ride", err)
	}

	s.cache.Put(updated)
	s.publishRideEvent(ctx, "ride.cancelled", updated)
	s.publishLifecycleEvent(ctx, eventbus.SubjectRideCancelled, updated)

	return updated.Sanitized(), nil
}

// RateRide records a 1-5 rating for a completed ride. Each side rates
// once; the passenger's rating updates the driver's aggregate.
func (s *Service) RateRide(ctx context.Context, callerID uuid.UUID, role middleware.UserRole, rideID uuid.UUID, req *RatingRequest) (*Ride, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if ride.Status != StatusRideCompleted {
		return nil, common.NewInvalidTransitionError("only completed rides can be rated")
	}

	var updated *Ride
	switch {
	case ride.PassengerID == callerID:
		updated, err = s.repo.SubmitPassengerRating(ctx, rideID, req.Rating, req.Feedback)
	default:
		if authErr := s.requireAssignedDriver(ctx, callerID, ride); authErr != nil {
			return nil, authErr
		}
		updated, err = s.repo.SubmitDriverRating(ctx, rideID, req.Rating, req.Feedback)
	}
	if err != nil {
		if errors.Is(err, ErrAlreadyRated) {
			return nil, common.NewAlreadyRatedError()
		}
		return nil, common.NewInternalErrorWithError("failed to submit rating", err)
	}

	return updated.Sanitized(), nil
}

// LoadRide fetches a ride without a viewer check. For internal
// consumers (dispatch, notifications); HTTP callers go through GetRide.
func (s *Service) LoadRide(ctx context.Context, rideID uuid.UUID) (*Ride, error) {
	return s.loadRide(ctx, rideID)
}

// loadRide checks the active cache first, then the repository.
func (s *Service) loadRide(ctx context.Context, rideID uuid.UUID) (*Ride, error) {
	if ride := s.cache.Get(rideID); ride != nil {
		return ride, nil
	}

	ride, err := s.repo.GetRideByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, ErrRideNotFound) {
			return nil, common.NewNotFoundError("ride not found", err)
		}
		return nil, common.NewInternalErrorWithError("failed to load ride", err)
	}

	s.cache.Put(ride)
	return ride, nil
}

// requireAssignedDriver fails unless the caller is the ride's
// assigned driver.
func (s *Service) requireAssignedDriver(ctx context.Context, callerID uuid.UUID, ride *Ride) error {
	if ride.DriverID == nil {
		return common.NewForbiddenError("ride has no assigned driver")
	}
	driverID, err := s.driverStore.ResolveDriverID(ctx, callerID)
	if err != nil || *ride.DriverID != driverID {
		return common.NewForbiddenError("only the assigned driver may do this")
	}
	return nil
}

func (s *Service) publishRideEvent(ctx context.Context, eventType string, ride *Ride) {
	payload, err := json.Marshal(&RideEvent{
		Type:      eventType,
		Ride:      ride.Sanitized(),
		Timestamp: time.Now(),
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to marshal ride event", zap.Error(err))
		return
	}
	if _, err := s.realtime.Publish(ctx, RideChannel(ride.ID), payload); err != nil {
		logger.WarnContext(ctx, "failed to publish ride event",
			zap.String("ride_id", ride.ID.String()),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func (s *Service) publishLifecycleEvent(ctx context.Context, subject string, ride *Ride) {
	if s.events == nil || subject == "" {
		return
	}

	clean := ride.Sanitized()
	event, err := eventbus.NewEvent(subject, "dispatch", map[string]interface{}{
		"ride_id":      clean.ID.String(),
		"passenger_id": clean.PassengerID.String(),
		"status":       clean.Status,
		"vehicle_type": clean.VehicleType,
		"total_fare":   clean.TotalFare,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to build lifecycle event", zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, subject, event); err != nil {
		logger.WarnContext(ctx, "failed to publish lifecycle event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

func subjectForStatus(status Status) string {
	switch status {
	case StatusDriverAssigned:
		return eventbus.SubjectRideAssigned
	case StatusConfirmed:
		return eventbus.SubjectRideConfirmed
	case StatusDriverArrived:
		return eventbus.SubjectRideArrived
	case StatusRideStarted:
		return eventbus.SubjectRideStarted
	case StatusRideCompleted:
		return eventbus.SubjectRideCompleted
	case StatusCancelled:
		return eventbus.SubjectRideCancelled
	default:
		return ""
	}
}
