package rides

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/ride-dispatch/internal/drivers"
	"github.com/richxcame/ride-dispatch/internal/pricing"
	"github.com/richxcame/ride-dispatch/pkg/bus"
	"github.com/richxcame/ride-dispatch/pkg/common"
	"github.com/richxcame/ride-dispatch/pkg/config"
	"github.com/richxcame/ride-dispatch/pkg/middleware"
)

// testStore builds a driver store with one registered driver.
func testStore(t *testing.T, driverID, userID uuid.UUID, online bool) *drivers.MemoryStore {
	t.Helper()
	store := drivers.NewMemoryStore(&config.DispatchConfig{
		H3Resolution:       9,
		MaxKRing:           3,
		HeartbeatStaleness: 5 * time.Minute,
	})
	err := store.RegisterDriver(context.Background(), &drivers.DriverRecord{
		ID:          driverID,
		UserID:      userID,
		IsOnline:    online,
		IsActive:    true,
		VehicleType: pricing.VehicleCab,
	})
	require.NoError(t, err)
	return store
}

// testService wires a service around the cache only. Repository-free
// paths are the ones under test; anything that would hit Postgres is a
// test bug.
func testService(store drivers.StateStore) *Service {
	engine := pricing.NewEngine(&config.PricingConfig{
		ServiceFee: 10, InsuranceFee: 2, PlatformFee: 10,
		CabRate:  config.VehicleRate{BaseFare: 30, PerKm: 15, PerMinute: 1.5},
		AutoRate: config.VehicleRate{BaseFare: 30, PerKm: 10, PerMinute: 1.0},
		BikeRate: config.VehicleRate{BaseFare: 20, PerKm: 7, PerMinute: 1.0},
	})
	return NewService(nil, NewActiveRideCache(), store, engine, bus.NewMemoryBus(), nil)
}

func appErrorFrom(t *testing.T, err error) *common.AppError {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr
}

func f64(v float64) *float64 { return &v }

func TestCreateRide_RejectsBadCoordinates(t *testing.T) {
	svc := testService(testStore(t, uuid.New(), uuid.New(), true))

	_, err := svc.CreateRide(context.Background(), uuid.New(), &CreateRideRequest{
		PickupLat: f64(120), PickupLng: f64(77.2),
		DropLat: f64(28.5), DropLng: f64(77.4),
		PaymentMethod: "CASH",
	})
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Equal(t, common.CodeValidation, appErr.ErrorCode)
}

func TestGetRide_NonParticipantForbidden(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, true))

	ride := &Ride{ID: uuid.New(), PassengerID: uuid.New(), Status: StatusPending, RideOTP: "4821"}
	svc.cache.Put(ride)

	_, err := svc.GetRide(context.Background(), ride.ID, uuid.New(), middleware.RoleRider)
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestGetRide_PassengerSeesOTP(t *testing.T) {
	svc := testService(testStore(t, uuid.New(), uuid.New(), true))

	passengerID := uuid.New()
	ride := &Ride{ID: uuid.New(), PassengerID: passengerID, Status: StatusDriverArrived, RideOTP: "4821"}
	svc.cache.Put(ride)

	got, err := svc.GetRide(context.Background(), ride.ID, passengerID, middleware.RoleRider)
	require.NoError(t, err)
	assert.Equal(t, "4821", got.RideOTP)
}

func TestGetRide_AssignedDriverGetsSanitizedCopy(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, true))

	ride := &Ride{ID: uuid.New(), PassengerID: uuid.New(), DriverID: &driverID, Status: StatusConfirmed, RideOTP: "4821"}
	svc.cache.Put(ride)

	got, err := svc.GetRide(context.Background(), ride.ID, userID, middleware.RoleDriver)
	require.NoError(t, err)
	assert.Empty(t, got.RideOTP)
	assert.Equal(t, ride.ID, got.ID)
}

func TestGetRide_AdminGetsSanitizedCopy(t *testing.T) {
	svc := testService(testStore(t, uuid.New(), uuid.New(), true))

	ride := &Ride{ID: uuid.New(), PassengerID: uuid.New(), Status: StatusPending, RideOTP: "4821"}
	svc.cache.Put(ride)

	got, err := svc.GetRide(context.Background(), ride.ID, uuid.New(), middleware.RoleAdmin)
	require.NoError(t, err)
	assert.Empty(t, got.RideOTP)
}

func TestAcceptRide_OfflineDriverForbidden(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, false))

	_, err := svc.AcceptRide(context.Background(), userID, uuid.New())
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestAcceptRide_UnknownDriverNotFound(t *testing.T) {
	svc := testService(testStore(t, uuid.New(), uuid.New(), true))

	_, err := svc.AcceptRide(context.Background(), uuid.New(), uuid.New())
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc := testService(testStore(t, uuid.New(), uuid.New(), true))

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), middleware.RoleRider, uuid.New(), &UpdateStatusRequest{
		Status: "TELEPORTED",
	})
	appErr := appErrorFrom(t, err)
	assert.Equal(t, common.CodeValidation, appErr.ErrorCode)
}

func TestUpdateStatus_PassengerCannotSetDriverOnlyStatus(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, true))

	passengerID := uuid.New()
	ride := &Ride{ID: uuid.New(), PassengerID: passengerID, DriverID: &driverID, Status: StatusDriverAssigned, RideOTP: "4821"}
	svc.cache.Put(ride)

	_, err := svc.UpdateStatus(context.Background(), passengerID, middleware.RoleRider, ride.ID, &UpdateStatusRequest{
		Status: string(StatusConfirmed),
	})
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestUpdateStatus_InvalidTransitionConflicts(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, true))

	ride := &Ride{ID: uuid.New(), PassengerID: uuid.New(), DriverID: &driverID, Status: StatusDriverAssigned, RideOTP: "4821"}
	svc.cache.Put(ride)

	// DRIVER_ASSIGNED must pass through CONFIRMED and DRIVER_ARRIVED first.
	otp := "4821"
	_, err := svc.UpdateStatus(context.Background(), userID, middleware.RoleDriver, ride.ID, &UpdateStatusRequest{
		Status: string(StatusRideStarted),
		OTP:    &otp,
	})
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusConflict, appErr.Code)
	assert.Equal(t, common.CodeInvalidTransition, appErr.ErrorCode)
}

func TestUpdateStatus_StartRequiresOTP(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, true))

	ride := &Ride{ID: uuid.New(), PassengerID: uuid.New(), DriverID: &driverID, Status: StatusDriverArrived, RideOTP: "4821"}
	svc.cache.Put(ride)

	_, err := svc.UpdateStatus(context.Background(), userID, middleware.RoleDriver, ride.ID, &UpdateStatusRequest{
		Status: string(StatusRideStarted),
	})
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Equal(t, common.CodeInvalidOTP, appErr.ErrorCode)
}

func TestStartRide_WrongOTP(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, true))

	ride := &Ride{ID: uuid.New(), PassengerID: uuid.New(), DriverID: &driverID, Status: StatusDriverArrived, RideOTP: "4821"}
	svc.cache.Put(ride)

	_, err := svc.StartRide(context.Background(), userID, middleware.RoleDriver, ride.ID, "0000")
	appErr := appErrorFrom(t, err)
	assert.Equal(t, common.CodeInvalidOTP, appErr.ErrorCode)
	// The expected code never leaks through the error.
	assert.NotContains(t, appErr.Message, "4821")
}

func TestStartRide_UnassignedDriverForbidden(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, true))

	otherDriver := uuid.New()
	ride := &Ride{ID: uuid.New(), PassengerID: uuid.New(), DriverID: &otherDriver, Status: StatusDriverArrived, RideOTP: "4821"}
	svc.cache.Put(ride)

	_, err := svc.StartRide(context.Background(), userID, middleware.RoleDriver, ride.ID, "4821")
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestCancelRide_StrangerForbidden(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, true))

	ride := &Ride{ID: uuid.New(), PassengerID: uuid.New(), DriverID: &driverID, Status: StatusConfirmed, RideOTP: "4821"}
	svc.cache.Put(ride)

	_, err := svc.CancelRide(context.Background(), uuid.New(), middleware.RoleRider, ride.ID, nil)
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestRateRide_OnlyCompletedRides(t *testing.T) {
	driverID, userID := uuid.New(), uuid.New()
	svc := testService(testStore(t, driverID, userID, true))

	passengerID := uuid.New()
	ride := &Ride{ID: uuid.New(), PassengerID: passengerID, DriverID: &driverID, Status: StatusRideStarted, RideOTP: "4821"}
	svc.cache.Put(ride)

	_, err := svc.RateRide(context.Background(), passengerID, middleware.RoleRider, ride.ID, &RatingRequest{Rating: 5})
	appErr := appErrorFrom(t, err)
	assert.Equal(t, common.CodeInvalidTransition, appErr.ErrorCode)
}

func TestRideChannel(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "ride:"+id.String(), RideChannel(id))
}
