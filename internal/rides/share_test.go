package rides

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/ride-dispatch/internal/drivers"
	redisclient "github.com/richxcame/ride-dispatch/pkg/redis"
)

// stubNameLookup maps user ids to display names.
type stubNameLookup map[uuid.UUID]string

func (s stubNameLookup) GetUserName(_ context.Context, userID uuid.UUID) (string, error) {
	name, ok := s[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return name, nil
}

func newShareFixture(t *testing.T) (*ShareService, *Service, *drivers.MemoryStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	driverID, userID := uuid.New(), uuid.New()
	store := testStore(t, driverID, userID, true)
	svc := testService(store)
	share := NewShareService(svc, store, redisclient.NewFromClient(db), nil)
	return share, svc, store, mock
}

func TestCreateShareLink_OnlyPassenger(t *testing.T) {
	share, svc, _, _ := newShareFixture(t)

	ride := &Ride{ID: uuid.New(), PassengerID: uuid.New(), Status: StatusConfirmed, RideOTP: "4821"}
	svc.cache.Put(ride)

	_, _, err := share.CreateShareLink(context.Background(), uuid.New(), ride.ID)
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestCreateShareLink_MintsToken(t *testing.T) {
	share, svc, _, mock := newShareFixture(t)

	passengerID := uuid.New()
	ride := &Ride{ID: uuid.New(), PassengerID: passengerID, Status: StatusConfirmed, RideOTP: "4821"}
	svc.cache.Put(ride)

	mock.Regexp().ExpectSet(`dispatch:share:[0-9a-f]{32}`, ride.ID.String(), ShareTTL).SetVal("OK")

	token, expiresAt, err := share.CreateShareLink(context.Background(), passengerID, ride.ID)
	require.NoError(t, err)
	assert.Len(t, token, 32)
	assert.False(t, expiresAt.IsZero())
	assert.False(t, strings.Contains(token, ride.RideOTP))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShareLink_UnknownToken(t *testing.T) {
	share, _, _, mock := newShareFixture(t)

	token := strings.Repeat("ab", 16)
	mock.ExpectGet("dispatch:share:" + token).RedisNil()

	_, err := share.ResolveShareLink(context.Background(), token)
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShareLink_CorruptMappingIsNotFound(t *testing.T) {
	share, _, _, mock := newShareFixture(t)

	token := strings.Repeat("cd", 16)
	mock.ExpectGet("dispatch:share:" + token).SetVal("not-a-ride-id")

	_, err := share.ResolveShareLink(context.Background(), token)
	appErr := appErrorFrom(t, err)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestResolveShareLink_PublicView(t *testing.T) {
	db, mock := redismock.NewClientMock()

	driverID, userID := uuid.New(), uuid.New()
	store := testStore(t, driverID, userID, true)
	_, err := store.UpdateLocation(context.Background(), driverID, 28.6139, 77.2090, nil, nil)
	require.NoError(t, err)

	svc := testService(store)
	share := NewShareService(svc, store, redisclient.NewFromClient(db), stubNameLookup{userID: "Ravi Kumar"})

	passengerID := uuid.New()
	ride := &Ride{
		ID:            uuid.New(),
		PassengerID:   passengerID,
		DriverID:      &driverID,
		Status:        StatusRideStarted,
		PickupLat:     28.6139,
		PickupLng:     77.2090,
		DropLat:       28.5355,
		DropLng:       77.3910,
		PickupAddress: "Connaught Place",
		DropAddress:   "Sector 18",
		VehicleType:   "cab",
		RideOTP:       "4821",
	}
	svc.cache.Put(ride)

	token := strings.Repeat("ef", 16)
	mock.ExpectGet("dispatch:share:" + token).SetVal(ride.ID.String())

	view, err := share.ResolveShareLink(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, ride.ID, view.RideID)
	assert.Equal(t, StatusRideStarted, view.Status)
	assert.Equal(t, "Connaught Place", view.PickupAddress)
	assert.Equal(t, 28.6139, view.PickupLat)
	assert.Equal(t, 77.2090, view.PickupLng)
	assert.Equal(t, 28.5355, view.DropLat)
	assert.Equal(t, 77.3910, view.DropLng)
	assert.Equal(t, "Ravi Kumar", view.DriverName)
	assert.NotNil(t, view.DriverLat)
	assert.NotNil(t, view.DriverLng)
}

func TestResolveShareLink_NoNameLookupOmitsDriverName(t *testing.T) {
	db, mock := redismock.NewClientMock()

	driverID, userID := uuid.New(), uuid.New()
	store := testStore(t, driverID, userID, true)
	svc := testService(store)
	share := NewShareService(svc, store, redisclient.NewFromClient(db), nil)

	ride := &Ride{
		ID:          uuid.New(),
		PassengerID: uuid.New(),
		DriverID:    &driverID,
		Status:      StatusConfirmed,
		VehicleType: "cab",
	}
	svc.cache.Put(ride)

	token := strings.Repeat("01", 16)
	mock.ExpectGet("dispatch:share:" + token).SetVal(ride.ID.String())

	view, err := share.ResolveShareLink(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, view.DriverName)
}
