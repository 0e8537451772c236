package rides

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/drivers"
	"github.com/richxcame/ride-dispatch/pkg/common"
	"github.com/richxcame/ride-dispatch/pkg/redis"
)

// ShareTTL is how long a share link stays valid.
const ShareTTL = 24 * time.Hour

const shareKeyPrefix = "dispatch:share:"

// SharedRideView is the unauthenticated projection behind a share
// link. No OTP, no phone numbers, no payment details.
type SharedRideView struct {
	RideID        uuid.UUID `json:"ride_id"`
	Status        Status    `json:"status"`
	PickupLat     float64   `json:"pickup_lat"`
	PickupLng     float64   `json:"pickup_lng"`
	DropLat       float64   `json:"drop_lat"`
	DropLng       float64   `json:"drop_lng"`
	PickupAddress string    `json:"pickup_address"`
	DropAddress   string    `json:"drop_address"`
	VehicleType   string    `json:"vehicle_type"`
	DriverName    string    `json:"driver_name,omitempty"`
	DriverRating  float64   `json:"driver_rating,omitempty"`
	VehicleNumber string    `json:"vehicle_number,omitempty"`
	VehicleModel  string    `json:"vehicle_model,omitempty"`
	DriverLat     *float64  `json:"driver_lat,omitempty"`
	DriverLng     *float64  `json:"driver_lng,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NameLookup resolves a user's display name for the public view.
type NameLookup interface {
	GetUserName(ctx context.Context, userID uuid.UUID) (string, error)
}

// ShareService mints and resolves trip share tokens. Tokens live in
// Redis with a TTL; expiry is a plain 404.
type ShareService struct {
	rides       *Service
	driverStore drivers.StateStore
	redis       *redis.Client
	names       NameLookup
}

// NewShareService creates a new share service. names may be nil; the
// view then omits the driver's name.
func NewShareService(rides *Service, driverStore drivers.StateStore, redisClient *redis.Client, names NameLookup) *ShareService {
	return &ShareService{
		rides:       rides,
		driverStore: driverStore,
		redis:       redisClient,
		names:       names,
	}
}

// CreateShareLink mints a token for the passenger's ride.
func (s *ShareService) CreateShareLink(ctx context.Context, callerID, rideID uuid.UUID) (string, time.Time, error) {
	ride, err := s.rides.loadRide(ctx, rideID)
	if err != nil {
		return "", time.Time{}, err
	}
	if ride.PassengerID != callerID {
		return "", time.Time{}, common.NewForbiddenError("only the passenger may share this ride")
	}

	token, err := newShareToken()
	if err != nil {
		return "", time.Time{}, common.NewInternalErrorWithError("failed to create share link", err)
	}

	if err := s.redis.SetWithExpiration(ctx, shareKeyPrefix+token, rideID.String(), ShareTTL); err != nil {
		return "", time.Time{}, common.NewInternalErrorWithError("failed to store share link", err)
	}

	return token, time.Now().Add(ShareTTL), nil
}

// ResolveShareLink returns the public view for a token. Expired or
// unknown tokens are indistinguishable: both 404.
func (s *ShareService) ResolveShareLink(ctx context.Context, token string) (*SharedRideView, error) {
	rideIDStr, err := s.redis.GetString(ctx, shareKeyPrefix+token)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return nil, common.NewNotFoundError("share link not found or expired", err)
		}
		return nil, common.NewInternalErrorWithError("failed to resolve share link", err)
	}

	rideID, err := uuid.Parse(rideIDStr)
	if err != nil {
		return nil, common.NewNotFoundError("share link not found or expired", err)
	}

	ride, err := s.rides.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	view := &SharedRideView{
		RideID:        ride.ID,
		Status:        ride.Status,
		PickupLat:     ride.PickupLat,
		PickupLng:     ride.PickupLng,
		DropLat:       ride.DropLat,
		DropLng:       ride.DropLng,
		PickupAddress: ride.PickupAddress,
		DropAddress:   ride.DropAddress,
		VehicleType:   string(ride.VehicleType),
		CreatedAt:     ride.CreatedAt,
	}

	if ride.DriverID != nil {
		driver, derr := s.driverStore.GetDriver(ctx, *ride.DriverID)
		if derr == nil {
			view.DriverRating = driver.Rating
			view.VehicleNumber = driver.VehicleNumber
			view.VehicleModel = driver.VehicleModel
			if driver.HasCoordinates() && !ride.Status.Terminal() {
				view.DriverLat = driver.CurrentLat
				view.DriverLng = driver.CurrentLng
			}
			if s.names != nil {
				if name, nerr := s.names.GetUserName(ctx, driver.UserID); nerr == nil {
					view.DriverName = name
				}
			}
		}
	}

	return view, nil
}

func newShareToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
