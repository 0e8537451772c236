package rides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/richxcame/ride-dispatch/pkg/logger"
	"go.uber.org/zap"
)

// Sentinel errors the service layer maps onto wire codes.
var (
	ErrRideNotFound = errors.New("ride not found")
	ErrRideTaken    = errors.New("ride already taken")
	ErrStaleStatus  = errors.New("ride status changed concurrently")
)

const uniqueViolation = "23505"

const rideColumns = `
	id, passenger_id, driver_id, pickup_lat, pickup_lng, drop_lat, drop_lng,
	pickup_address, drop_address, vehicle_type, base_fare, distance_fare,
	time_fare, service_fee, insurance_fee, platform_fee, total_fare,
	distance_km, duration_min, payment_method, payment_status, ride_otp,
	status, created_at, updated_at, started_at, completed_at, cancelled_at,
	cancelled_by, cancellation_reason, passenger_rating, driver_rating,
	passenger_feedback, driver_feedback, rated_by_passenger_at, rated_by_driver_at`

// Repository handles database operations for rides
type Repository struct {
	db             *pgxpool.Pool
	commissionRate float64
	txTimeout      time.Duration
}

// NewRepository creates a new rides repository. defaultCommission is
// used when the platform_config row is missing; txTimeout bounds the
// completion transaction.
func NewRepository(db *pgxpool.Pool, defaultCommission float64, txTimeout time.Duration) *Repository {
	return &Repository{
		db:             db,
		commissionRate: defaultCommission,
		txTimeout:      txTimeout,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(row rowScanner) (*Ride, error) {
	ride := &Ride{}
	err := row.Scan(
		&ride.ID,
		&ride.PassengerID,
		&ride.DriverID,
		&ride.PickupLat,
		&ride.PickupLng,
		&ride.DropLat,
		&ride.DropLng,
		&ride.PickupAddress,
		&ride.DropAddress,
		&ride.VehicleType,
		&ride.BaseFare,
		&ride.DistanceFare,
		&ride.TimeFare,
		&ride.ServiceFee,
		&ride.InsuranceFee,
		&ride.PlatformFee,
		&ride.TotalFare,
		&ride.DistanceKm,
		&ride.DurationMin,
		&ride.PaymentMethod,
		&ride.PaymentStatus,
		&ride.RideOTP,
		&ride.Status,
		&ride.CreatedAt,
		&ride.UpdatedAt,
		&ride.StartedAt,
		&ride.CompletedAt,
		&ride.CancelledAt,
		&ride.CancelledBy,
		&ride.CancellationReason,
		&ride.PassengerRating,
		&ride.DriverRating,
		&ride.PassengerFeedback,
		&ride.DriverFeedback,
		&ride.RatedByPassengerAt,
		&ride.RatedByDriverAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRideNotFound
		}
		return nil, fmt.Errorf("failed to scan ride: %w", err)
	}
	return ride, nil
}

// CreateRide inserts a new ride request with its locked fare breakdown.
func (r *Repository) CreateRide(ctx context.Context, ride *Ride) error {
	query := `
		INSERT INTO rides (
			id, passenger_id, pickup_lat, pickup_lng, drop_lat, drop_lng,
			pickup_address, drop_address, vehicle_type, base_fare, distance_fare,
			time_fare, service_fee, insurance_fee, platform_fee, total_fare,
			distance_km, duration_min, payment_method, payment_status, ride_otp, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		ride.ID,
		ride.PassengerID,
		ride.PickupLat,
		ride.PickupLng,
		ride.DropLat,
		ride.DropLng,
		ride.PickupAddress,
		ride.DropAddress,
		ride.VehicleType,
		ride.BaseFare,
		ride.DistanceFare,
		ride.TimeFare,
		ride.ServiceFee,
		ride.InsuranceFee,
		ride.PlatformFee,
		ride.TotalFare,
		ride.DistanceKm,
		ride.DurationMin,
		ride.PaymentMethod,
		ride.PaymentStatus,
		ride.RideOTP,
		ride.Status,
	).Scan(&ride.CreatedAt, &ride.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	return nil
}

// GetUserName returns a user's display name for the share view.
func (r *Repository) GetUserName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	if err := r.db.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&name); err != nil {
		return "", fmt.Errorf("failed to get user name: %w", err)
	}
	return name, nil
}

// GetRideByID retrieves a ride by ID.
func (r *Repository) GetRideByID(ctx context.Context, id uuid.UUID) (*Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.db.QueryRow(ctx, query, id))
}

// ListRidesForPassenger returns a passenger's rides newest first with
// an optional status filter.
func (r *Repository) ListRidesForPassenger(ctx context.Context, passengerID uuid.UUID, status *Status, limit, offset int) ([]*Ride, int64, error) {
	return r.listRides(ctx, "passenger_id", passengerID, status, limit, offset)
}

// ListRidesForDriver returns a driver's rides newest first with an
// optional status filter.
func (r *Repository) ListRidesForDriver(ctx context.Context, driverID uuid.UUID, status *Status, limit, offset int) ([]*Ride, int64, error) {
	return r.listRides(ctx, "driver_id", driverID, status, limit, offset)
}

func (r *Repository) listRides(ctx context.Context, ownerColumn string, ownerID uuid.UUID, status *Status, limit, offset int) ([]*Ride, int64, error) {
	countQuery := `SELECT COUNT(*) FROM rides WHERE ` + ownerColumn + ` = $1`
	baseQuery := `SELECT ` + rideColumns + ` FROM rides WHERE ` + ownerColumn + ` = $1`

	args := []interface{}{ownerID}
	if status != nil {
		countQuery += ` AND status = $2`
		baseQuery += ` AND status = $2`
		args = append(args, *status)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	baseQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}
	defer rows.Close()

	rides := make([]*Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, 0, err
		}
		rides = append(rides, ride)
	}

	return rides, total, nil
}

// ListPendingRides returns unassigned rides oldest first, optionally
// filtered by vehicle type.
func (r *Repository) ListPendingRides(ctx context.Context, vehicleType *string, limit int) ([]*Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = 'PENDING' AND driver_id IS NULL`

	args := []interface{}{}
	if vehicleType != nil {
		query += ` AND vehicle_type = $1`
		args = append(args, *vehicleType)
	}
	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending rides: %w", err)
	}
	defer rows.Close()

	rides := make([]*Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}

	return rides, nil
}

// AtomicAssignDriver claims a pending ride for a driver. The UPDATE
// carries a status and driver_id guard so exactly one of N concurrent
// drivers wins; losers get ErrRideTaken. Runs serializable so the
// guard holds even under concurrent cancellation.
func (r *Repository) AtomicAssignDriver(ctx context.Context, rideID, driverID uuid.UUID) (*Ride, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin assignment: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE rides
		SET status = $1, driver_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'PENDING' AND driver_id IS NULL
		RETURNING ` + rideColumns

	ride, err := scanRide(tx.QueryRow(ctx, query, StatusDriverAssigned, driverID, rideID))
	if err != nil {
		if errors.Is(err, ErrRideNotFound) {
			// Distinguish a missing ride from a lost race.
			var exists bool
			if checkErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rides WHERE id = $1)`, rideID).Scan(&exists); checkErr != nil {
				return nil, fmt.Errorf("failed to check ride: %w", checkErr)
			}
			if exists {
				return nil, ErrRideTaken
			}
			return nil, ErrRideNotFound
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}

	return ride, nil
}

// UpdateStatus applies a guarded status transition. The WHERE clause
// pins the expected current status so concurrent transitions lose
// cleanly with ErrStaleStatus instead of clobbering each other.
func (r *Repository) UpdateStatus(ctx context.Context, rideID uuid.UUID, from, to Status, cancelledBy *CancelledBy, reason *string) (*Ride, error) {
	var query string
	args := []interface{}{to, rideID, from}

	switch to {
	case StatusRideStarted:
		query = `UPDATE rides SET status = $1, started_at = NOW(), updated_at = NOW() WHERE id = $2 AND status = $3`
	case StatusCancelled:
		query = `UPDATE rides SET status = $1, cancelled_at = NOW(), cancelled_by = $4, cancellation_reason = $5, updated_at = NOW() WHERE id = $2 AND status = $3`
		args = append(args, cancelledBy, reason)
	default:
		query = `UPDATE rides SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	}
	query += ` RETURNING ` + rideColumns

	ride, err := scanRide(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrRideNotFound) {
			return nil, ErrStaleStatus
		}
		return nil, err
	}
	return ride, nil
}

// CompleteRide runs the whole settlement in one serializable
// transaction: the status flip to RIDE_COMPLETED with payment marked
// PAID, the earnings row, and the driver's aggregate counters. If the
// earnings insert hits the ride_id unique constraint the ride was
// already settled and the earning step is skipped, keeping completion
// idempotent on the money side.
func (r *Repository) CompleteRide(ctx context.Context, rideID, driverID uuid.UUID) (*Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin completion: %w", err)
	}
	defer tx.Rollback(ctx)

	flipQuery := `
		UPDATE rides
		SET status = $1, payment_status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = $4 AND driver_id = $5
		RETURNING ` + rideColumns

	ride, err := scanRide(tx.QueryRow(ctx, flipQuery, StatusRideCompleted, PaymentPaid, rideID, StatusRideStarted, driverID))
	if err != nil {
		if errors.Is(err, ErrRideNotFound) {
			return nil, ErrStaleStatus
		}
		return nil, err
	}

	rate := r.lookupCommissionRate(ctx, tx)
	commission := round2(ride.TotalFare * rate)
	netAmount := round2(ride.TotalFare - commission)

	inserted, err := insertEarning(ctx, tx, ride, driverID, rate, commission, netAmount)
	if err != nil {
		return nil, err
	}

	if inserted {
		totalsQuery := `
			UPDATE drivers
			SET total_rides = total_rides + 1,
			    total_earnings = total_earnings + $1,
			    updated_at = NOW()
			WHERE id = $2
		`
		if _, err := tx.Exec(ctx, totalsQuery, netAmount, driverID); err != nil {
			return nil, fmt.Errorf("failed to update driver totals: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit completion: %w", err)
	}

	return ride, nil
}

// lookupCommissionRate reads the platform_fee_rate row inside the
// completion transaction. A missing or malformed row falls back to
// the configured default; completion never fails on config.
func (r *Repository) lookupCommissionRate(ctx context.Context, tx pgx.Tx) float64 {
	var rate float64
	err := tx.QueryRow(ctx,
		`SELECT value::float8 FROM platform_config WHERE key = 'platform_fee_rate'`,
	).Scan(&rate)
	if err != nil {
		logger.WarnContext(ctx, "platform_fee_rate not found, using default",
			zap.Float64("default_rate", r.commissionRate),
			zap.Error(err),
		)
		return r.commissionRate
	}
	if rate < 0 || rate >= 1 {
		logger.WarnContext(ctx, "platform_fee_rate out of range, using default",
			zap.Float64("configured_rate", rate),
			zap.Float64("default_rate", r.commissionRate),
		)
		return r.commissionRate
	}
	return rate
}

// insertEarning writes the driver's earning row. Returns false when
// the ride already has one (unique violation on ride_id).
func insertEarning(ctx context.Context, tx pgx.Tx, ride *Ride, driverID uuid.UUID, rate, commission, netAmount float64) (bool, error) {
	query := `
		INSERT INTO driver_earnings (
			id, driver_id, ride_id, gross_amount, commission_rate,
			commission_amount, net_amount, payment_method
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(ctx, query,
		uuid.New(), driverID, ride.ID, ride.TotalFare, rate, commission, netAmount, ride.PaymentMethod,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			logger.WarnContext(ctx, "earning already recorded for ride, skipping",
				zap.String("ride_id", ride.ID.String()),
			)
			return false, nil
		}
		return false, fmt.Errorf("failed to insert earning: %w", err)
	}
	return true, nil
}

// SubmitPassengerRating records the passenger's rating and folds it
// into the driver's running average. The ride row is locked so a
// double submit hits the already-rated guard instead of racing.
func (r *Repository) SubmitPassengerRating(ctx context.Context, rideID uuid.UUID, rating int, feedback *string) (*Ride, error) {
	return r.submitRating(ctx, rideID, rating, feedback, true)
}

// SubmitDriverRating records the driver's rating of the passenger.
func (r *Repository) SubmitDriverRating(ctx context.Context, rideID uuid.UUID, rating int, feedback *string) (*Ride, error) {
	return r.submitRating(ctx, rideID, rating, feedback, false)
}

// ErrAlreadyRated signals a repeated rating submission for one side.
var ErrAlreadyRated = errors.New("ride already rated")

func (r *Repository) submitRating(ctx context.Context, rideID uuid.UUID, rating int, feedback *string, byPassenger bool) (*Ride, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin rating: %w", err)
	}
	defer tx.Rollback(ctx)

	lockQuery := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE`
	ride, err := scanRide(tx.QueryRow(ctx, lockQuery, rideID))
	if err != nil {
		return nil, err
	}

	if byPassenger && ride.PassengerRating != nil {
		return nil, ErrAlreadyRated
	}
	if !byPassenger && ride.DriverRating != nil {
		return nil, ErrAlreadyRated
	}

	var updateQuery string
	if byPassenger {
		updateQuery = `
			UPDATE rides
			SET passenger_rating = $1, passenger_feedback = $2, rated_by_passenger_at = NOW(), updated_at = NOW()
			WHERE id = $3
			RETURNING ` + rideColumns
	} else {
		updateQuery = `
			UPDATE rides
			SET driver_rating = $1, driver_feedback = $2, rated_by_driver_at = NOW(), updated_at = NOW()
			WHERE id = $3
			RETURNING ` + rideColumns
	}

	updated, err := scanRide(tx.QueryRow(ctx, updateQuery, rating, feedback, rideID))
	if err != nil {
		return nil, err
	}

	// The passenger rates the driver; fold it into the driver's
	// aggregate, stored to 1 decimal. ratingCount counts ratings,
	// not rides.
	if byPassenger && ride.DriverID != nil {
		aggQuery := `
			UPDATE drivers
			SET rating = ROUND(((rating * rating_count + $1) / (rating_count + 1))::numeric, 1),
			    rating_count = rating_count + 1,
			    updated_at = NOW()
			WHERE id = $2
		`
		if _, err := tx.Exec(ctx, aggQuery, rating, *ride.DriverID); err != nil {
			return nil, fmt.Errorf("failed to update driver rating: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit rating: %w", err)
	}

	return updated, nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
