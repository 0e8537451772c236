package drivers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles database operations for drivers
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new drivers repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LoadAllDrivers loads every driver row for state store hydration.
func (r *Repository) LoadAllDrivers(ctx context.Context) ([]*DriverRecord, error) {
	query := `
		SELECT id, user_id, is_online, is_active, is_verified,
			   current_lat, current_lng, h3_index,
			   vehicle_type, vehicle_number, vehicle_model,
			   rating, rating_count, total_rides, total_earnings,
			   last_active_at
		FROM drivers
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load drivers: %w", err)
	}
	defer rows.Close()

	var records []*DriverRecord
	for rows.Next() {
		rec := &DriverRecord{}
		var h3Index *string
		var lastActiveAt *time.Time
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.IsOnline,
			&rec.IsActive,
			&rec.IsVerified,
			&rec.CurrentLat,
			&rec.CurrentLng,
			&h3Index,
			&rec.VehicleType,
			&rec.VehicleNumber,
			&rec.VehicleModel,
			&rec.Rating,
			&rec.RatingCount,
			&rec.TotalRides,
			&rec.TotalEarnings,
			&lastActiveAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		if h3Index != nil {
			rec.H3Index = *h3Index
		}
		if lastActiveAt != nil {
			rec.LastActiveAt = *lastActiveAt
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read drivers: %w", err)
	}
	return records, nil
}

// FlushLocations writes a batch of dirty coordinates, one statement
// per driver in a single round trip.
func (r *Repository) FlushLocations(ctx context.Context, writes []LocationWrite) error {
	if len(writes) == 0 {
		return nil
	}

	query := `
		UPDATE drivers
		SET current_lat = $2, current_lng = $3, h3_index = $4,
			last_active_at = $5, updated_at = NOW()
		WHERE id = $1
	`

	batch := &pgx.Batch{}
	for _, w := range writes {
		batch.Queue(query, w.DriverID, w.Lat, w.Lng, w.H3Index, w.LastActiveAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range writes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to flush driver location: %w", err)
		}
	}
	return nil
}

// FlushStatuses writes a batch of online-status changes.
func (r *Repository) FlushStatuses(ctx context.Context, writes []StatusWrite) error {
	if len(writes) == 0 {
		return nil
	}

	query := `
		UPDATE drivers
		SET is_online = $2, last_active_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	batch := &pgx.Batch{}
	for _, w := range writes {
		batch.Queue(query, w.DriverID, w.IsOnline, w.ChangedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range writes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to flush driver status: %w", err)
		}
	}
	return nil
}

// HasPendingPenalty reports whether the driver has any unsettled penalty.
func (r *Repository) HasPendingPenalty(ctx context.Context, driverID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM driver_penalties WHERE driver_id = $1 AND status = 'PENDING')`

	var exists bool
	if err := r.db.QueryRow(ctx, query, driverID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check penalties: %w", err)
	}
	return exists, nil
}

// CreatePenalty records a penalty against a driver.
func (r *Repository) CreatePenalty(ctx context.Context, penalty *DriverPenalty) error {
	query := `
		INSERT INTO driver_penalties (id, driver_id, reason, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		penalty.ID,
		penalty.DriverID,
		penalty.Reason,
		penalty.Amount,
		penalty.Status,
		penalty.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create penalty: %w", err)
	}
	return nil
}

// ListPenalties returns penalties for a driver, newest first.
func (r *Repository) ListPenalties(ctx context.Context, driverID uuid.UUID) ([]*DriverPenalty, error) {
	query := `
		SELECT id, driver_id, reason, amount, status, created_at, paid_at
		FROM driver_penalties
		WHERE driver_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list penalties: %w", err)
	}
	defer rows.Close()

	var penalties []*DriverPenalty
	for rows.Next() {
		p := &DriverPenalty{}
		if err := rows.Scan(&p.ID, &p.DriverID, &p.Reason, &p.Amount, &p.Status, &p.CreatedAt, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan penalty: %w", err)
		}
		penalties = append(penalties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read penalties: %w", err)
	}
	return penalties, nil
}

// GetDriverRow loads a single driver row, used when the state store
// has not hydrated the driver yet.
func (r *Repository) GetDriverRow(ctx context.Context, driverID uuid.UUID) (*DriverRecord, error) {
	query := `
		SELECT id, user_id, is_online, is_active, is_verified,
			   current_lat, current_lng, h3_index,
			   vehicle_type, vehicle_number, vehicle_model,
			   rating, rating_count, total_rides, total_earnings,
			   last_active_at
		FROM drivers
		WHERE id = $1
	`

	rec := &DriverRecord{}
	var h3Index *string
	var lastActiveAt *time.Time
	err := r.db.QueryRow(ctx, query, driverID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.IsOnline,
		&rec.IsActive,
		&rec.IsVerified,
		&rec.CurrentLat,
		&rec.CurrentLng,
		&h3Index,
		&rec.VehicleType,
		&rec.VehicleNumber,
		&rec.VehicleModel,
		&rec.Rating,
		&rec.RatingCount,
		&rec.TotalRides,
		&rec.TotalEarnings,
		&lastActiveAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	if h3Index != nil {
		rec.H3Index = *h3Index
	}
	if lastActiveAt != nil {
		rec.LastActiveAt = *lastActiveAt
	}
	return rec, nil
}
