package earnings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the earnings ledger. Writes happen inside the ride
// completion transaction, never here.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new earnings repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListForDriver returns a driver's earnings newest first.
func (r *Repository) ListForDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]*Earning, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM driver_earnings WHERE driver_id = $1`
	if err := r.db.QueryRow(ctx, countQuery, driverID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count earnings: %w", err)
	}

	query := `
		SELECT id, driver_id, ride_id, gross_amount, commission_rate,
		       commission_amount, net_amount, payment_method, created_at
		FROM driver_earnings
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, driverID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list earnings: %w", err)
	}
	defer rows.Close()

	list := make([]*Earning, 0)
	for rows.Next() {
		e := &Earning{}
		err := rows.Scan(
			&e.ID,
			&e.DriverID,
			&e.RideID,
			&e.GrossAmount,
			&e.CommissionRate,
			&e.CommissionAmount,
			&e.NetAmount,
			&e.PaymentMethod,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan earning: %w", err)
		}
		list = append(list, e)
	}

	return list, total, nil
}

// GetSummary aggregates the last `days` days of earnings.
func (r *Repository) GetSummary(ctx context.Context, driverID uuid.UUID, days int) (*Summary, error) {
	summary := &Summary{Daily: make([]DailyTotal, 0)}

	totalsQuery := `
		SELECT COUNT(*),
		       COALESCE(SUM(gross_amount), 0),
		       COALESCE(SUM(commission_amount), 0),
		       COALESCE(SUM(net_amount), 0)
		FROM driver_earnings
		WHERE driver_id = $1 AND created_at > NOW() - ($2 || ' days')::interval
	`
	err := r.db.QueryRow(ctx, totalsQuery, driverID, days).Scan(
		&summary.TotalRides,
		&summary.TotalGross,
		&summary.TotalCommission,
		&summary.TotalNet,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get earnings totals: %w", err)
	}

	dailyQuery := `
		SELECT TO_CHAR(created_at::date, 'YYYY-MM-DD'),
		       COUNT(*),
		       COALESCE(SUM(net_amount), 0)
		FROM driver_earnings
		WHERE driver_id = $1 AND created_at > NOW() - ($2 || ' days')::interval
		GROUP BY created_at::date
		ORDER BY created_at::date DESC
	`
	rows, err := r.db.Query(ctx, dailyQuery, driverID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily earnings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day DailyTotal
		if err := rows.Scan(&day.Date, &day.Rides, &day.NetTotal); err != nil {
			return nil, fmt.Errorf("failed to scan daily earnings: %w", err)
		}
		summary.Daily = append(summary.Daily, day)
	}

	return summary, nil
}
