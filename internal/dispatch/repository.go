package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository resolves the passenger details shown on offers.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new dispatch repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetPassengerName returns the passenger's display name. Phone numbers
// stay out of offers on purpose.
func (r *Repository) GetPassengerName(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `SELECT name FROM users WHERE id = $1`

	var name string
	if err := r.db.QueryRow(ctx, query, userID).Scan(&name); err != nil {
		return "", fmt.Errorf("failed to get passenger name: %w", err)
	}

	return name, nil
}
