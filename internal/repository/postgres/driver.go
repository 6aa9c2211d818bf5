package postgres

import (
	"context"
	"database/sql"
	"errors"

	"tripbroker/internal/domain"
	"tripbroker/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// Create persists a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, name, phone, vehicle_class, is_available, current_trip_id, total_trips, total_earnings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.Name,
		driver.Phone,
		driver.VehicleClass,
		driver.IsAvailable,
		driver.CurrentTripID,
		driver.TotalTrips,
		driver.TotalEarnings,
		driver.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateID
	}

	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `
		SELECT id, name, phone, vehicle_class, is_available, current_trip_id, total_trips, total_earnings, created_at
		FROM drivers WHERE id = $1
	`

	var driver domain.Driver
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.VehicleClass,
		&driver.IsAvailable,
		&driver.CurrentTripID,
		&driver.TotalTrips,
		&driver.TotalEarnings,
		&driver.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &driver, nil
}

// GetByPhone retrieves a driver by phone number.
func (r *DriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	query := `
		SELECT id, name, phone, vehicle_class, is_available, current_trip_id, total_trips, total_earnings, created_at
		FROM drivers WHERE phone = $1
	`

	var driver domain.Driver
	err := r.q.QueryRowContext(ctx, query, phone).Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.VehicleClass,
		&driver.IsAvailable,
		&driver.CurrentTripID,
		&driver.TotalTrips,
		&driver.TotalEarnings,
		&driver.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &driver, nil
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	query := `
		SELECT id, name, phone, vehicle_class, is_available, current_trip_id, total_trips, total_earnings, created_at
		FROM drivers ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		var driver domain.Driver
		if err := rows.Scan(
			&driver.ID,
			&driver.Name,
			&driver.Phone,
			&driver.VehicleClass,
			&driver.IsAvailable,
			&driver.CurrentTripID,
			&driver.TotalTrips,
			&driver.TotalEarnings,
			&driver.CreatedAt,
		); err != nil {
			return nil, err
		}
		drivers = append(drivers, &driver)
	}

	return drivers, rows.Err()
}

// MarkBusy atomically claims an available driver for a trip.
func (r *DriverRepository) MarkBusy(ctx context.Context, driverID, tripID string) error {
	query := `
		UPDATE drivers SET is_available = FALSE, current_trip_id = $2
		WHERE id = $1 AND is_available = TRUE
	`

	result, err := r.q.ExecContext(ctx, query, driverID, tripID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM drivers WHERE id = $1)`, driverID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}

	return nil
}

// MarkAvailable restores a driver's availability after a trip ends.
func (r *DriverRepository) MarkAvailable(ctx context.Context, driverID string) error {
	query := `UPDATE drivers SET is_available = TRUE, current_trip_id = '' WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, driverID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordCompletedTrip increments the driver's cumulative counters.
func (r *DriverRepository) RecordCompletedTrip(ctx context.Context, driverID string, net float64) error {
	query := `
		UPDATE drivers SET total_trips = total_trips + 1, total_earnings = total_earnings + $2
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, driverID, net)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Ensure DriverRepository implements repository.DriverRepository.
var _ repository.DriverRepository = (*DriverRepository)(nil)
