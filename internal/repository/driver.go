package repository

import (
	"context"

	"tripbroker/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create persists a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByPhone retrieves a driver by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Driver, error)

	// GetAll retrieves all drivers.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// MarkBusy atomically flips an available driver to busy on the given
	// trip. Returns ErrConflict if the driver is already busy.
	MarkBusy(ctx context.Context, driverID, tripID string) error

	// MarkAvailable clears the driver's current trip and restores
	// availability.
	MarkAvailable(ctx context.Context, driverID string) error

	// RecordCompletedTrip increments the driver's cumulative trip and
	// earnings counters.
	RecordCompletedTrip(ctx context.Context, driverID string, net float64) error
}
