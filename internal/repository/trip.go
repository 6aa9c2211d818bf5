package repository

import (
	"context"
	"time"

	"tripbroker/internal/domain"
)

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip. Returns ErrDuplicateID if the trip ID is
	// already taken; callers regenerate and retry.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// Update writes the trip's current state, guarded by the status the
	// caller read it in. Returns ErrConflict when the row's status no
	// longer matches expected, so a stale writer can never exit a state
	// it did not observe.
	Update(ctx context.Context, trip *domain.Trip, expected domain.TripStatus) error

	// List retrieves recent trips, newest first.
	List(ctx context.Context, limit int) ([]*domain.Trip, error)

	// ListByCustomer retrieves a customer's trips, newest first.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domain.Trip, error)

	// ListOffers retrieves trips currently offerable to the driver: Pending,
	// unassigned, matching the driver's vehicle class, and not rejected by
	// the driver. The result is computed fresh on every call.
	ListOffers(ctx context.Context, driverID string, class domain.VehicleClass) ([]*domain.Trip, error)

	// AssignDriver atomically moves a Pending, unassigned trip that the
	// driver has not rejected to Confirmed with the driver set. Returns
	// ErrConflict if any part of that precondition no longer holds and
	// ErrNotFound if the trip does not exist.
	AssignDriver(ctx context.Context, tripID, driverID string, acceptedAt time.Time) error

	// AddRejection appends a rejection record. Idempotent per
	// (trip, driver): repeating the call changes nothing.
	AddRejection(ctx context.Context, rej *domain.Rejection) error

	// HasRejection reports whether the driver has rejected the trip.
	HasRejection(ctx context.Context, tripID, driverID string) (bool, error)

	// ListRejections retrieves the rejection history of a trip in order.
	ListRejections(ctx context.Context, tripID string) ([]domain.Rejection, error)
}
