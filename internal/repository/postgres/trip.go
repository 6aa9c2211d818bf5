package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"tripbroker/internal/domain"
	"tripbroker/internal/repository"
)

const tripColumns = `
	id, customer_id, driver_id, vehicle_class, service_type,
	pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address, stops,
	pickup_at, return_at, estimated_distance_km, estimated_duration_min,
	pricing, status, accepted_at,
	cancelled_at, cancelled_by, cancel_reason, cancellation_charge,
	details, created_at, updated_at
`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`

	stops, err := json.Marshal(trip.Stops)
	if err != nil {
		return err
	}
	pricing, err := json.Marshal(trip.Pricing)
	if err != nil {
		return err
	}
	details, err := marshalDetails(trip.Details)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		trip.ID,
		trip.CustomerID,
		nullString(trip.DriverID),
		trip.VehicleClass,
		trip.ServiceType,
		trip.Pickup.Lat, trip.Pickup.Lng, trip.Pickup.Address,
		trip.Dropoff.Lat, trip.Dropoff.Lng, trip.Dropoff.Address,
		string(stops),
		trip.PickupAt,
		nullTime(trip.ReturnAt),
		trip.EstimatedDistanceKm,
		trip.EstimatedDurationMin,
		string(pricing),
		trip.Status,
		nullTime(trip.AcceptedAt),
		nullTime(trip.CancelledAt),
		trip.CancelledBy,
		trip.CancelReason,
		trip.CancellationCharge,
		details,
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateID
	}

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return trip, nil
}

// Update writes the trip guarded by the status it was read in. The status
// predicate is part of the UPDATE itself, so a writer holding a stale view
// loses with ErrConflict instead of silently overwriting a later transition.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip, expected domain.TripStatus) error {
	query := `
		UPDATE trips
		SET driver_id = $2, pricing = $3, status = $4, accepted_at = $5,
		    cancelled_at = $6, cancelled_by = $7, cancel_reason = $8,
		    cancellation_charge = $9, details = $10, updated_at = $11
		WHERE id = $1 AND status = $12
	`

	pricing, err := json.Marshal(trip.Pricing)
	if err != nil {
		return err
	}
	details, err := marshalDetails(trip.Details)
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, query,
		trip.ID,
		nullString(trip.DriverID),
		string(pricing),
		trip.Status,
		nullTime(trip.AcceptedAt),
		nullTime(trip.CancelledAt),
		trip.CancelledBy,
		trip.CancelReason,
		trip.CancellationCharge,
		details,
		trip.UpdatedAt,
		expected,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Distinguish a missing trip from a lost status guard.
		var exists bool
		err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = $1)`, trip.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}

	return nil
}

// List retrieves recent trips, newest first.
func (r *TripRepository) List(ctx context.Context, limit int) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips ORDER BY created_at DESC LIMIT $1`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrips(rows)
}

// ListByCustomer retrieves a customer's trips, newest first.
func (r *TripRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrips(rows)
}

// ListOffers retrieves trips offerable to the driver. The rejection exclusion
// is part of the query itself so a stale view can never be served.
func (r *TripRepository) ListOffers(ctx context.Context, driverID string, class domain.VehicleClass) ([]*domain.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips t
		WHERE t.status = $1
		  AND t.driver_id IS NULL
		  AND t.vehicle_class = $2
		  AND NOT EXISTS (
			SELECT 1 FROM trip_rejections r
			WHERE r.trip_id = t.id AND r.driver_id = $3
		  )
		ORDER BY t.pickup_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, domain.TripStatusPending, class, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrips(rows)
}

// AssignDriver performs the compare-and-swap acceptance: the trip must still
// be Pending, unassigned, and never rejected by this driver. Exactly one of
// any set of concurrent callers can satisfy the WHERE clause.
func (r *TripRepository) AssignDriver(ctx context.Context, tripID, driverID string, acceptedAt time.Time) error {
	query := `
		UPDATE trips
		SET status = $4, driver_id = $2, accepted_at = $3, updated_at = $3
		WHERE id = $1
		  AND status = $5
		  AND driver_id IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM trip_rejections r
			WHERE r.trip_id = $1 AND r.driver_id = $2
		  )
	`

	result, err := r.q.ExecContext(ctx, query, tripID, driverID, acceptedAt,
		domain.TripStatusConfirmed, domain.TripStatusPending)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Distinguish a missing trip from a lost race.
		var exists bool
		err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = $1)`, tripID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}

	return nil
}

// AddRejection appends a rejection record, idempotently per (trip, driver).
func (r *TripRepository) AddRejection(ctx context.Context, rej *domain.Rejection) error {
	query := `
		INSERT INTO trip_rejections (trip_id, driver_id, reason, rejected_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (trip_id, driver_id) DO NOTHING
	`

	_, err := r.q.ExecContext(ctx, query, rej.TripID, rej.DriverID, rej.Reason, rej.RejectedAt)
	return err
}

// HasRejection reports whether the driver has rejected the trip.
func (r *TripRepository) HasRejection(ctx context.Context, tripID, driverID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM trip_rejections WHERE trip_id = $1 AND driver_id = $2)`,
		tripID, driverID,
	).Scan(&exists)
	return exists, err
}

// ListRejections retrieves the rejection history of a trip.
func (r *TripRepository) ListRejections(ctx context.Context, tripID string) ([]domain.Rejection, error) {
	query := `
		SELECT trip_id, driver_id, reason, rejected_at
		FROM trip_rejections WHERE trip_id = $1 ORDER BY rejected_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rejections []domain.Rejection
	for rows.Next() {
		var rej domain.Rejection
		if err := rows.Scan(&rej.TripID, &rej.DriverID, &rej.Reason, &rej.RejectedAt); err != nil {
			return nil, err
		}
		rejections = append(rejections, rej)
	}

	return rejections, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var driverID sql.NullString
	var stops, pricing string
	var details sql.NullString
	var returnAt, acceptedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&trip.ID,
		&trip.CustomerID,
		&driverID,
		&trip.VehicleClass,
		&trip.ServiceType,
		&trip.Pickup.Lat, &trip.Pickup.Lng, &trip.Pickup.Address,
		&trip.Dropoff.Lat, &trip.Dropoff.Lng, &trip.Dropoff.Address,
		&stops,
		&trip.PickupAt,
		&returnAt,
		&trip.EstimatedDistanceKm,
		&trip.EstimatedDurationMin,
		&pricing,
		&trip.Status,
		&acceptedAt,
		&cancelledAt,
		&trip.CancelledBy,
		&trip.CancelReason,
		&trip.CancellationCharge,
		&details,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		trip.DriverID = driverID.String
	}
	if returnAt.Valid {
		trip.ReturnAt = returnAt.Time
	}
	if acceptedAt.Valid {
		trip.AcceptedAt = acceptedAt.Time
	}
	if cancelledAt.Valid {
		trip.CancelledAt = cancelledAt.Time
	}

	if err := json.Unmarshal([]byte(stops), &trip.Stops); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pricing), &trip.Pricing); err != nil {
		return nil, err
	}
	if details.Valid {
		trip.Details = &domain.TripDetails{}
		if err := json.Unmarshal([]byte(details.String), trip.Details); err != nil {
			return nil, err
		}
	}

	return &trip, nil
}

func scanTrips(rows *sql.Rows) ([]*domain.Trip, error) {
	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func marshalDetails(details *domain.TripDetails) (sql.NullString, error) {
	if details == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
