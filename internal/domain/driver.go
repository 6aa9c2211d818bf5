package domain

import "time"

// Driver represents a driver account. IsAvailable is the inverse of "has an
// active trip": it is cleared when the driver accepts an offer and restored
// when the trip completes or is cancelled.
type Driver struct {
	ID            string
	Name          string
	Phone         string
	VehicleClass  VehicleClass
	IsAvailable   bool
	CurrentTripID string // weak reference, empty when available
	TotalTrips    int64
	TotalEarnings float64
	CreatedAt     time.Time
}
