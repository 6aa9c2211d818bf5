package redis

import (
	"context"
	"time"

	"tripbroker/internal/domain"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error)
	ReleaseTripLock(ctx context.Context, tripID string) error
	AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error)
	ReleaseDriverLock(ctx context.Context, driverID string) error
}

// TraceStoreInterface defines the interface for route-trace buffering.
type TraceStoreInterface interface {
	Append(ctx context.Context, tripID string, point domain.RoutePoint) error
	Drain(ctx context.Context, tripID string) ([]domain.RoutePoint, error)
}

// ThrottleStoreInterface defines the interface for request throttling.
type ThrottleStoreInterface interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ TraceStoreInterface    = (*TraceStore)(nil)
	_ ThrottleStoreInterface = (*ThrottleStore)(nil)
)
