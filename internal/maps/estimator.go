package maps

import (
	"context"
	"errors"

	"tripbroker/internal/domain"
)

// ErrUnavailable is returned when the external provider cannot produce an
// estimate. Callers recover with the haversine fallback; it is never a hard
// failure for trip completion.
var ErrUnavailable = errors.New("distance provider unavailable")

// Estimate is a distance/duration pair for a journey.
type Estimate struct {
	DistanceKm  float64
	DurationMin float64
}

// DistanceEstimator measures a journey between two points. Implementations
// must bound their own latency; callers treat any error as ErrUnavailable
// territory and fall back locally.
type DistanceEstimator interface {
	Estimate(ctx context.Context, origin, destination domain.GeoPoint) (*Estimate, error)
}

// LocalEstimator is the estimator used when no provider is configured. It
// always reports ErrUnavailable so callers take their documented fallback
// path and estimates stay flagged as local.
type LocalEstimator struct{}

func (LocalEstimator) Estimate(context.Context, domain.GeoPoint, domain.GeoPoint) (*Estimate, error) {
	return nil, ErrUnavailable
}

// FallbackEstimate computes a local haversine-based estimate for when the
// provider is unavailable. Duration assumes highway-speed driving.
func FallbackEstimate(origin, destination domain.GeoPoint) *Estimate {
	distanceKm := HaversineKm(origin.Lat, origin.Lng, destination.Lat, destination.Lng)
	return &Estimate{
		DistanceKm:  distanceKm,
		DurationMin: distanceKm / fallbackSpeedKmh * 60,
	}
}

const fallbackSpeedKmh = 50.0
