package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"tripbroker/internal/domain"
)

// GoogleEstimator measures journeys via the Google Maps Distance Matrix API.
type GoogleEstimator struct {
	client  *maps.Client
	timeout time.Duration
}

// NewGoogleEstimator creates a GoogleEstimator with the given API key and
// per-request timeout.
func NewGoogleEstimator(apiKey string, timeout time.Duration) (*GoogleEstimator, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &GoogleEstimator{client: client, timeout: timeout}, nil
}

// Estimate returns driving distance and duration between two points. The
// request is bounded by the configured timeout so trip completion is never
// blocked on the provider.
func (g *GoogleEstimator) Estimate(ctx context.Context, origin, destination domain.GeoPoint) (*Estimate, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{fmt.Sprintf("%f,%f", origin.Lat, origin.Lng)},
		Destinations: []string{fmt.Sprintf("%f,%f", destination.Lat, destination.Lng)},
		Mode:         maps.TravelModeDriving,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return nil, fmt.Errorf("%w: empty matrix response", ErrUnavailable)
	}

	element := resp.Rows[0].Elements[0]
	if element.Status != "OK" {
		return nil, fmt.Errorf("%w: element status %s", ErrUnavailable, element.Status)
	}

	return &Estimate{
		DistanceKm:  float64(element.Distance.Meters) / 1000,
		DurationMin: element.Duration.Minutes(),
	}, nil
}

// Ensure GoogleEstimator implements DistanceEstimator.
var _ DistanceEstimator = (*GoogleEstimator)(nil)
