package maps

import (
	"math"
	"testing"

	"tripbroker/internal/domain"
)

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Bangalore to Chennai, roughly 290km great-circle.
	got := HaversineKm(12.9716, 77.5946, 13.0827, 80.2707)
	if math.Abs(got-290) > 5 {
		t.Errorf("expected ~290km, got %v", got)
	}
}

func TestHaversineKm_ZeroForSamePoint(t *testing.T) {
	if got := HaversineKm(12.9716, 77.5946, 12.9716, 77.5946); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := HaversineKm(28.6139, 77.2090, 19.0760, 72.8777)
	b := HaversineKm(19.0760, 72.8777, 28.6139, 77.2090)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("expected symmetry, got %v vs %v", a, b)
	}
}

func TestFallbackEstimate_DurationFromAssumedSpeed(t *testing.T) {
	origin := domain.GeoPoint{Lat: 12.9716, Lng: 77.5946}
	destination := domain.GeoPoint{Lat: 13.0827, Lng: 80.2707}

	est := FallbackEstimate(origin, destination)
	if est.DistanceKm <= 0 {
		t.Fatal("expected positive distance")
	}
	wantMin := est.DistanceKm / 50 * 60
	if math.Abs(est.DurationMin-wantMin) > 1e-9 {
		t.Errorf("expected duration %v, got %v", wantMin, est.DurationMin)
	}
}
