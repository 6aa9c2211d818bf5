package tests

import (
	"context"
	"errors"
	"testing"

	"tripbroker/internal/config"
	"tripbroker/internal/domain"
	"tripbroker/internal/service"
)

func newDriverService(driverRepo *MockDriverRepository, locationStore *MockLocationStore) *service.DriverService {
	ledgerRepo := NewMockLedgerRepository()
	fare := service.NewFareEngine(config.LoadRates())
	ledger := service.NewEarningsLedger(ledgerRepo, driverRepo, fare, &MockNotifier{}, testLogger())
	return service.NewDriverService(driverRepo, NewMockTripRepository(), ledger, locationStore, NewMockTraceStore(), testLogger())
}

func TestNearbyDrivers_ReturnsNearestFirstWithinRadius(t *testing.T) {
	ctx := context.Background()
	driverRepo := NewMockDriverRepository()
	locationStore := NewMockLocationStore()
	svc := newDriverService(driverRepo, locationStore)

	// Two drivers a few km from the search point, one far away.
	driverRepo.AddDriver(availableDriver("driver-near", domain.VehicleClassSedan))
	driverRepo.AddDriver(availableDriver("driver-close", domain.VehicleClassSedan))
	driverRepo.AddDriver(availableDriver("driver-far", domain.VehicleClassSedan))
	_ = locationStore.UpdateLocation(ctx, "driver-close", 12.9750, 77.5950)
	_ = locationStore.UpdateLocation(ctx, "driver-near", 12.9900, 77.6100)
	_ = locationStore.UpdateLocation(ctx, "driver-far", 13.0827, 80.2707)

	nearby, err := svc.NearbyDrivers(ctx, 12.9716, 77.5946, 10)
	if err != nil {
		t.Fatalf("nearby search failed: %v", err)
	}
	if len(nearby) != 2 {
		t.Fatalf("expected 2 drivers in radius, got %d", len(nearby))
	}
	if nearby[0].Driver.ID != "driver-close" {
		t.Errorf("expected driver-close first, got %s", nearby[0].Driver.ID)
	}
	if nearby[1].Driver.ID != "driver-near" {
		t.Errorf("expected driver-near second, got %s", nearby[1].Driver.ID)
	}
}

func TestNearbyDrivers_SkipsVanishedDrivers(t *testing.T) {
	ctx := context.Background()
	driverRepo := NewMockDriverRepository()
	locationStore := NewMockLocationStore()
	svc := newDriverService(driverRepo, locationStore)

	driverRepo.AddDriver(availableDriver("driver-1", domain.VehicleClassSedan))
	_ = locationStore.UpdateLocation(ctx, "driver-1", 12.9750, 77.5950)
	// A stale index entry with no backing account.
	_ = locationStore.UpdateLocation(ctx, "driver-gone", 12.9760, 77.5960)

	nearby, err := svc.NearbyDrivers(ctx, 12.9716, 77.5946, 10)
	if err != nil {
		t.Fatalf("nearby search failed: %v", err)
	}
	if len(nearby) != 1 || nearby[0].Driver.ID != "driver-1" {
		t.Fatalf("expected only driver-1, got %+v", nearby)
	}
}

func TestNearbyDrivers_RejectsBadCoordinates(t *testing.T) {
	svc := newDriverService(NewMockDriverRepository(), NewMockLocationStore())

	_, err := svc.NearbyDrivers(context.Background(), 91, 77.59, 10)
	if !errors.Is(err, service.ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
}
