package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tripbroker/internal/domain"
	"tripbroker/internal/service"
)

func newDispatchService(tripRepo *MockTripRepository, driverRepo *MockDriverRepository) *service.DispatchService {
	return service.NewDispatchService(tripRepo, driverRepo, NewMockLockStore(), NewMockLocationStore(), &MockNotifier{}, testLogger())
}

func pendingTrip(id string, class domain.VehicleClass) *domain.Trip {
	return &domain.Trip{
		ID:           id,
		CustomerID:   "customer-1",
		VehicleClass: class,
		ServiceType:  domain.ServiceTypeOneWay,
		Status:       domain.TripStatusPending,
		PickupAt:     time.Now().Add(24 * time.Hour),
		CreatedAt:    time.Now(),
	}
}

func availableDriver(id string, class domain.VehicleClass) *domain.Driver {
	return &domain.Driver{
		ID:           id,
		Name:         "Driver " + id,
		VehicleClass: class,
		IsAvailable:  true,
	}
}

func TestAcceptOffer_AssignsTripAndReservesDriver(t *testing.T) {
	ctx := context.Background()
	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	notifier := &MockNotifier{}
	svc := service.NewDispatchService(tripRepo, driverRepo, NewMockLockStore(), NewMockLocationStore(), notifier, testLogger())

	tripRepo.AddTrip(pendingTrip("trip-1", domain.VehicleClassSedan))
	driverRepo.AddDriver(availableDriver("driver-1", domain.VehicleClassSedan))

	trip, err := svc.AcceptOffer(ctx, "trip-1", "driver-1")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if trip.Status != domain.TripStatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", trip.Status)
	}
	if trip.DriverID != "driver-1" {
		t.Errorf("expected driver-1, got %q", trip.DriverID)
	}
	if trip.AcceptedAt.IsZero() {
		t.Error("expected acceptedAt to be set")
	}

	driver := driverRepo.GetDriver("driver-1")
	if driver.IsAvailable {
		t.Error("expected driver to be reserved")
	}
	if driver.CurrentTripID != "trip-1" {
		t.Errorf("expected current trip trip-1, got %q", driver.CurrentTripID)
	}
	if notifier.AssignedCount != 1 {
		t.Errorf("expected 1 assignment notification, got %d", notifier.AssignedCount)
	}
}

func TestAcceptOffer_DropsDriverFromLocationIndex(t *testing.T) {
	ctx := context.Background()
	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	locationStore := NewMockLocationStore()
	svc := service.NewDispatchService(tripRepo, driverRepo, NewMockLockStore(), locationStore, &MockNotifier{}, testLogger())

	tripRepo.AddTrip(pendingTrip("trip-1", domain.VehicleClassSedan))
	driverRepo.AddDriver(availableDriver("driver-1", domain.VehicleClassSedan))
	_ = locationStore.UpdateLocation(ctx, "driver-1", 19.07, 72.87)
	_ = locationStore.UpdateLocation(ctx, "driver-2", 19.08, 72.88)

	if _, err := svc.AcceptOffer(ctx, "trip-1", "driver-1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	// The on-trip driver leaves the proximity index; everyone else stays.
	if locationStore.HasLocation("driver-1") {
		t.Error("accepting driver should be dropped from the location index")
	}
	if !locationStore.HasLocation("driver-2") {
		t.Error("uninvolved driver should still be in the location index")
	}
}

func TestAcceptOffer_ConcurrentAcceptsHaveExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	svc := newDispatchService(tripRepo, driverRepo)

	tripRepo.AddTrip(pendingTrip("trip-1", domain.VehicleClassSedan))

	const drivers = 16
	for i := 0; i < drivers; i++ {
		driverRepo.AddDriver(availableDriver(fmt.Sprintf("driver-%d", i), domain.VehicleClassSedan))
	}

	var wg sync.WaitGroup
	errs := make([]error, drivers)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AcceptOffer(ctx, "trip-1", fmt.Sprintf("driver-%d", i))
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, service.ErrTripAlreadyAssigned):
		default:
			t.Errorf("driver-%d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	// Every loser must have been released back to the pool.
	trip := tripRepo.GetTrip("trip-1")
	for i := 0; i < drivers; i++ {
		id := fmt.Sprintf("driver-%d", i)
		driver := driverRepo.GetDriver(id)
		if id == trip.DriverID {
			if driver.IsAvailable {
				t.Errorf("winner %s should be busy", id)
			}
			continue
		}
		if !driver.IsAvailable {
			t.Errorf("loser %s should be available again", id)
		}
	}
}

func TestAcceptOffer_RejectedDriverCannotAccept(t *testing.T) {
	ctx := context.Background()
	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	svc := newDispatchService(tripRepo, driverRepo)

	tripRepo.AddTrip(pendingTrip("trip-1", domain.VehicleClassSedan))
	driverRepo.AddDriver(availableDriver("driver-1", domain.VehicleClassSedan))

	if err := svc.RejectOffer(ctx, "trip-1", "driver-1", "too far"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	_, err := svc.AcceptOffer(ctx, "trip-1", "driver-1")
	if !errors.Is(err, service.ErrAlreadyRejected) {
		t.Fatalf("expected ErrAlreadyRejected, got %v", err)
	}

	// The failed accept must not leave the driver reserved.
	if !driverRepo.GetDriver("driver-1").IsAvailable {
		t.Error("driver should still be available")
	}
	if got := tripRepo.GetTrip("trip-1").Status; got != domain.TripStatusPending {
		t.Errorf("trip should remain PENDING, got %s", got)
	}
}

func TestAcceptOffer_BusyDriverGetsConflict(t *testing.T) {
	ctx := context.Background()
	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	svc := newDispatchService(tripRepo, driverRepo)

	tripRepo.AddTrip(pendingTrip("trip-1", domain.VehicleClassSedan))
	tripRepo.AddTrip(pendingTrip("trip-2", domain.VehicleClassSedan))
	driverRepo.AddDriver(availableDriver("driver-1", domain.VehicleClassSedan))

	if _, err := svc.AcceptOffer(ctx, "trip-1", "driver-1"); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	_, err := svc.AcceptOffer(ctx, "trip-2", "driver-1")
	if !errors.Is(err, service.ErrDriverBusy) {
		t.Fatalf("expected ErrDriverBusy, got %v", err)
	}
	if got := tripRepo.GetTrip("trip-2").Status; got != domain.TripStatusPending {
		t.Errorf("second trip should remain PENDING, got %s", got)
	}
}

func TestRejectOffer_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	svc := newDispatchService(tripRepo, driverRepo)

	tripRepo.AddTrip(pendingTrip("trip-1", domain.VehicleClassSedan))
	driverRepo.AddDriver(availableDriver("driver-1", domain.VehicleClassSedan))

	for i := 0; i < 3; i++ {
		if err := svc.RejectOffer(ctx, "trip-1", "driver-1", "busy day"); err != nil {
			t.Fatalf("reject %d failed: %v", i, err)
		}
	}
	if got := tripRepo.CountRejections("trip-1"); got != 1 {
		t.Errorf("expected 1 rejection on file, got %d", got)
	}
	if got := tripRepo.GetTrip("trip-1").Status; got != domain.TripStatusPending {
		t.Errorf("trip should remain PENDING, got %s", got)
	}
}

func TestRejectOffer_AssignedTripConflicts(t *testing.T) {
	ctx := context.Background()
	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	svc := newDispatchService(tripRepo, driverRepo)

	tripRepo.AddTrip(pendingTrip("trip-1", domain.VehicleClassSedan))
	driverRepo.AddDriver(availableDriver("driver-1", domain.VehicleClassSedan))
	driverRepo.AddDriver(availableDriver("driver-2", domain.VehicleClassSedan))

	if _, err := svc.AcceptOffer(ctx, "trip-1", "driver-1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	err := svc.RejectOffer(ctx, "trip-1", "driver-2", "")
	if !errors.Is(err, service.ErrTripNotPending) {
		t.Fatalf("expected ErrTripNotPending, got %v", err)
	}
}

func TestListOffers_RejectionThenReassignment(t *testing.T) {
	ctx := context.Background()
	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	svc := newDispatchService(tripRepo, driverRepo)

	tripRepo.AddTrip(pendingTrip("trip-1", domain.VehicleClassSedan))
	for _, id := range []string{"driver-a", "driver-b", "driver-c"} {
		driverRepo.AddDriver(availableDriver(id, domain.VehicleClassSedan))
	}

	// Driver A rejects; the trip stays offerable to B and C but never again to A.
	if err := svc.RejectOffer(ctx, "trip-1", "driver-a", "too far"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	offersA, _ := svc.ListOffers(ctx, "driver-a")
	if len(offersA) != 0 {
		t.Errorf("driver-a should see no offers, got %d", len(offersA))
	}
	offersC, _ := svc.ListOffers(ctx, "driver-c")
	if len(offersC) != 1 {
		t.Fatalf("driver-c should see the trip, got %d offers", len(offersC))
	}

	// Driver B accepts; the trip disappears for everyone.
	if _, err := svc.AcceptOffer(ctx, "trip-1", "driver-b"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	offersC, _ = svc.ListOffers(ctx, "driver-c")
	if len(offersC) != 0 {
		t.Errorf("driver-c should see no offers after assignment, got %d", len(offersC))
	}
}

func TestListOffers_FiltersByVehicleClass(t *testing.T) {
	ctx := context.Background()
	tripRepo := NewMockTripRepository()
	driverRepo := NewMockDriverRepository()
	svc := newDispatchService(tripRepo, driverRepo)

	tripRepo.AddTrip(pendingTrip("trip-sedan", domain.VehicleClassSedan))
	tripRepo.AddTrip(pendingTrip("trip-suv", domain.VehicleClassSUV))
	driverRepo.AddDriver(availableDriver("driver-1", domain.VehicleClassSUV))

	offers, err := svc.ListOffers(ctx, "driver-1")
	if err != nil {
		t.Fatalf("list offers failed: %v", err)
	}
	if len(offers) != 1 || offers[0].ID != "trip-suv" {
		t.Fatalf("expected only trip-suv, got %v", offers)
	}
}
