package tests

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"tripbroker/internal/config"
	"tripbroker/internal/domain"
	"tripbroker/internal/maps"
	"tripbroker/internal/repository"
	"tripbroker/internal/service"
)

type lifecycleFixture struct {
	tripRepo   *MockTripRepository
	driverRepo *MockDriverRepository
	ledgerRepo *MockLedgerRepository
	traceStore *MockTraceStore
	estimator  *MockEstimator
	notifier   *MockNotifier
	fare       *service.FareEngine
	svc        *service.TripService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		tripRepo:   NewMockTripRepository(),
		driverRepo: NewMockDriverRepository(),
		ledgerRepo: NewMockLedgerRepository(),
		traceStore: NewMockTraceStore(),
		estimator:  &MockEstimator{DistanceKm: 120, DurationMin: 150},
		notifier:   &MockNotifier{},
	}
	customerRepo := NewMockCustomerRepository()
	customerRepo.AddCustomer(&domain.Customer{ID: "customer-1", Name: "Asha", Phone: "9000000001"})
	f.fare = service.NewFareEngine(config.LoadRates())
	ledger := service.NewEarningsLedger(f.ledgerRepo, f.driverRepo, f.fare, f.notifier, testLogger())
	f.svc = service.NewTripService(
		f.tripRepo, f.driverRepo, customerRepo, ledger,
		f.estimator, f.traceStore, f.fare, f.notifier, testLogger(),
	)
	return f
}

var (
	bangalore = domain.GeoPoint{Lat: 12.9716, Lng: 77.5946, Address: "Bangalore"}
	chennai   = domain.GeoPoint{Lat: 13.0827, Lng: 80.2707, Address: "Chennai"}
)

// inProgressTrip seeds a trip that driver-1 is currently driving.
func (f *lifecycleFixture) inProgressTrip(id string, startedAgo time.Duration) *domain.Trip {
	pricing, _ := f.fare.Compute(service.FareInput{
		DistanceKm:   120,
		DurationMin:  150,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
	})
	trip := &domain.Trip{
		ID:                   id,
		CustomerID:           "customer-1",
		DriverID:             "driver-1",
		VehicleClass:         domain.VehicleClassSedan,
		ServiceType:          domain.ServiceTypeOneWay,
		Pickup:               bangalore,
		Dropoff:              chennai,
		PickupAt:             time.Now().Add(-startedAgo),
		EstimatedDistanceKm:  120,
		EstimatedDurationMin: 150,
		Pricing:              pricing.Pricing(),
		Status:               domain.TripStatusInProgress,
		Details: &domain.TripDetails{
			StartTime:     time.Now().Add(-startedAgo),
			StartLocation: bangalore,
		},
	}
	f.tripRepo.AddTrip(trip)
	f.driverRepo.AddDriver(&domain.Driver{
		ID:            "driver-1",
		VehicleClass:  domain.VehicleClassSedan,
		IsAvailable:   false,
		CurrentTripID: id,
	})
	return trip
}

func TestCreateTrip_CommitsBindingFare(t *testing.T) {
	f := newLifecycleFixture()

	trip, err := f.svc.CreateTrip(context.Background(), service.CreateTripRequest{
		CustomerID:   "customer-1",
		Pickup:       bangalore,
		Dropoff:      chennai,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     time.Now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if trip.Status != domain.TripStatusPending {
		t.Errorf("expected PENDING, got %s", trip.Status)
	}
	if trip.EstimatedDistanceKm != 120 {
		t.Errorf("expected estimated distance 120, got %v", trip.EstimatedDistanceKm)
	}
	if !trip.Pricing.Consistent() {
		t.Errorf("pricing inconsistent: total=%v sum=%v", trip.Pricing.TotalAmount, trip.Pricing.ComponentSum())
	}
	if trip.Pricing.TotalAmount <= 0 {
		t.Error("expected a positive committed fare")
	}
	if f.notifier.BookedCount != 1 {
		t.Errorf("expected 1 booking notification, got %d", f.notifier.BookedCount)
	}
}

func TestCreateTrip_RejectsUnknownCustomer(t *testing.T) {
	f := newLifecycleFixture()

	_, err := f.svc.CreateTrip(context.Background(), service.CreateTripRequest{
		CustomerID:   "nobody",
		Pickup:       bangalore,
		Dropoff:      chennai,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     time.Now().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected error for unknown customer")
	}
}

func TestCreateTrip_RoundTripNeedsReturnAfterPickup(t *testing.T) {
	f := newLifecycleFixture()
	pickupAt := time.Now().Add(24 * time.Hour)

	_, err := f.svc.CreateTrip(context.Background(), service.CreateTripRequest{
		CustomerID:   "customer-1",
		Pickup:       bangalore,
		Dropoff:      chennai,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeRoundTrip,
		PickupAt:     pickupAt,
		ReturnAt:     pickupAt.Add(-time.Hour),
	})
	if !errors.Is(err, service.ErrInvalidReturnTime) {
		t.Fatalf("expected ErrInvalidReturnTime, got %v", err)
	}
}

func TestStartTrip_OnlyAssignedDriver(t *testing.T) {
	f := newLifecycleFixture()
	trip := &domain.Trip{
		ID:           "trip-1",
		CustomerID:   "customer-1",
		DriverID:     "driver-1",
		VehicleClass: domain.VehicleClassSedan,
		Status:       domain.TripStatusConfirmed,
		PickupAt:     time.Now(),
	}
	f.tripRepo.AddTrip(trip)

	_, err := f.svc.StartTrip(context.Background(), service.StartTripRequest{
		TripID:   "trip-1",
		DriverID: "driver-2",
	})
	if !errors.Is(err, service.ErrNotAssignedDriver) {
		t.Fatalf("expected ErrNotAssignedDriver, got %v", err)
	}

	started, err := f.svc.StartTrip(context.Background(), service.StartTripRequest{
		TripID:        "trip-1",
		DriverID:      "driver-1",
		StartLocation: bangalore,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.Status != domain.TripStatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", started.Status)
	}
	if started.Details == nil || started.Details.StartTime.IsZero() {
		t.Fatal("expected start details to be recorded")
	}
}

func TestStartTrip_PendingTripConflicts(t *testing.T) {
	f := newLifecycleFixture()
	f.tripRepo.AddTrip(pendingTrip("trip-1", domain.VehicleClassSedan))

	trip := f.tripRepo.GetTrip("trip-1")
	trip.DriverID = "driver-1"

	_, err := f.svc.StartTrip(context.Background(), service.StartTripRequest{
		TripID:   "trip-1",
		DriverID: "driver-1",
	})
	if !errors.Is(err, service.ErrTripNotConfirmed) {
		t.Fatalf("expected ErrTripNotConfirmed, got %v", err)
	}
}

func TestCompleteTrip_PostsEarningsAndFreesDriver(t *testing.T) {
	f := newLifecycleFixture()
	f.inProgressTrip("trip-1", 2*time.Hour)
	_ = f.ledgerRepo.CreateAccount(context.Background(), "driver-1")

	trip, err := f.svc.CompleteTrip(context.Background(), service.CompleteTripRequest{
		TripID:      "trip-1",
		DriverID:    "driver-1",
		EndLocation: chennai,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if trip.Status != domain.TripStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", trip.Status)
	}
	if trip.Details.DistanceSource != domain.DistanceSourceProvider {
		t.Errorf("expected PROVIDER distance, got %s", trip.Details.DistanceSource)
	}
	if trip.Details.ActualDistanceKm != 120 {
		t.Errorf("expected provider distance 120, got %v", trip.Details.ActualDistanceKm)
	}
	if !trip.Pricing.Consistent() {
		t.Error("recomputed pricing inconsistent")
	}

	// The net credit is gross minus commission, and the pending balance
	// equals exactly that single credit.
	entries := f.ledgerRepo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Type != domain.LedgerEntryTripCredit {
		t.Errorf("expected TRIP_CREDIT, got %s", entry.Type)
	}
	wantCommission := math.Round(trip.Pricing.TotalAmount*0.15*100) / 100
	if math.Abs(entry.Commission-wantCommission) > 0.005 {
		t.Errorf("expected commission %v, got %v", wantCommission, entry.Commission)
	}
	if math.Abs(entry.Gross-entry.Commission-entry.Net) > 0.005 {
		t.Errorf("gross %v != commission %v + net %v", entry.Gross, entry.Commission, entry.Net)
	}
	if balance := f.ledgerRepo.Balance("driver-1"); math.Abs(balance.PendingBalance-entry.Net) > 0.005 {
		t.Errorf("expected balance %v, got %v", entry.Net, balance.PendingBalance)
	}

	driver := f.driverRepo.GetDriver("driver-1")
	if !driver.IsAvailable {
		t.Error("driver should be back in the pool")
	}
	if driver.TotalTrips != 1 {
		t.Errorf("expected 1 completed trip, got %d", driver.TotalTrips)
	}
}

func TestCompleteTrip_EstimatorFailureFallsBackToHaversine(t *testing.T) {
	f := newLifecycleFixture()
	f.inProgressTrip("trip-1", time.Hour)
	_ = f.ledgerRepo.CreateAccount(context.Background(), "driver-1")
	f.estimator.Err = maps.ErrUnavailable

	trip, err := f.svc.CompleteTrip(context.Background(), service.CompleteTripRequest{
		TripID:      "trip-1",
		DriverID:    "driver-1",
		EndLocation: chennai,
	})
	if err != nil {
		t.Fatalf("completion must survive estimator failure: %v", err)
	}
	if trip.Details.DistanceSource != domain.DistanceSourceFallback {
		t.Errorf("expected FALLBACK marker, got %s", trip.Details.DistanceSource)
	}
	want := maps.HaversineKm(bangalore.Lat, bangalore.Lng, chennai.Lat, chennai.Lng)
	if math.Abs(trip.Details.ActualDistanceKm-want) > 0.01 {
		t.Errorf("expected haversine distance %v, got %v", want, trip.Details.ActualDistanceKm)
	}
}

func TestCompleteTrip_EstimatorFailurePrefersReportedDistance(t *testing.T) {
	f := newLifecycleFixture()
	f.inProgressTrip("trip-1", time.Hour)
	_ = f.ledgerRepo.CreateAccount(context.Background(), "driver-1")
	f.estimator.Err = maps.ErrUnavailable

	trip, err := f.svc.CompleteTrip(context.Background(), service.CompleteTripRequest{
		TripID:             "trip-1",
		DriverID:           "driver-1",
		EndLocation:        chennai,
		ReportedDistanceKm: 301.5,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if trip.Details.DistanceSource != domain.DistanceSourceReported {
		t.Errorf("expected REPORTED marker, got %s", trip.Details.DistanceSource)
	}
	if trip.Details.ActualDistanceKm != 301.5 {
		t.Errorf("expected reported distance, got %v", trip.Details.ActualDistanceKm)
	}
}

func TestCompleteTrip_DrainsRouteTrace(t *testing.T) {
	f := newLifecycleFixture()
	f.inProgressTrip("trip-1", time.Hour)
	_ = f.ledgerRepo.CreateAccount(context.Background(), "driver-1")

	for i := 0; i < 3; i++ {
		_ = f.traceStore.Append(context.Background(), "trip-1", domain.RoutePoint{
			Lat: 12.98 + float64(i)/100, Lng: 77.60, At: time.Now(),
		})
	}

	trip, err := f.svc.CompleteTrip(context.Background(), service.CompleteTripRequest{
		TripID:      "trip-1",
		DriverID:    "driver-1",
		EndLocation: chennai,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if len(trip.Details.Route) != 3 {
		t.Errorf("expected 3 route points folded in, got %d", len(trip.Details.Route))
	}
	if f.traceStore.Count("trip-1") != 0 {
		t.Error("trace buffer should be drained")
	}
}

func TestCompleteTrip_LedgerFailureLeavesCleanRetry(t *testing.T) {
	f := newLifecycleFixture()
	f.inProgressTrip("trip-1", 2*time.Hour)
	_ = f.ledgerRepo.CreateAccount(context.Background(), "driver-1")

	f.ledgerRepo.CreditTripError = errors.New("ledger store down")
	req := service.CompleteTripRequest{
		TripID:      "trip-1",
		DriverID:    "driver-1",
		EndLocation: chennai,
	}
	if _, err := f.svc.CompleteTrip(context.Background(), req); err == nil {
		t.Fatal("expected completion to fail when the credit cannot be posted")
	}

	// Nothing half-done: the trip is still in progress and no money moved.
	if got := f.tripRepo.GetTrip("trip-1").Status; got != domain.TripStatusInProgress {
		t.Fatalf("trip should remain IN_PROGRESS after failed credit, got %s", got)
	}
	if got := len(f.ledgerRepo.Entries()); got != 0 {
		t.Fatalf("expected no ledger entries, got %d", got)
	}

	// Once the store recovers a plain retry settles the trip.
	f.ledgerRepo.CreditTripError = nil
	trip, err := f.svc.CompleteTrip(context.Background(), req)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if trip.Status != domain.TripStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", trip.Status)
	}
	entries := f.ledgerRepo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 credit, got %d entries", len(entries))
	}
	if balance := f.ledgerRepo.Balance("driver-1"); math.Abs(balance.PendingBalance-entries[0].Net) > 0.005 {
		t.Errorf("expected balance %v, got %v", entries[0].Net, balance.PendingBalance)
	}
	if got := f.driverRepo.GetDriver("driver-1").TotalTrips; got != 1 {
		t.Errorf("expected 1 completed trip on the driver, got %d", got)
	}
}

func TestCompleteTrip_RetryAfterLostStatusWriteCreditsOnce(t *testing.T) {
	f := newLifecycleFixture()
	f.inProgressTrip("trip-1", 2*time.Hour)
	_ = f.ledgerRepo.CreateAccount(context.Background(), "driver-1")

	// The credit lands but the attempt dies before the trip flips.
	f.tripRepo.UpdateError = errors.New("trip store down")
	req := service.CompleteTripRequest{
		TripID:      "trip-1",
		DriverID:    "driver-1",
		EndLocation: chennai,
	}
	if _, err := f.svc.CompleteTrip(context.Background(), req); err == nil {
		t.Fatal("expected completion to fail when the status write fails")
	}
	if got := len(f.ledgerRepo.Entries()); got != 1 {
		t.Fatalf("expected the credit to be on file, got %d entries", got)
	}
	if got := f.tripRepo.GetTrip("trip-1").Status; got != domain.TripStatusInProgress {
		t.Fatalf("trip should remain IN_PROGRESS, got %s", got)
	}

	// The retry finds the credit already posted, reuses it, and finishes
	// the flip without paying twice.
	f.tripRepo.UpdateError = nil
	trip, err := f.svc.CompleteTrip(context.Background(), req)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if trip.Status != domain.TripStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", trip.Status)
	}
	entries := f.ledgerRepo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 credit after retry, got %d entries", len(entries))
	}
	if balance := f.ledgerRepo.Balance("driver-1"); math.Abs(balance.PendingBalance-entries[0].Net) > 0.005 {
		t.Errorf("expected balance %v, got %v", entries[0].Net, balance.PendingBalance)
	}
	if got := f.driverRepo.GetDriver("driver-1").TotalTrips; got != 1 {
		t.Errorf("expected 1 completed trip on the driver, got %d", got)
	}
}

func TestTripUpdate_StaleWriterCannotOverwriteCompletion(t *testing.T) {
	f := newLifecycleFixture()
	f.inProgressTrip("trip-1", 2*time.Hour)
	_ = f.ledgerRepo.CreateAccount(context.Background(), "driver-1")

	// A cancellation path reads the trip while it is still in progress.
	stale, err := f.tripRepo.GetByID(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if _, err := f.svc.CompleteTrip(context.Background(), service.CompleteTripRequest{
		TripID:      "trip-1",
		DriverID:    "driver-1",
		EndLocation: chennai,
	}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// The stale writer must lose: it observed IN_PROGRESS and the row has
	// moved on.
	stale.Status = domain.TripStatusCancelled
	stale.CancelledAt = time.Now()
	err = f.tripRepo.Update(context.Background(), stale, domain.TripStatusInProgress)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for the stale write, got %v", err)
	}
	if got := f.tripRepo.GetTrip("trip-1").Status; got != domain.TripStatusCompleted {
		t.Errorf("completed trip must stay COMPLETED, got %s", got)
	}
	if got := len(f.ledgerRepo.Entries()); got != 1 {
		t.Errorf("expected the single credit to survive, got %d entries", got)
	}
}

func TestCancelTrip_ChargeTiers(t *testing.T) {
	cases := []struct {
		name         string
		timeToPickup time.Duration
		wantPct      float64
	}{
		{"within 6h costs 25 percent", 3 * time.Hour, 0.25},
		{"within 24h costs 10 percent", 12 * time.Hour, 0.10},
		{"far out is free", 48 * time.Hour, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLifecycleFixture()
			trip := pendingTrip("trip-1", domain.VehicleClassSedan)
			trip.PickupAt = time.Now().Add(tc.timeToPickup)
			trip.Pricing = domain.Pricing{BasePrice: 2000, TotalAmount: 2000}
			f.tripRepo.AddTrip(trip)

			cancelled, err := f.svc.CancelTrip(context.Background(), "trip-1",
				domain.Actor{ID: "customer-1", Role: domain.RoleCustomer}, "change of plans")
			if err != nil {
				t.Fatalf("cancel failed: %v", err)
			}
			want := math.Round(2000*tc.wantPct*100) / 100
			if cancelled.CancellationCharge != want {
				t.Errorf("expected charge %v, got %v", want, cancelled.CancellationCharge)
			}
			if cancelled.Status != domain.TripStatusCancelled {
				t.Errorf("expected CANCELLED, got %s", cancelled.Status)
			}
		})
	}
}

func TestCancelTrip_ActorGuards(t *testing.T) {
	f := newLifecycleFixture()
	trip := pendingTrip("trip-1", domain.VehicleClassSedan)
	f.tripRepo.AddTrip(trip)

	_, err := f.svc.CancelTrip(context.Background(), "trip-1",
		domain.Actor{ID: "customer-2", Role: domain.RoleCustomer}, "")
	if !errors.Is(err, service.ErrNotTripOwner) {
		t.Fatalf("expected ErrNotTripOwner, got %v", err)
	}

	_, err = f.svc.CancelTrip(context.Background(), "trip-1",
		domain.Actor{ID: "driver-9", Role: domain.RoleDriver}, "")
	if !errors.Is(err, service.ErrNotAssignedDriver) {
		t.Fatalf("expected ErrNotAssignedDriver, got %v", err)
	}
}

func TestCancelTrip_DriverCancelFreesDriverWithoutCharge(t *testing.T) {
	f := newLifecycleFixture()
	f.inProgressTrip("trip-1", time.Hour)

	trip, err := f.svc.CancelTrip(context.Background(), "trip-1",
		domain.Actor{ID: "driver-1", Role: domain.RoleDriver}, "vehicle breakdown")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if trip.CancellationCharge != 0 {
		t.Errorf("driver cancellation must not charge the customer, got %v", trip.CancellationCharge)
	}
	if !f.driverRepo.GetDriver("driver-1").IsAvailable {
		t.Error("driver should be freed")
	}
}

func TestCancelTrip_TerminalStateConflicts(t *testing.T) {
	f := newLifecycleFixture()
	trip := pendingTrip("trip-1", domain.VehicleClassSedan)
	trip.Status = domain.TripStatusCompleted
	f.tripRepo.AddTrip(trip)

	_, err := f.svc.CancelTrip(context.Background(), "trip-1",
		domain.Actor{ID: "admin", Role: domain.RoleAdmin}, "")
	if !errors.Is(err, service.ErrTripFinal) {
		t.Fatalf("expected ErrTripFinal, got %v", err)
	}
}

func TestRefundTrip_OnlyFromSettledStates(t *testing.T) {
	f := newLifecycleFixture()

	completed := pendingTrip("trip-done", domain.VehicleClassSedan)
	completed.Status = domain.TripStatusCompleted
	f.tripRepo.AddTrip(completed)

	pending := pendingTrip("trip-open", domain.VehicleClassSedan)
	f.tripRepo.AddTrip(pending)

	trip, err := f.svc.RefundTrip(context.Background(), "trip-done")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if trip.Status != domain.TripStatusRefunded {
		t.Errorf("expected REFUNDED, got %s", trip.Status)
	}

	// Refunded is itself terminal.
	if _, err := f.svc.RefundTrip(context.Background(), "trip-done"); !errors.Is(err, service.ErrTripFinal) {
		t.Fatalf("expected ErrTripFinal on double refund, got %v", err)
	}
	if _, err := f.svc.RefundTrip(context.Background(), "trip-open"); err == nil {
		t.Fatal("expected refund of a pending trip to fail")
	}
}
