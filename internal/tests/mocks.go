package tests

import (
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"tripbroker/internal/domain"
	"tripbroker/internal/maps"
	"tripbroker/internal/redis"
	"tripbroker/internal/repository"
)

// testLogger returns a silent logger for wiring services under test.
func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository. The
// conditional operations (AssignDriver, AddRejection) hold the same
// atomicity guarantees as the real store: all checks and the write happen
// under one lock.
type MockTripRepository struct {
	mu         sync.RWMutex
	trips      map[string]*domain.Trip
	rejections map[string]map[string]domain.Rejection // tripID -> driverID

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
	AssignCallCount int32

	// Error injection
	CreateError error
	UpdateError error
	AssignError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips:      make(map[string]*domain.Trip),
		rejections: make(map[string]map[string]domain.Rejection),
	}
}

// AddTrip seeds a trip.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[trip.ID]; ok {
		return repository.ErrDuplicateID
	}
	copy := *trip
	m.trips[trip.ID] = &copy
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) Update(ctx context.Context, trip *domain.Trip, expected domain.TripStatus) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.trips[trip.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expected {
		return repository.ErrConflict
	}
	copy := *trip
	m.trips[trip.ID] = &copy
	return nil
}

func (m *MockTripRepository) List(ctx context.Context, limit int) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		copy := *t
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockTripRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Trip
	for _, t := range m.trips {
		if t.CustomerID == customerID {
			copy := *t
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockTripRepository) ListOffers(ctx context.Context, driverID string, class domain.VehicleClass) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Trip
	for _, t := range m.trips {
		if t.Status != domain.TripStatusPending || t.DriverID != "" || t.VehicleClass != class {
			continue
		}
		if _, rejected := m.rejections[t.ID][driverID]; rejected {
			continue
		}
		copy := *t
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PickupAt.Before(result[j].PickupAt) })
	return result, nil
}

func (m *MockTripRepository) AssignDriver(ctx context.Context, tripID, driverID string, acceptedAt time.Time) error {
	atomic.AddInt32(&m.AssignCallCount, 1)
	if m.AssignError != nil {
		return m.AssignError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok {
		return repository.ErrNotFound
	}
	if trip.Status != domain.TripStatusPending || trip.DriverID != "" {
		return repository.ErrConflict
	}
	if _, rejected := m.rejections[tripID][driverID]; rejected {
		return repository.ErrConflict
	}
	trip.Status = domain.TripStatusConfirmed
	trip.DriverID = driverID
	trip.AcceptedAt = acceptedAt
	trip.UpdatedAt = acceptedAt
	return nil
}

func (m *MockTripRepository) AddRejection(ctx context.Context, rej *domain.Rejection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[rej.TripID]; !ok {
		return repository.ErrNotFound
	}
	if m.rejections[rej.TripID] == nil {
		m.rejections[rej.TripID] = make(map[string]domain.Rejection)
	}
	// First rejection wins; repeats are no-ops.
	if _, ok := m.rejections[rej.TripID][rej.DriverID]; !ok {
		m.rejections[rej.TripID][rej.DriverID] = *rej
	}
	return nil
}

func (m *MockTripRepository) HasRejection(ctx context.Context, tripID, driverID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rejections[tripID][driverID]
	return ok, nil
}

func (m *MockTripRepository) ListRejections(ctx context.Context, tripID string) ([]domain.Rejection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]domain.Rejection, 0, len(m.rejections[tripID]))
	for _, r := range m.rejections[tripID] {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RejectedAt.Before(result[j].RejectedAt) })
	return result, nil
}

// GetTrip returns the trip for test assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[id]
}

// CountRejections returns the number of rejections on a trip.
func (m *MockTripRepository) CountRejections(tripID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rejections[tripID])
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
// MarkBusy is a compare-and-swap like the real store: it fails with
// ErrConflict unless the driver is currently available.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	MarkBusyCallCount      int32
	MarkAvailableCallCount int32

	// Error injection
	CreateError   error
	MarkBusyError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver seeds a driver.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDriverRepository) MarkBusy(ctx context.Context, driverID, tripID string) error {
	atomic.AddInt32(&m.MarkBusyCallCount, 1)
	if m.MarkBusyError != nil {
		return m.MarkBusyError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[driverID]
	if !ok {
		return repository.ErrNotFound
	}
	if !driver.IsAvailable {
		return repository.ErrConflict
	}
	driver.IsAvailable = false
	driver.CurrentTripID = tripID
	return nil
}

func (m *MockDriverRepository) MarkAvailable(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.MarkAvailableCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[driverID]
	if !ok {
		return repository.ErrNotFound
	}
	driver.IsAvailable = true
	driver.CurrentTripID = ""
	return nil
}

func (m *MockDriverRepository) RecordCompletedTrip(ctx context.Context, driverID string, net float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[driverID]
	if !ok {
		return repository.ErrNotFound
	}
	driver.TotalTrips++
	driver.TotalEarnings += net
	return nil
}

// GetDriver returns the driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK LEDGER REPOSITORY
// ──────────────────────────────────────────────

// MockLedgerRepository is a mock implementation of LedgerRepository with the
// same atomicity guarantees as the real store: one credit per trip, a
// reservation never overdraws, and every balance change is paired with its
// entry under one lock.
type MockLedgerRepository struct {
	mu          sync.Mutex
	balances    map[string]*domain.Balance
	entries     []*domain.LedgerEntry
	withdrawals map[string]*domain.WithdrawalRequest
	creditTrips map[string]bool // tripID -> credited

	// Error injection
	CreditTripError error
}

// NewMockLedgerRepository creates a new mock ledger repository.
func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{
		balances:    make(map[string]*domain.Balance),
		withdrawals: make(map[string]*domain.WithdrawalRequest),
		creditTrips: make(map[string]bool),
	}
}

func (m *MockLedgerRepository) CreateAccount(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[driverID]; !ok {
		m.balances[driverID] = &domain.Balance{DriverID: driverID}
	}
	return nil
}

func (m *MockLedgerRepository) GetBalance(ctx context.Context, driverID string) (*domain.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[driverID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *balance
	return &copy, nil
}

func (m *MockLedgerRepository) CreditTrip(ctx context.Context, entry *domain.LedgerEntry) error {
	if m.CreditTripError != nil {
		return m.CreditTripError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creditTrips[entry.TripID] {
		return repository.ErrDuplicateID
	}
	balance, ok := m.balances[entry.DriverID]
	if !ok {
		return repository.ErrNotFound
	}
	m.creditTrips[entry.TripID] = true
	copy := *entry
	m.entries = append(m.entries, &copy)
	balance.PendingBalance += entry.Amount
	return nil
}

func (m *MockLedgerRepository) GetTripCredit(ctx context.Context, tripID string) (*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.TripID == tripID && e.Type == domain.LedgerEntryTripCredit {
			copy := *e
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockLedgerRepository) ReserveWithdrawal(ctx context.Context, req *domain.WithdrawalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[req.DriverID]
	if !ok {
		return repository.ErrNotFound
	}
	if balance.PendingBalance < req.Amount {
		return repository.ErrConflict
	}
	balance.PendingBalance -= req.Amount
	copy := *req
	m.withdrawals[req.ID] = &copy
	m.entries = append(m.entries, &domain.LedgerEntry{
		ID:           req.ID + ":debit",
		DriverID:     req.DriverID,
		WithdrawalID: req.ID,
		Type:         domain.LedgerEntryWithdrawalDebit,
		Amount:       -req.Amount,
		CreatedAt:    req.RequestedAt,
	})
	return nil
}

func (m *MockLedgerRepository) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.withdrawals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *req
	return &copy, nil
}

func (m *MockLedgerRepository) CompleteWithdrawal(ctx context.Context, id string, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.withdrawals[id]
	if !ok {
		return repository.ErrNotFound
	}
	if req.Status != domain.WithdrawalStatusPending {
		return repository.ErrConflict
	}
	req.Status = domain.WithdrawalStatusCompleted
	req.ProcessedAt = processedAt
	m.balances[req.DriverID].WithdrawnAmount += req.Amount
	return nil
}

func (m *MockLedgerRepository) FailWithdrawal(ctx context.Context, id string, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.withdrawals[id]
	if !ok {
		return repository.ErrNotFound
	}
	if req.Status != domain.WithdrawalStatusPending {
		return repository.ErrConflict
	}
	req.Status = domain.WithdrawalStatusFailed
	req.ProcessedAt = processedAt
	m.balances[req.DriverID].PendingBalance += req.Amount
	m.entries = append(m.entries, &domain.LedgerEntry{
		ID:           id + ":reversal",
		DriverID:     req.DriverID,
		WithdrawalID: id,
		Type:         domain.LedgerEntryWithdrawalReversal,
		Amount:       req.Amount,
		CreatedAt:    processedAt,
	})
	return nil
}

func (m *MockLedgerRepository) ListWithdrawals(ctx context.Context, driverID string) ([]*domain.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.WithdrawalRequest
	for _, w := range m.withdrawals {
		if w.DriverID == driverID {
			copy := *w
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestedAt.After(result[j].RequestedAt) })
	return result, nil
}

func (m *MockLedgerRepository) ListEntries(ctx context.Context, driverID string, limit int) ([]*domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.LedgerEntry
	for _, e := range m.entries {
		if e.DriverID == driverID {
			copy := *e
			result = append(result, &copy)
		}
	}
	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *MockLedgerRepository) SummarizeEarnings(ctx context.Context, driverID string, from, to time.Time) (*domain.EarningsSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := &domain.EarningsSummary{DriverID: driverID, From: from, To: to}
	for _, e := range m.entries {
		if e.DriverID != driverID || e.Type != domain.LedgerEntryTripCredit {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		summary.TripCount++
		summary.Gross += e.Gross
		summary.Commission += e.Commission
		summary.Net += e.Net
	}
	return summary, nil
}

// Entries returns all entries for test assertions.
func (m *MockLedgerRepository) Entries() []*domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.LedgerEntry, len(m.entries))
	copy(result, m.entries)
	return result
}

// Balance returns the raw balance for test assertions.
func (m *MockLedgerRepository) Balance(driverID string) *domain.Balance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[driverID]
}

// ──────────────────────────────────────────────
// MOCK CUSTOMER REPOSITORY
// ──────────────────────────────────────────────

// MockCustomerRepository is a mock implementation of CustomerRepository.
type MockCustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer
}

// NewMockCustomerRepository creates a new mock customer repository.
func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{
		customers: make(map[string]*domain.Customer),
	}
}

// AddCustomer seeds a customer.
func (m *MockCustomerRepository) AddCustomer(customer *domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[customer.ID] = customer
}

func (m *MockCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *customer
	m.customers[customer.ID] = &copy
	return nil
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	customer, ok := m.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *customer
	return &copy, nil
}

func (m *MockCustomerRepository) GetByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.customers {
		if c.Phone == phone {
			copy := *c
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]bool)}
}

func (m *MockLockStore) acquire(key string) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *MockLockStore) release(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func (m *MockLockStore) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error) {
	return m.acquire("trip:" + tripID)
}

func (m *MockLockStore) ReleaseTripLock(ctx context.Context, tripID string) error {
	return m.release("trip:" + tripID)
}

func (m *MockLockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	return m.acquire("driver:" + driverID)
}

func (m *MockLockStore) ReleaseDriverLock(ctx context.Context, driverID string) error {
	return m.release("driver:" + driverID)
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
// FindNearbyDrivers returns matches sorted nearest-first, like the geo index.
type MockLocationStore struct {
	mu        sync.Mutex
	locations map[string]redis.DriverLocation
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{locations: make(map[string]redis.DriverLocation)}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []redis.DriverLocation
	for _, loc := range m.locations {
		if maps.HaversineKm(lat, lng, loc.Lat, loc.Lng) <= radiusKm {
			result = append(result, loc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return maps.HaversineKm(lat, lng, result[i].Lat, result[i].Lng) <
			maps.HaversineKm(lat, lng, result[j].Lat, result[j].Lng)
	})
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// HasLocation reports whether the driver is still in the index.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locations[driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK TRACE STORE
// ──────────────────────────────────────────────

// MockTraceStore is a mock implementation of TraceStoreInterface.
type MockTraceStore struct {
	mu     sync.Mutex
	traces map[string][]domain.RoutePoint
}

// NewMockTraceStore creates a new mock trace store.
func NewMockTraceStore() *MockTraceStore {
	return &MockTraceStore{traces: make(map[string][]domain.RoutePoint)}
}

func (m *MockTraceStore) Append(ctx context.Context, tripID string, point domain.RoutePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traces[tripID] = append(m.traces[tripID], point)
	return nil
}

func (m *MockTraceStore) Drain(ctx context.Context, tripID string) ([]domain.RoutePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	route := m.traces[tripID]
	delete(m.traces, tripID)
	return route, nil
}

// Count returns the number of buffered points for a trip.
func (m *MockTraceStore) Count(tripID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.traces[tripID])
}

// ──────────────────────────────────────────────
// MOCK DISTANCE ESTIMATOR
// ──────────────────────────────────────────────

// MockEstimator is a mock implementation of DistanceEstimator.
type MockEstimator struct {
	DistanceKm  float64
	DurationMin float64

	// Error injection
	Err error

	CallCount int32
}

func (m *MockEstimator) Estimate(ctx context.Context, origin, destination domain.GeoPoint) (*maps.Estimate, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.Err != nil {
		return nil, m.Err
	}
	return &maps.Estimate{DistanceKm: m.DistanceKm, DurationMin: m.DurationMin}, nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier counts notification deliveries.
type MockNotifier struct {
	BookedCount     int32
	AssignedCount   int32
	StartedCount    int32
	CompletedCount  int32
	CancelledCount  int32
	WithdrawalCount int32
}

func (m *MockNotifier) NotifyTripBooked(ctx context.Context, trip *domain.Trip) {
	atomic.AddInt32(&m.BookedCount, 1)
}

func (m *MockNotifier) NotifyDriverAssigned(ctx context.Context, trip *domain.Trip, driver *domain.Driver) {
	atomic.AddInt32(&m.AssignedCount, 1)
}

func (m *MockNotifier) NotifyTripStarted(ctx context.Context, trip *domain.Trip) {
	atomic.AddInt32(&m.StartedCount, 1)
}

func (m *MockNotifier) NotifyTripCompleted(ctx context.Context, trip *domain.Trip) {
	atomic.AddInt32(&m.CompletedCount, 1)
}

func (m *MockNotifier) NotifyTripCancelled(ctx context.Context, trip *domain.Trip, cancelledBy string) {
	atomic.AddInt32(&m.CancelledCount, 1)
}

func (m *MockNotifier) NotifyWithdrawalProcessed(ctx context.Context, req *domain.WithdrawalRequest) {
	atomic.AddInt32(&m.WithdrawalCount, 1)
}
