package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tripbroker/internal/domain"
	"tripbroker/internal/redis"
	"tripbroker/internal/repository"
)

// DriverService handles driver accounts and live location reporting.
type DriverService struct {
	driverRepo    repository.DriverRepository
	tripRepo      repository.TripRepository
	ledger        *EarningsLedger
	locationStore redis.LocationStoreInterface
	traceStore    redis.TraceStoreInterface
	log           *logrus.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	driverRepo repository.DriverRepository,
	tripRepo repository.TripRepository,
	ledger *EarningsLedger,
	locationStore redis.LocationStoreInterface,
	traceStore redis.TraceStoreInterface,
	log *logrus.Logger,
) *DriverService {
	return &DriverService{
		driverRepo:    driverRepo,
		tripRepo:      tripRepo,
		ledger:        ledger,
		locationStore: locationStore,
		traceStore:    traceStore,
		log:           log,
	}
}

// RegisterDriverRequest contains the parameters for registering a driver.
type RegisterDriverRequest struct {
	Name         string
	Phone        string
	VehicleClass domain.VehicleClass
}

// Register creates a driver account with an empty settlement ledger. New
// drivers start available.
func (s *DriverService) Register(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	if req.Name == "" || req.Phone == "" {
		return nil, ErrInvalidDriverID
	}
	if !validVehicleClass(req.VehicleClass) {
		return nil, ErrInvalidVehicleClass
	}

	driver := &domain.Driver{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Phone:        req.Phone,
		VehicleClass: req.VehicleClass,
		IsAvailable:  true,
		CreatedAt:    time.Now(),
	}
	if err := s.driverRepo.Create(ctx, driver); err != nil {
		return nil, err
	}
	if err := s.ledger.OpenAccount(ctx, driver.ID); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"driver_id": driver.ID,
		"class":     driver.VehicleClass,
	}).Info("driver registered")
	return driver, nil
}

// GetDriver retrieves a driver by ID.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.driverRepo.GetByID(ctx, driverID)
}

// ListDrivers retrieves all drivers.
func (s *DriverService) ListDrivers(ctx context.Context) ([]*domain.Driver, error) {
	return s.driverRepo.GetAll(ctx)
}

// UpdateLocationRequest contains the parameters for a location ping.
type UpdateLocationRequest struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// UpdateLocation records a driver's position. While the driver is on an
// in-progress trip the ping is also appended to that trip's route trace,
// which is folded into the trip record at completion.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}
	if !isValidLatitude(req.Lat) || !isValidLongitude(req.Lng) {
		return ErrInvalidLocation
	}

	if err := s.locationStore.UpdateLocation(ctx, req.DriverID, req.Lat, req.Lng); err != nil {
		return err
	}

	driver, err := s.driverRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		return err
	}
	if driver.CurrentTripID == "" || s.traceStore == nil {
		return nil
	}
	trip, err := s.tripRepo.GetByID(ctx, driver.CurrentTripID)
	if err != nil || trip.Status != domain.TripStatusInProgress {
		return nil
	}
	// Trace append is best effort; a lost point only thins the route.
	_ = s.traceStore.Append(ctx, trip.ID, domain.RoutePoint{
		Lat: req.Lat,
		Lng: req.Lng,
		At:  time.Now(),
	})
	return nil
}

// defaultNearbyRadiusKm is the search radius when the caller gives none.
const defaultNearbyRadiusKm = 10

// NearbyDriver is a driver joined with their last reported position.
type NearbyDriver struct {
	Driver *domain.Driver
	Lat    float64
	Lng    float64
}

// NearbyDrivers returns drivers near a point, nearest first. Drivers in the
// geo index whose account has since vanished are skipped.
func (s *DriverService) NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyDriver, error) {
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return nil, ErrInvalidLocation
	}
	if radiusKm <= 0 {
		radiusKm = defaultNearbyRadiusKm
	}

	locations, err := s.locationStore.FindNearbyDrivers(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}

	result := make([]NearbyDriver, 0, len(locations))
	for _, loc := range locations {
		driver, err := s.driverRepo.GetByID(ctx, loc.DriverID)
		if err != nil {
			continue
		}
		result = append(result, NearbyDriver{Driver: driver, Lat: loc.Lat, Lng: loc.Lng})
	}
	return result, nil
}
