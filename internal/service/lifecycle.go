package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tripbroker/internal/domain"
	"tripbroker/internal/maps"
	"tripbroker/internal/redis"
	"tripbroker/internal/repository"
)

// createRetries bounds trip ID regeneration on a duplicate key.
const createRetries = 3

// TripService handles the booking lifecycle: quote, create, start, complete,
// cancel. Dispatch (accept/reject) lives in DispatchService.
type TripService struct {
	tripRepo     repository.TripRepository
	driverRepo   repository.DriverRepository
	customerRepo repository.CustomerRepository
	ledger       *EarningsLedger
	estimator    maps.DistanceEstimator
	traceStore   redis.TraceStoreInterface
	fare         *FareEngine
	notifier     Notifier
	log          *logrus.Logger
}

// NewTripService creates a new TripService.
func NewTripService(
	tripRepo repository.TripRepository,
	driverRepo repository.DriverRepository,
	customerRepo repository.CustomerRepository,
	ledger *EarningsLedger,
	estimator maps.DistanceEstimator,
	traceStore redis.TraceStoreInterface,
	fare *FareEngine,
	notifier Notifier,
	log *logrus.Logger,
) *TripService {
	return &TripService{
		tripRepo:     tripRepo,
		driverRepo:   driverRepo,
		customerRepo: customerRepo,
		ledger:       ledger,
		estimator:    estimator,
		traceStore:   traceStore,
		fare:         fare,
		notifier:     notifier,
		log:          log,
	}
}

// QuoteRequest contains the parameters for pricing a prospective trip.
type QuoteRequest struct {
	Pickup       domain.GeoPoint
	Dropoff      domain.GeoPoint
	Stops        []domain.GeoPoint
	VehicleClass domain.VehicleClass
	ServiceType  domain.ServiceType
	PickupAt     time.Time
}

// Quote is a non-binding price estimate. Degraded is set when the distance
// came from the local fallback rather than the mapping provider.
type Quote struct {
	DistanceKm  float64       `json:"distanceKm"`
	DurationMin float64       `json:"durationMin"`
	Fare        FareBreakdown `json:"fare"`
	Degraded    bool          `json:"degraded"`
}

// GetQuote prices a prospective trip without creating anything.
func (s *TripService) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := validateRoute(req.Pickup, req.Dropoff, req.Stops); err != nil {
		return nil, err
	}
	if !validVehicleClass(req.VehicleClass) {
		return nil, ErrInvalidVehicleClass
	}
	if !validServiceType(req.ServiceType) {
		return nil, ErrInvalidServiceType
	}

	est, degraded := s.estimateRoute(ctx, req.Pickup, req.Dropoff, req.Stops)
	distance, duration := est.DistanceKm, est.DurationMin
	if req.ServiceType == domain.ServiceTypeRoundTrip {
		distance *= 2
		duration *= 2
	}

	fare, err := s.fare.Compute(FareInput{
		DistanceKm:   distance,
		DurationMin:  duration,
		VehicleClass: req.VehicleClass,
		ServiceType:  req.ServiceType,
		PickupAt:     req.PickupAt,
	})
	if err != nil {
		return nil, err
	}

	return &Quote{
		DistanceKm:  distance,
		DurationMin: duration,
		Fare:        *fare,
		Degraded:    degraded,
	}, nil
}

// CreateTripRequest contains the parameters for booking a trip.
type CreateTripRequest struct {
	CustomerID   string
	Pickup       domain.GeoPoint
	Dropoff      domain.GeoPoint
	Stops        []domain.GeoPoint
	VehicleClass domain.VehicleClass
	ServiceType  domain.ServiceType
	PickupAt     time.Time
	ReturnAt     time.Time
}

// CreateTrip books a trip. The fare committed here is binding until the trip
// completes, when it is recomputed from measured distance and duration.
func (s *TripService) CreateTrip(ctx context.Context, req CreateTripRequest) (*domain.Trip, error) {
	if req.CustomerID == "" {
		return nil, ErrInvalidCustomerID
	}
	if err := validateRoute(req.Pickup, req.Dropoff, req.Stops); err != nil {
		return nil, err
	}
	if !validVehicleClass(req.VehicleClass) {
		return nil, ErrInvalidVehicleClass
	}
	if !validServiceType(req.ServiceType) {
		return nil, ErrInvalidServiceType
	}
	if req.PickupAt.IsZero() {
		return nil, ErrInvalidPickupTime
	}
	if req.ServiceType == domain.ServiceTypeRoundTrip && !req.ReturnAt.After(req.PickupAt) {
		return nil, ErrInvalidReturnTime
	}
	if _, err := s.customerRepo.GetByID(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	est, degraded := s.estimateRoute(ctx, req.Pickup, req.Dropoff, req.Stops)
	distance, duration := est.DistanceKm, est.DurationMin
	if req.ServiceType == domain.ServiceTypeRoundTrip {
		distance *= 2
		duration *= 2
	}
	if degraded {
		s.log.WithField("customer_id", req.CustomerID).
			Warn("distance provider unavailable, booked with fallback estimate")
	}

	fare, err := s.fare.Compute(FareInput{
		DistanceKm:   distance,
		DurationMin:  duration,
		VehicleClass: req.VehicleClass,
		ServiceType:  req.ServiceType,
		PickupAt:     req.PickupAt,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	trip := &domain.Trip{
		CustomerID:           req.CustomerID,
		VehicleClass:         req.VehicleClass,
		ServiceType:          req.ServiceType,
		Pickup:               req.Pickup,
		Dropoff:              req.Dropoff,
		Stops:                req.Stops,
		PickupAt:             req.PickupAt,
		ReturnAt:             req.ReturnAt,
		EstimatedDistanceKm:  distance,
		EstimatedDurationMin: duration,
		Pricing:              fare.Pricing(),
		Status:               domain.TripStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	for attempt := 0; ; attempt++ {
		trip.ID = generateTripID(now)
		err = s.tripRepo.Create(ctx, trip)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateID) || attempt >= createRetries {
			return nil, err
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyTripBooked(ctx, trip)
	}
	s.log.WithFields(logrus.Fields{
		"trip_id":     trip.ID,
		"customer_id": trip.CustomerID,
		"total_fare":  trip.Pricing.TotalAmount,
	}).Info("trip created")
	return trip, nil
}

// GetTrip retrieves a trip by ID.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.tripRepo.GetByID(ctx, tripID)
}

// ListTrips retrieves recent trips, newest first.
func (s *TripService) ListTrips(ctx context.Context, limit int) ([]*domain.Trip, error) {
	return s.tripRepo.List(ctx, normalizeLimit(limit))
}

// ListCustomerTrips retrieves a customer's trips, newest first.
func (s *TripService) ListCustomerTrips(ctx context.Context, customerID string, limit int) ([]*domain.Trip, error) {
	if customerID == "" {
		return nil, ErrInvalidCustomerID
	}
	return s.tripRepo.ListByCustomer(ctx, customerID, normalizeLimit(limit))
}

// StartTripRequest contains the parameters for starting a confirmed trip.
type StartTripRequest struct {
	TripID        string
	DriverID      string
	StartLocation domain.GeoPoint
	OdometerStart float64
}

// StartTrip moves a Confirmed trip to InProgress. Only the assigned driver
// can start it.
func (s *TripService) StartTrip(ctx context.Context, req StartTripRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID != req.DriverID {
		return nil, ErrNotAssignedDriver
	}
	if !trip.Status.CanTransitionTo(domain.TripStatusInProgress) {
		return nil, statusConflict(trip.Status, ErrTripNotConfirmed)
	}

	now := time.Now()
	trip.Status = domain.TripStatusInProgress
	trip.Details = &domain.TripDetails{
		StartTime:     now,
		StartLocation: req.StartLocation,
		OdometerStart: req.OdometerStart,
	}
	trip.UpdatedAt = now
	if err := s.tripRepo.Update(ctx, trip, domain.TripStatusConfirmed); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.transitionConflict(ctx, trip.ID, ErrTripNotConfirmed)
		}
		return nil, err
	}

	if s.traceStore != nil && validCoordinates(req.StartLocation) {
		_ = s.traceStore.Append(ctx, trip.ID, domain.RoutePoint{
			Lat: req.StartLocation.Lat,
			Lng: req.StartLocation.Lng,
			At:  now,
		})
	}
	if s.notifier != nil {
		s.notifier.NotifyTripStarted(ctx, trip)
	}
	s.log.WithFields(logrus.Fields{
		"trip_id":   trip.ID,
		"driver_id": req.DriverID,
	}).Info("trip started")
	return trip, nil
}

// CompleteTripRequest contains the parameters for completing a trip.
// ReportedDistanceKm is the driver's own figure; it is only used when the
// mapping provider cannot remeasure the journey.
type CompleteTripRequest struct {
	TripID             string
	DriverID           string
	EndLocation        domain.GeoPoint
	OdometerEnd        float64
	ReportedDistanceKm float64
}

// CompleteTrip finishes an InProgress trip: the distance is remeasured, the
// fare is recomputed from actuals, the driver's net earning is posted to the
// ledger, and the driver is released back to the pool. The credit is posted
// before the status flip and is unique per trip, so whichever half a failed
// attempt got through, a retry heals the other: a credited-but-still-running
// trip finishes the flip, and a duplicate posting can never pay twice.
func (s *TripService) CompleteTrip(ctx context.Context, req CompleteTripRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if req.ReportedDistanceKm < 0 {
		return nil, ErrInvalidDistance
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID != req.DriverID {
		return nil, ErrNotAssignedDriver
	}
	if trip.Status != domain.TripStatusInProgress || trip.Details == nil {
		return nil, statusConflict(trip.Status, ErrTripNotInProgress)
	}

	now := time.Now()
	details := trip.Details
	details.EndTime = now
	details.EndLocation = req.EndLocation
	details.OdometerEnd = req.OdometerEnd
	details.ActualDurationMin = now.Sub(details.StartTime).Minutes()
	details.ActualDistanceKm, details.DistanceSource = s.measureDistance(ctx, trip, req)

	if s.traceStore != nil {
		if route, err := s.traceStore.Drain(ctx, trip.ID); err == nil {
			details.Route = route
		}
	}

	fare, err := s.fare.Compute(FareInput{
		DistanceKm:   details.ActualDistanceKm,
		DurationMin:  details.ActualDurationMin,
		VehicleClass: trip.VehicleClass,
		ServiceType:  trip.ServiceType,
		PickupAt:     trip.PickupAt,
	})
	if err != nil {
		return nil, err
	}
	trip.Pricing = fare.Pricing()

	net, err := s.ledger.PostTripCredit(ctx, trip.DriverID, trip.ID, trip.Pricing.TotalAmount, now)
	if err != nil {
		if !errors.Is(err, repository.ErrDuplicateID) {
			return nil, err
		}
		// The credit landed on an attempt that died before the status
		// flip. Reuse it and finish the flip.
		credit, lookupErr := s.ledger.TripCredit(ctx, trip.ID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		net = credit.Net
	}

	trip.Status = domain.TripStatusCompleted
	trip.UpdatedAt = now
	if err := s.tripRepo.Update(ctx, trip, domain.TripStatusInProgress); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// The trip left InProgress while we were settling, most
			// likely a concurrent cancellation. The credit stays on
			// file for reconciliation.
			s.log.WithFields(logrus.Fields{
				"trip_id":   trip.ID,
				"driver_id": trip.DriverID,
			}).Error("trip credit posted but completion lost the status race")
			return nil, s.transitionConflict(ctx, trip.ID, ErrTripNotInProgress)
		}
		return nil, err
	}

	if net > 0 {
		if err := s.driverRepo.RecordCompletedTrip(ctx, trip.DriverID, net); err != nil {
			s.log.WithError(err).WithField("driver_id", trip.DriverID).
				Error("failed to record completed trip on driver")
		}
	}
	if err := s.driverRepo.MarkAvailable(ctx, trip.DriverID); err != nil {
		s.log.WithError(err).WithField("driver_id", trip.DriverID).
			Error("failed to release driver after completion")
	}
	if s.notifier != nil {
		s.notifier.NotifyTripCompleted(ctx, trip)
	}

	s.log.WithFields(logrus.Fields{
		"trip_id":         trip.ID,
		"driver_id":       trip.DriverID,
		"distance_km":     details.ActualDistanceKm,
		"distance_source": details.DistanceSource,
		"total_fare":      trip.Pricing.TotalAmount,
	}).Info("trip completed")
	return trip, nil
}

// measureDistance reconciles the trip's final distance. The provider's
// measurement wins whenever it is available; otherwise the driver's reported
// figure, and as a last resort the local fallback over the booked route.
func (s *TripService) measureDistance(ctx context.Context, trip *domain.Trip, req CompleteTripRequest) (float64, domain.DistanceSource) {
	origin, dest := trip.Details.StartLocation, req.EndLocation
	if !validCoordinates(origin) || !validCoordinates(dest) {
		origin, dest = trip.Pickup, trip.Dropoff
	}
	if est, err := s.estimator.Estimate(ctx, origin, dest); err == nil {
		d := est.DistanceKm
		if trip.ServiceType == domain.ServiceTypeRoundTrip {
			d *= 2
		}
		return d, domain.DistanceSourceProvider
	}
	if req.ReportedDistanceKm > 0 {
		return req.ReportedDistanceKm, domain.DistanceSourceReported
	}
	d := maps.FallbackEstimate(origin, dest).DistanceKm
	if trip.ServiceType == domain.ServiceTypeRoundTrip {
		d *= 2
	}
	return d, domain.DistanceSourceFallback
}

// CancelTrip cancels a trip on behalf of the given actor. Customers may
// only cancel their own trips, drivers only trips assigned to them, admins
// any trip. The cancellation charge depends on how close to pickup the
// cancellation lands and is zero when a driver or admin cancels.
func (s *TripService) CancelTrip(ctx context.Context, tripID string, actor domain.Actor, reason string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case domain.RoleCustomer:
		if trip.CustomerID != actor.ID {
			return nil, ErrNotTripOwner
		}
	case domain.RoleDriver:
		if trip.DriverID != actor.ID {
			return nil, ErrNotAssignedDriver
		}
	case domain.RoleAdmin:
	default:
		return nil, ErrNotTripOwner
	}

	if !trip.Status.CanTransitionTo(domain.TripStatusCancelled) {
		return nil, statusConflict(trip.Status, ErrTripFinal)
	}

	now := time.Now()
	prev := trip.Status
	trip.Status = domain.TripStatusCancelled
	trip.CancelledAt = now
	trip.CancelledBy = actor.ID
	trip.CancelReason = reason
	if actor.Role == domain.RoleCustomer {
		trip.CancellationCharge = s.fare.CancellationCharge(trip.PickupAt, now, trip.Pricing.TotalAmount)
	}
	trip.UpdatedAt = now

	if err := s.tripRepo.Update(ctx, trip, prev); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.transitionConflict(ctx, trip.ID, ErrTripFinal)
		}
		return nil, err
	}

	if trip.DriverID != "" {
		if err := s.driverRepo.MarkAvailable(ctx, trip.DriverID); err != nil {
			s.log.WithError(err).WithField("driver_id", trip.DriverID).
				Error("failed to release driver after cancellation")
		}
	}
	if s.traceStore != nil {
		_, _ = s.traceStore.Drain(ctx, trip.ID)
	}
	if s.notifier != nil {
		s.notifier.NotifyTripCancelled(ctx, trip, actor.ID)
	}

	s.log.WithFields(logrus.Fields{
		"trip_id":      trip.ID,
		"cancelled_by": actor.ID,
		"charge":       trip.CancellationCharge,
	}).Info("trip cancelled")
	return trip, nil
}

// RefundTrip marks a settled trip Refunded after the payment has been
// reversed out of band. Admin only; enforced at the transport layer.
func (s *TripService) RefundTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.Status.CanTransitionTo(domain.TripStatusRefunded) {
		return nil, statusConflict(trip.Status, ErrTripFinal)
	}

	prev := trip.Status
	trip.Status = domain.TripStatusRefunded
	trip.UpdatedAt = time.Now()
	if err := s.tripRepo.Update(ctx, trip, prev); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.transitionConflict(ctx, trip.ID, ErrTripFinal)
		}
		return nil, err
	}

	s.log.WithField("trip_id", trip.ID).Info("trip refunded")
	return trip, nil
}

// estimateRoute measures the booked route leg by leg, summing through any
// intermediate stops. The second return is true when the provider was
// unavailable for any leg and a local estimate filled in.
func (s *TripService) estimateRoute(ctx context.Context, pickup, dropoff domain.GeoPoint, stops []domain.GeoPoint) (*maps.Estimate, bool) {
	legs := make([]domain.GeoPoint, 0, len(stops)+2)
	legs = append(legs, pickup)
	legs = append(legs, stops...)
	legs = append(legs, dropoff)

	total := &maps.Estimate{}
	degraded := false
	for i := 0; i+1 < len(legs); i++ {
		est, err := s.estimator.Estimate(ctx, legs[i], legs[i+1])
		if err != nil {
			est = maps.FallbackEstimate(legs[i], legs[i+1])
			degraded = true
		}
		total.DistanceKm += est.DistanceKm
		total.DurationMin += est.DurationMin
	}
	return total, degraded
}

// transitionConflict classifies a lost status race by re-reading the trip.
// If the re-read fails the caller's fallback stands.
func (s *TripService) transitionConflict(ctx context.Context, tripID string, fallback error) error {
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return fallback
	}
	return statusConflict(trip.Status, fallback)
}

// statusConflict maps a trip status to the error a guard should surface.
func statusConflict(status domain.TripStatus, fallback error) error {
	if status.IsTerminal() || status == domain.TripStatusRefunded {
		return ErrTripFinal
	}
	return fallback
}

func generateTripID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TRP-%s-%s", now.UTC().Format("20060102"), suffix)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

func validateRoute(pickup, dropoff domain.GeoPoint, stops []domain.GeoPoint) error {
	if !validCoordinates(pickup) {
		return ErrInvalidPickupLocation
	}
	if !validCoordinates(dropoff) {
		return ErrInvalidDropoffLocation
	}
	for _, stop := range stops {
		if !validCoordinates(stop) {
			return ErrInvalidStopLocation
		}
	}
	return nil
}

func validCoordinates(p domain.GeoPoint) bool {
	return isValidLatitude(p.Lat) && isValidLongitude(p.Lng) && (p.Lat != 0 || p.Lng != 0)
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

func validVehicleClass(c domain.VehicleClass) bool {
	switch c {
	case domain.VehicleClassHatchback, domain.VehicleClassSedan,
		domain.VehicleClassSUV, domain.VehicleClassTempo:
		return true
	}
	return false
}

func validServiceType(t domain.ServiceType) bool {
	switch t {
	case domain.ServiceTypeOneWay, domain.ServiceTypeRoundTrip, domain.ServiceTypeMultiCity:
		return true
	}
	return false
}
