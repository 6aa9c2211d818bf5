package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"tripbroker/internal/domain"
	"tripbroker/internal/redis"
	"tripbroker/internal/repository"
)

const (
	tripLockTTL   = 10 * time.Second
	driverLockTTL = 10 * time.Second
)

// DispatchService runs the offer protocol: drivers browse the pool of
// pending trips for their vehicle class, accept at most one at a time, or
// reject individual offers for good.
type DispatchService struct {
	tripRepo      repository.TripRepository
	driverRepo    repository.DriverRepository
	lockStore     redis.LockStoreInterface
	locationStore redis.LocationStoreInterface
	notifier      Notifier
	log           *logrus.Logger
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	tripRepo repository.TripRepository,
	driverRepo repository.DriverRepository,
	lockStore redis.LockStoreInterface,
	locationStore redis.LocationStoreInterface,
	notifier Notifier,
	log *logrus.Logger,
) *DispatchService {
	return &DispatchService{
		tripRepo:      tripRepo,
		driverRepo:    driverRepo,
		lockStore:     lockStore,
		locationStore: locationStore,
		notifier:      notifier,
		log:           log,
	}
}

// ListOffers returns the trips currently offerable to the driver. The list
// is recomputed on every call: a trip accepted or rejected a moment ago is
// already gone.
func (s *DispatchService) ListOffers(ctx context.Context, driverID string) ([]*domain.Trip, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return s.tripRepo.ListOffers(ctx, driverID, driver.VehicleClass)
}

// AcceptOffer assigns a pending trip to the driver. Exactly one driver can
// win a trip: the assignment is a conditional write, and a lost race comes
// back as ErrTripAlreadyAssigned. A driver who already holds an active trip
// gets ErrDriverBusy; a driver who previously rejected this trip gets
// ErrAlreadyRejected.
func (s *DispatchService) AcceptOffer(ctx context.Context, tripID, driverID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !driver.IsAvailable {
		return nil, ErrDriverBusy
	}

	// Short locks to serialize accepts for the same trip and the same
	// driver across instances. Correctness does not depend on them; the
	// conditional writes below are the arbiters.
	if s.lockStore != nil {
		acquired, err := s.lockStore.AcquireTripLock(ctx, tripID, tripLockTTL)
		if err == nil && acquired {
			defer func() { _ = s.lockStore.ReleaseTripLock(ctx, tripID) }()
		}
		acquired, err = s.lockStore.AcquireDriverLock(ctx, driverID, driverLockTTL)
		if err == nil && acquired {
			defer func() { _ = s.lockStore.ReleaseDriverLock(ctx, driverID) }()
		}
	}

	rejected, err := s.tripRepo.HasRejection(ctx, tripID, driverID)
	if err != nil {
		return nil, err
	}
	if rejected {
		return nil, ErrAlreadyRejected
	}

	// Reserve the driver first so a trip is never confirmed against a busy
	// driver. If the assignment then fails the reservation is rolled back.
	if err := s.driverRepo.MarkBusy(ctx, driverID, tripID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDriverBusy
		}
		return nil, err
	}

	acceptedAt := time.Now()
	if err := s.tripRepo.AssignDriver(ctx, tripID, driverID, acceptedAt); err != nil {
		if rbErr := s.driverRepo.MarkAvailable(ctx, driverID); rbErr != nil {
			s.log.WithError(rbErr).WithField("driver_id", driverID).
				Error("failed to release driver after lost assignment")
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.classifyAssignConflict(ctx, tripID, driverID)
		}
		return nil, err
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	// An on-trip driver should not turn up in proximity searches.
	if s.locationStore != nil {
		if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
			s.log.WithError(err).WithField("driver_id", driverID).
				Warn("failed to drop driver from location index")
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyDriverAssigned(ctx, trip, driver)
	}

	s.log.WithFields(logrus.Fields{
		"trip_id":   tripID,
		"driver_id": driverID,
	}).Info("trip offer accepted")
	return trip, nil
}

// classifyAssignConflict turns a lost conditional assignment into the most
// specific error the caller can act on.
func (s *DispatchService) classifyAssignConflict(ctx context.Context, tripID, driverID string) error {
	if rejected, err := s.tripRepo.HasRejection(ctx, tripID, driverID); err == nil && rejected {
		return ErrAlreadyRejected
	}
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return ErrTripAlreadyAssigned
	}
	if trip.Status != domain.TripStatusPending {
		if trip.Status == domain.TripStatusConfirmed {
			return ErrTripAlreadyAssigned
		}
		return ErrTripNotPending
	}
	return ErrTripAlreadyAssigned
}

// RejectOffer records that the driver declined the trip. The trip stays
// Pending and remains offerable to everyone else; this driver never sees it
// again, even after a later reassignment. Repeating the call is a no-op.
func (s *DispatchService) RejectOffer(ctx context.Context, tripID, driverID, reason string) error {
	if tripID == "" {
		return ErrInvalidTripID
	}
	if driverID == "" {
		return ErrInvalidDriverID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return err
	}
	if trip.Status != domain.TripStatusPending {
		return ErrTripNotPending
	}

	if err := s.tripRepo.AddRejection(ctx, &domain.Rejection{
		TripID:     tripID,
		DriverID:   driverID,
		Reason:     reason,
		RejectedAt: time.Now(),
	}); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"trip_id":   tripID,
		"driver_id": driverID,
	}).Info("trip offer rejected")
	return nil
}

// Rejections returns the rejection history of a trip, oldest first.
func (s *DispatchService) Rejections(ctx context.Context, tripID string) ([]domain.Rejection, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if _, err := s.tripRepo.GetByID(ctx, tripID); err != nil {
		return nil, err
	}
	return s.tripRepo.ListRejections(ctx, tripID)
}
