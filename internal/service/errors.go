package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCustomerID is returned when customer ID is empty.
	ErrInvalidCustomerID = errors.New("invalid customer id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are invalid.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidStopLocation is returned when an intermediate stop is invalid.
	ErrInvalidStopLocation = errors.New("invalid intermediate stop")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidVehicleClass is returned for an unsupported vehicle class.
	ErrInvalidVehicleClass = errors.New("invalid vehicle class")

	// ErrInvalidServiceType is returned for an unsupported service type.
	ErrInvalidServiceType = errors.New("invalid service type")

	// ErrInvalidPickupTime is returned when the requested pickup time is missing.
	ErrInvalidPickupTime = errors.New("invalid pickup time")

	// ErrInvalidReturnTime is returned when a round trip's return precedes pickup.
	ErrInvalidReturnTime = errors.New("invalid return time")

	// ErrInvalidAmount is returned for a non-positive or non-finite amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDistance is returned for a negative or non-finite distance.
	ErrInvalidDistance = errors.New("invalid distance")

	// ErrInvalidDuration is returned for a negative or non-finite duration.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidPeriod is returned for an unsupported earnings period.
	ErrInvalidPeriod = errors.New("invalid earnings period")

	// ErrTripAlreadyAssigned is returned when an accept loses the race:
	// another driver already holds the trip.
	ErrTripAlreadyAssigned = errors.New("trip already assigned to another driver")

	// ErrAlreadyRejected is returned when a driver tries to accept a trip
	// they previously rejected.
	ErrAlreadyRejected = errors.New("driver already rejected this trip")

	// ErrDriverBusy is returned when the driver already has an active trip.
	ErrDriverBusy = errors.New("driver already has an active trip")

	// ErrTripNotPending is returned when an offer operation targets a trip
	// that left the Pending state.
	ErrTripNotPending = errors.New("trip is no longer pending")

	// ErrTripNotConfirmed is returned when starting a trip that is not Confirmed.
	ErrTripNotConfirmed = errors.New("trip is not confirmed")

	// ErrTripNotInProgress is returned when completing a trip that is not InProgress.
	ErrTripNotInProgress = errors.New("trip is not in progress")

	// ErrTripFinal is returned when a transition is attempted out of a
	// terminal state.
	ErrTripFinal = errors.New("trip is in a terminal state")

	// ErrNotAssignedDriver is returned when the caller is not the driver
	// assigned to the trip.
	ErrNotAssignedDriver = errors.New("driver not assigned to this trip")

	// ErrNotTripOwner is returned when a customer operates on a trip that
	// is not theirs.
	ErrNotTripOwner = errors.New("trip does not belong to this customer")

	// ErrWithdrawalNotPending is returned when settling a withdrawal that
	// was already processed.
	ErrWithdrawalNotPending = errors.New("withdrawal request is not pending")

	// ErrInsufficientBalance is the match target for InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrFareConfig is returned when the rate table has no entry for a
	// requested class. It signals operator misconfiguration and is never
	// retried.
	ErrFareConfig = errors.New("fare rate table misconfigured")
)

// InsufficientBalanceError rejects a withdrawal that exceeds the pending
// balance, carrying the shortfall for the caller.
type InsufficientBalanceError struct {
	Requested float64
	Available float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %.2f, available %.2f (short %.2f)",
		e.Requested, e.Available, e.Requested-e.Available)
}

// Is makes errors.Is(err, ErrInsufficientBalance) match.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
