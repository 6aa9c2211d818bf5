package domain

import (
	"math"
	"time"
)

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusPending    TripStatus = "PENDING"
	TripStatusConfirmed  TripStatus = "CONFIRMED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
	TripStatusRefunded   TripStatus = "REFUNDED"
)

// allowedTransitions is the full transition table of the trip state machine.
// Pending is the only re-enterable state: a rejected offer leaves the trip
// Pending, it never moves the status anywhere else.
var allowedTransitions = map[TripStatus][]TripStatus{
	TripStatusPending:    {TripStatusConfirmed, TripStatusCancelled},
	TripStatusConfirmed:  {TripStatusInProgress, TripStatusCancelled},
	TripStatusInProgress: {TripStatusCompleted, TripStatusCancelled},
	TripStatusCompleted:  {TripStatusRefunded},
	TripStatusCancelled:  {TripStatusRefunded},
	TripStatusRefunded:   {},
}

// CanTransitionTo reports whether the state machine permits moving from s to next.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s permits no further transition except Refunded.
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled || s == TripStatusRefunded
}

// ServiceType represents the kind of journey booked.
type ServiceType string

const (
	ServiceTypeOneWay    ServiceType = "ONE_WAY"
	ServiceTypeRoundTrip ServiceType = "ROUND_TRIP"
	ServiceTypeMultiCity ServiceType = "MULTI_CITY"
)

// VehicleClass represents the category of vehicle requested.
type VehicleClass string

const (
	VehicleClassHatchback VehicleClass = "HATCHBACK"
	VehicleClassSedan     VehicleClass = "SEDAN"
	VehicleClassSUV       VehicleClass = "SUV"
	VehicleClassTempo     VehicleClass = "TEMPO"
)

// GeoPoint is a coordinate pair with a free-text address.
type GeoPoint struct {
	Lat     float64
	Lng     float64
	Address string
}

// PriceComponent is a single labelled line in a fare breakdown.
type PriceComponent struct {
	Label  string
	Amount float64
}

// Pricing is the money breakdown attached to a trip. TotalAmount must equal
// BasePrice plus extras minus discounts plus taxes at the moment it is set.
type Pricing struct {
	BasePrice    float64
	ExtraCharges []PriceComponent
	Discounts    []PriceComponent
	Taxes        []PriceComponent
	TotalAmount  float64
}

// ComponentSum returns BasePrice + extras - discounts + taxes.
func (p Pricing) ComponentSum() float64 {
	sum := p.BasePrice
	for _, c := range p.ExtraCharges {
		sum += c.Amount
	}
	for _, c := range p.Discounts {
		sum -= c.Amount
	}
	for _, c := range p.Taxes {
		sum += c.Amount
	}
	return sum
}

// Consistent reports whether TotalAmount matches the sum of its components
// within half a minor currency unit.
func (p Pricing) Consistent() bool {
	return math.Abs(p.TotalAmount-p.ComponentSum()) < 0.005
}

// Rejection records that a driver declined an offer for a trip. A driver with
// a rejection on file is never offered the same trip again.
type Rejection struct {
	TripID     string
	DriverID   string
	Reason     string
	RejectedAt time.Time
}

// DistanceSource marks how a trip's actual distance was obtained.
type DistanceSource string

const (
	// DistanceSourceProvider means the external mapping provider measured it.
	DistanceSourceProvider DistanceSource = "PROVIDER"
	// DistanceSourceFallback means the provider was unavailable and a local
	// haversine estimate was used; the figure is degraded.
	DistanceSourceFallback DistanceSource = "FALLBACK"
	// DistanceSourceReported means the caller-supplied figure was retained.
	DistanceSourceReported DistanceSource = "REPORTED"
)

// RoutePoint is a timestamped coordinate in a trip's route trace.
type RoutePoint struct {
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	At  time.Time `json:"at"`
}

// TripDetails holds execution data that only exists once a trip has started.
type TripDetails struct {
	StartTime         time.Time
	EndTime           time.Time
	StartLocation     GeoPoint
	EndLocation       GeoPoint
	ActualDistanceKm  float64
	ActualDurationMin float64
	DistanceSource    DistanceSource
	OdometerStart     float64
	OdometerEnd       float64
	Route             []RoutePoint
}

// Trip is the booking aggregate. It is created Pending by a customer, mutated
// by dispatch and lifecycle operations, and retained forever once terminal.
type Trip struct {
	ID           string
	CustomerID   string
	DriverID     string // empty until a driver accepts
	VehicleClass VehicleClass
	ServiceType  ServiceType

	Pickup  GeoPoint
	Dropoff GeoPoint
	Stops   []GeoPoint

	PickupAt time.Time
	ReturnAt time.Time // set only for round trips

	EstimatedDistanceKm  float64
	EstimatedDurationMin float64
	Pricing              Pricing

	Status     TripStatus
	AcceptedAt time.Time

	CancelledAt        time.Time
	CancelledBy        string
	CancelReason       string
	CancellationCharge float64

	// Details is nil until the trip reaches InProgress.
	Details *TripDetails

	CreatedAt time.Time
	UpdatedAt time.Time
}
