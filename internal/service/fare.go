package service

import (
	"fmt"
	"math"
	"time"

	"tripbroker/internal/config"
	"tripbroker/internal/domain"
)

// FareInput is everything the fare engine needs to price a trip. The same
// input always produces the same breakdown.
type FareInput struct {
	DistanceKm   float64
	DurationMin  float64
	VehicleClass domain.VehicleClass
	ServiceType  domain.ServiceType
	PickupAt     time.Time
}

// FareBreakdown is the itemized result of a fare computation. Every component
// is rounded to two decimals and TotalFare equals their exact sum.
type FareBreakdown struct {
	BaseFare        float64 `json:"baseFare"`
	DistanceCharges float64 `json:"distanceCharges"`
	TimeCharges     float64 `json:"timeCharges"`
	Taxes           float64 `json:"taxes"`
	TotalFare       float64 `json:"totalFare"`
}

// Pricing converts the breakdown into the trip's stored money structure.
func (b FareBreakdown) Pricing() domain.Pricing {
	return domain.Pricing{
		BasePrice: b.BaseFare,
		ExtraCharges: []domain.PriceComponent{
			{Label: "Distance charges", Amount: b.DistanceCharges},
			{Label: "Time charges", Amount: b.TimeCharges},
		},
		Taxes: []domain.PriceComponent{
			{Label: "GST", Amount: b.Taxes},
		},
		TotalAmount: b.TotalFare,
	}
}

// FareEngine prices trips from the loaded rate tables. It holds no mutable
// state and is safe for concurrent use.
type FareEngine struct {
	rates config.RatesConfig
}

func NewFareEngine(rates config.RatesConfig) *FareEngine {
	return &FareEngine{rates: rates}
}

// Compute prices a trip. A missing rate-table entry for the requested class
// returns ErrFareConfig; that is an operator error, not a caller error.
func (e *FareEngine) Compute(in FareInput) (*FareBreakdown, error) {
	if in.DistanceKm < 0 || math.IsNaN(in.DistanceKm) || math.IsInf(in.DistanceKm, 0) {
		return nil, ErrInvalidDistance
	}
	if in.DurationMin < 0 || math.IsNaN(in.DurationMin) || math.IsInf(in.DurationMin, 0) {
		return nil, ErrInvalidDuration
	}

	rate, ok := e.rates.VehicleRates[in.VehicleClass]
	if !ok {
		return nil, fmt.Errorf("%w: no entry for class %s", ErrFareConfig, in.VehicleClass)
	}
	if len(rate.Tiers) == 0 {
		return nil, fmt.Errorf("%w: class %s has no distance tiers", ErrFareConfig, in.VehicleClass)
	}

	// The whole distance is billed at the rate of the tier it falls in.
	perKm := rate.Tiers[len(rate.Tiers)-1].PerKm
	for _, t := range rate.Tiers {
		if t.UptoKm > 0 && in.DistanceKm <= t.UptoKm {
			perKm = t.PerKm
			break
		}
	}
	distanceCharges := in.DistanceKm * perKm

	// Driving time is billed in whole hours, rounded up.
	var timeCharges float64
	if in.DurationMin > 0 {
		timeCharges = math.Ceil(in.DurationMin/60) * rate.PerHourRate
	}

	baseFare := rate.BaseFare
	if in.DistanceKm > e.rates.AllowanceThresholdKm {
		baseFare += e.rates.DriverAllowance
	}

	switch in.ServiceType {
	case domain.ServiceTypeRoundTrip:
		distanceCharges *= e.rates.RoundTripDiscount
	case domain.ServiceTypeMultiCity:
		distanceCharges *= e.rates.MultiCitySurcharge
	}

	// Night and peak multipliers compose and apply to the base fare and
	// distance charges only, never to time charges or taxes.
	mult := 1.0
	if !in.PickupAt.IsZero() {
		if e.isNight(in.PickupAt) {
			mult *= e.rates.NightMultiplier
		}
		if e.isPeak(in.PickupAt) {
			mult *= e.rates.PeakMultiplier
		}
	}
	baseFare = round2(baseFare * mult)
	distanceCharges = round2(distanceCharges * mult)
	timeCharges = round2(timeCharges)

	subtotal := baseFare + distanceCharges + timeCharges
	taxes := round2(subtotal * e.rates.TaxRate)

	return &FareBreakdown{
		BaseFare:        baseFare,
		DistanceCharges: distanceCharges,
		TimeCharges:     timeCharges,
		Taxes:           taxes,
		TotalFare:       round2(subtotal + taxes),
	}, nil
}

// CancellationCharge returns the fee for cancelling a trip at the given
// moment, as a fraction of the committed fare. Cancellation after pickup time
// is charged at the tightest tier.
func (e *FareEngine) CancellationCharge(pickupAt, at time.Time, totalFare float64) float64 {
	hoursToPickup := pickupAt.Sub(at).Hours()
	for _, t := range e.rates.CancellationTiers {
		if hoursToPickup <= t.WithinHours {
			return round2(totalFare * t.ChargePct)
		}
	}
	return 0
}

// Commission splits a gross trip amount into the platform's commission and
// the driver's net.
func (e *FareEngine) Commission(gross float64) (commission, net float64) {
	commission = round2(gross * e.rates.CommissionRate)
	return commission, round2(gross - commission)
}

func (e *FareEngine) isNight(t time.Time) bool {
	h := t.Hour()
	start, end := e.rates.NightStartHour, e.rates.NightEndHour
	if start <= end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

func (e *FareEngine) isPeak(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	for _, h := range e.rates.PeakHours {
		if t.Hour() == h {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
