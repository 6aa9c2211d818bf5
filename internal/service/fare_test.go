package service

import (
	"errors"
	"math"
	"testing"
	"time"

	"tripbroker/internal/config"
	"tripbroker/internal/domain"
)

// Wednesday 11:00, outside the night window and the peak hours.
var quietPickup = time.Date(2026, time.March, 11, 11, 0, 0, 0, time.UTC)

func TestCompute_OutstationSedanBreakdown(t *testing.T) {
	engine := NewFareEngine(config.LoadRates())

	fare, err := engine.Compute(FareInput{
		DistanceKm:   120,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     quietPickup,
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	// 120km falls in the 100-300km tier at 12/km; the 500 allowance kicks
	// in past 50km.
	if fare.DistanceCharges != 1440 {
		t.Errorf("expected distance charges 1440, got %v", fare.DistanceCharges)
	}
	if fare.BaseFare != 1000 {
		t.Errorf("expected base fare 1000, got %v", fare.BaseFare)
	}
	if fare.TimeCharges != 0 {
		t.Errorf("expected no time charges, got %v", fare.TimeCharges)
	}
	if fare.Taxes != 439.20 {
		t.Errorf("expected taxes 439.20, got %v", fare.Taxes)
	}
	if fare.TotalFare != 2879.20 {
		t.Errorf("expected total 2879.20, got %v", fare.TotalFare)
	}
	if !fare.Pricing().Consistent() {
		t.Error("breakdown does not sum to its total")
	}
}

func TestCompute_IsDeterministic(t *testing.T) {
	engine := NewFareEngine(config.LoadRates())
	in := FareInput{
		DistanceKm:   247.3,
		DurationMin:  312,
		VehicleClass: domain.VehicleClassSUV,
		ServiceType:  domain.ServiceTypeRoundTrip,
		PickupAt:     quietPickup,
	}

	first, err := engine.Compute(in)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := engine.Compute(in)
		if err != nil {
			t.Fatalf("compute failed: %v", err)
		}
		if *again != *first {
			t.Fatalf("non-deterministic breakdown: %+v vs %+v", again, first)
		}
	}
}

func TestCompute_TimeChargesBillWholeHours(t *testing.T) {
	engine := NewFareEngine(config.LoadRates())

	fare, err := engine.Compute(FareInput{
		DistanceKm:   30,
		DurationMin:  61, // rounds up to 2 hours
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     quietPickup,
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if fare.TimeCharges != 300 {
		t.Errorf("expected 2h at 150/h = 300, got %v", fare.TimeCharges)
	}
	// Under the allowance threshold there is no allowance.
	if fare.BaseFare != 500 {
		t.Errorf("expected bare base fare 500, got %v", fare.BaseFare)
	}
}

func TestCompute_RoundTripDiscountAndMultiCitySurchargeAreExclusive(t *testing.T) {
	engine := NewFareEngine(config.LoadRates())
	base := FareInput{
		DistanceKm:   120,
		VehicleClass: domain.VehicleClassSedan,
		PickupAt:     quietPickup,
	}

	oneWay := base
	oneWay.ServiceType = domain.ServiceTypeOneWay
	roundTrip := base
	roundTrip.ServiceType = domain.ServiceTypeRoundTrip
	multiCity := base
	multiCity.ServiceType = domain.ServiceTypeMultiCity

	fw, _ := engine.Compute(oneWay)
	fr, _ := engine.Compute(roundTrip)
	fm, _ := engine.Compute(multiCity)

	if want := round2(fw.DistanceCharges * 0.95); fr.DistanceCharges != want {
		t.Errorf("round trip: expected %v, got %v", want, fr.DistanceCharges)
	}
	if want := round2(fw.DistanceCharges * 1.10); fm.DistanceCharges != want {
		t.Errorf("multi city: expected %v, got %v", want, fm.DistanceCharges)
	}
	// The discount and the surcharge never stack: each differs from the
	// one-way figure by exactly one factor.
	if fr.DistanceCharges >= fw.DistanceCharges || fm.DistanceCharges <= fw.DistanceCharges {
		t.Error("discount and surcharge ordering broken")
	}
}

func TestCompute_NightAndPeakMultipliers(t *testing.T) {
	engine := NewFareEngine(config.LoadRates())

	day, _ := engine.Compute(FareInput{
		DistanceKm:   120,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     quietPickup,
	})

	// 23:00 is inside the 22-06 night window.
	night, _ := engine.Compute(FareInput{
		DistanceKm:   120,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     time.Date(2026, time.March, 11, 23, 0, 0, 0, time.UTC),
	})
	if want := round2(day.DistanceCharges * 1.2); night.DistanceCharges != want {
		t.Errorf("night distance: expected %v, got %v", want, night.DistanceCharges)
	}
	if want := round2(day.BaseFare * 1.2); night.BaseFare != want {
		t.Errorf("night base: expected %v, got %v", want, night.BaseFare)
	}

	// Monday 08:00 is a weekday peak hour.
	peak, _ := engine.Compute(FareInput{
		DistanceKm:   120,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     time.Date(2026, time.March, 9, 8, 0, 0, 0, time.UTC),
	})
	if want := round2(day.BaseFare * 1.1); peak.BaseFare != want {
		t.Errorf("peak base: expected %v, got %v", want, peak.BaseFare)
	}

	// Saturday 08:00 is not peak.
	weekend, _ := engine.Compute(FareInput{
		DistanceKm:   120,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     time.Date(2026, time.March, 14, 8, 0, 0, 0, time.UTC),
	})
	if weekend.BaseFare != day.BaseFare {
		t.Errorf("weekend should not carry peak pricing: %v vs %v", weekend.BaseFare, day.BaseFare)
	}
}

func TestCompute_NightAndPeakCompose(t *testing.T) {
	// Overlapping windows to force both multipliers at once.
	rates := config.LoadRates()
	rates.NightStartHour = 18
	rates.NightEndHour = 23
	engine := NewFareEngine(rates)

	quiet, _ := engine.Compute(FareInput{
		DistanceKm:   100,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     quietPickup,
	})
	// Monday 19:00: in the custom night window and a peak hour.
	both, _ := engine.Compute(FareInput{
		DistanceKm:   100,
		VehicleClass: domain.VehicleClassSedan,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     time.Date(2026, time.March, 9, 19, 0, 0, 0, time.UTC),
	})

	if want := round2(quiet.BaseFare * 1.2 * 1.1); both.BaseFare != want {
		t.Errorf("expected composed base %v, got %v", want, both.BaseFare)
	}
}

func TestCompute_MissingRateTableEntryIsFatal(t *testing.T) {
	rates := config.LoadRates()
	delete(rates.VehicleRates, domain.VehicleClassTempo)
	engine := NewFareEngine(rates)

	_, err := engine.Compute(FareInput{
		DistanceKm:   10,
		VehicleClass: domain.VehicleClassTempo,
		ServiceType:  domain.ServiceTypeOneWay,
		PickupAt:     quietPickup,
	})
	if !errors.Is(err, ErrFareConfig) {
		t.Fatalf("expected ErrFareConfig, got %v", err)
	}
}

func TestCompute_RejectsBadInputs(t *testing.T) {
	engine := NewFareEngine(config.LoadRates())

	for _, distance := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := engine.Compute(FareInput{
			DistanceKm:   distance,
			VehicleClass: domain.VehicleClassSedan,
			ServiceType:  domain.ServiceTypeOneWay,
			PickupAt:     quietPickup,
		})
		if !errors.Is(err, ErrInvalidDistance) {
			t.Errorf("distance %v: expected ErrInvalidDistance, got %v", distance, err)
		}
	}

	for _, duration := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := engine.Compute(FareInput{
			DistanceKm:   10,
			DurationMin:  duration,
			VehicleClass: domain.VehicleClassSedan,
			ServiceType:  domain.ServiceTypeOneWay,
			PickupAt:     quietPickup,
		})
		if !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("duration %v: expected ErrInvalidDuration, got %v", duration, err)
		}
	}
}

func TestCancellationCharge_TierBoundaries(t *testing.T) {
	engine := NewFareEngine(config.LoadRates())
	pickup := time.Date(2026, time.March, 11, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		at   time.Time
		want float64
	}{
		{"3h before pickup", pickup.Add(-3 * time.Hour), 500},
		{"exactly 6h before", pickup.Add(-6 * time.Hour), 500},
		{"12h before pickup", pickup.Add(-12 * time.Hour), 200},
		{"48h before pickup", pickup.Add(-48 * time.Hour), 0},
		{"after pickup time", pickup.Add(time.Hour), 500},
	}
	for _, tc := range cases {
		if got := engine.CancellationCharge(pickup, tc.at, 2000); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCommission_SplitsAndRounds(t *testing.T) {
	engine := NewFareEngine(config.LoadRates())

	commission, net := engine.Commission(2879.20)
	if commission != 431.88 {
		t.Errorf("expected commission 431.88, got %v", commission)
	}
	if net != 2447.32 {
		t.Errorf("expected net 2447.32, got %v", net)
	}
	if round2(commission+net) != 2879.20 {
		t.Errorf("split does not reassemble: %v + %v", commission, net)
	}
}
