package config

import "tripbroker/internal/domain"

// DistanceTier prices one band of a vehicle class's rate table. UptoKm is the
// exclusive upper bound of the band; 0 means open-ended.
type DistanceTier struct {
	UptoKm float64
	PerKm  float64
}

// VehicleRate is the rate-table entry for one vehicle class.
type VehicleRate struct {
	BaseFare    float64
	PerHourRate float64
	Tiers       []DistanceTier
}

// CancellationTier maps a time-to-pickup window to a charge percentage.
// Tiers are evaluated in order; the first matching window applies.
type CancellationTier struct {
	WithinHours float64
	ChargePct   float64
}

// RatesConfig is the single canonical pricing and settlement policy. It is
// loaded once at startup and injected into the fare engine and the ledger so
// the same constants are never duplicated at call sites.
type RatesConfig struct {
	CommissionRate float64
	TaxRate        float64

	// Outstation allowance: added to the base fare once the trip distance
	// exceeds AllowanceThresholdKm.
	DriverAllowance      float64
	AllowanceThresholdKm float64

	RoundTripDiscount  float64 // applied to distance charges, < 1
	MultiCitySurcharge float64 // applied to distance charges, > 1

	NightStartHour  int // inclusive, 24h clock
	NightEndHour    int // exclusive
	NightMultiplier float64

	PeakHours      []int // weekday hours
	PeakMultiplier float64

	VehicleRates map[domain.VehicleClass]VehicleRate

	CancellationTiers []CancellationTier
}

// LoadRates returns the rate tables with scalar policy values overridable
// from the environment.
func LoadRates() RatesConfig {
	return RatesConfig{
		CommissionRate: getFloatEnv("COMMISSION_RATE", 0.15),
		TaxRate:        getFloatEnv("TAX_RATE", 0.18),

		DriverAllowance:      getFloatEnv("DRIVER_ALLOWANCE", 500),
		AllowanceThresholdKm: getFloatEnv("ALLOWANCE_THRESHOLD_KM", 50),

		RoundTripDiscount:  getFloatEnv("ROUND_TRIP_DISCOUNT", 0.95),
		MultiCitySurcharge: getFloatEnv("MULTI_CITY_SURCHARGE", 1.10),

		NightStartHour:  getIntEnv("NIGHT_START_HOUR", 22),
		NightEndHour:    getIntEnv("NIGHT_END_HOUR", 6),
		NightMultiplier: getFloatEnv("NIGHT_MULTIPLIER", 1.2),

		PeakHours:      []int{8, 9, 18, 19},
		PeakMultiplier: getFloatEnv("PEAK_MULTIPLIER", 1.1),

		VehicleRates: map[domain.VehicleClass]VehicleRate{
			domain.VehicleClassHatchback: {
				BaseFare:    400,
				PerHourRate: 120,
				Tiers: []DistanceTier{
					{UptoKm: 100, PerKm: 11},
					{UptoKm: 300, PerKm: 10},
					{UptoKm: 0, PerKm: 9},
				},
			},
			domain.VehicleClassSedan: {
				BaseFare:    500,
				PerHourRate: 150,
				Tiers: []DistanceTier{
					{UptoKm: 100, PerKm: 13},
					{UptoKm: 300, PerKm: 12},
					{UptoKm: 0, PerKm: 10},
				},
			},
			domain.VehicleClassSUV: {
				BaseFare:    700,
				PerHourRate: 200,
				Tiers: []DistanceTier{
					{UptoKm: 100, PerKm: 17},
					{UptoKm: 300, PerKm: 16},
					{UptoKm: 0, PerKm: 14},
				},
			},
			domain.VehicleClassTempo: {
				BaseFare:    1200,
				PerHourRate: 300,
				Tiers: []DistanceTier{
					{UptoKm: 100, PerKm: 24},
					{UptoKm: 300, PerKm: 22},
					{UptoKm: 0, PerKm: 20},
				},
			},
		},

		CancellationTiers: []CancellationTier{
			{WithinHours: 6, ChargePct: 0.25},
			{WithinHours: 24, ChargePct: 0.10},
		},
	}
}
