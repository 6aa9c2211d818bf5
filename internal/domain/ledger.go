package domain

import "time"

// LedgerEntryType classifies an entry in a driver's settlement ledger.
type LedgerEntryType string

const (
	// LedgerEntryTripCredit is the net earning posted when a trip completes.
	LedgerEntryTripCredit LedgerEntryType = "TRIP_CREDIT"
	// LedgerEntryWithdrawalDebit reserves funds for a withdrawal request.
	LedgerEntryWithdrawalDebit LedgerEntryType = "WITHDRAWAL_DEBIT"
	// LedgerEntryWithdrawalReversal credits funds back after a failed payout.
	LedgerEntryWithdrawalReversal LedgerEntryType = "WITHDRAWAL_REVERSAL"
	// LedgerEntryAdjustment is a manual correction posted by an operator.
	LedgerEntryAdjustment LedgerEntryType = "ADJUSTMENT"
)

// LedgerEntry is one append-only row in a driver's settlement ledger.
// Gross/Commission/Net are populated for trip credits only; Amount carries
// the signed balance effect for every entry type.
type LedgerEntry struct {
	ID           string
	DriverID     string
	TripID       string // set for trip credits
	WithdrawalID string // set for withdrawal debits and reversals
	Type         LedgerEntryType
	Gross        float64
	Commission   float64
	Net          float64
	Amount       float64
	CreatedAt    time.Time
}

// WithdrawalStatus represents the state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "PENDING"
	WithdrawalStatusCompleted WithdrawalStatus = "COMPLETED"
	WithdrawalStatusFailed    WithdrawalStatus = "FAILED"
)

// WithdrawalRequest reserves part of a driver's pending balance for payout.
// The actual money movement is executed by an external settlement process;
// this record only tracks the reservation and its outcome.
type WithdrawalRequest struct {
	ID          string
	DriverID    string
	Amount      float64
	Status      WithdrawalStatus
	RequestedAt time.Time
	ProcessedAt time.Time
}

// Balance is the current settlement position of a driver.
// PendingBalance always equals the sum of trip net credits and reversals
// minus the sum of reserved withdrawals.
type Balance struct {
	DriverID        string
	PendingBalance  float64
	WithdrawnAmount float64
}

// EarningsPeriod selects the window of an earnings summary.
type EarningsPeriod string

const (
	EarningsPeriodToday EarningsPeriod = "today"
	EarningsPeriodWeek  EarningsPeriod = "week"
	EarningsPeriodMonth EarningsPeriod = "month"
	EarningsPeriodTotal EarningsPeriod = "total"
)

// EarningsSummary is a read-side fold over a driver's completed trips.
type EarningsSummary struct {
	DriverID   string
	Period     EarningsPeriod
	From       time.Time
	To         time.Time
	TripCount  int64
	Gross      float64
	Commission float64
	Net        float64
}
