package repository

import (
	"context"
	"time"

	"tripbroker/internal/domain"
)

// LedgerRepository defines the persistence operations for driver settlement
// ledgers. Balance changes only happen inside the atomic methods below; the
// pending balance is never written directly.
type LedgerRepository interface {
	// CreateAccount initializes a zero-balance ledger for a new driver.
	CreateAccount(ctx context.Context, driverID string) error

	// GetBalance retrieves the driver's current settlement position.
	GetBalance(ctx context.Context, driverID string) (*domain.Balance, error)

	// CreditTrip atomically appends a trip-credit entry and adds its net
	// amount to the pending balance. A second credit for the same trip
	// returns ErrDuplicateID and leaves the ledger untouched.
	CreditTrip(ctx context.Context, entry *domain.LedgerEntry) error

	// GetTripCredit retrieves the credit posted for a trip, or ErrNotFound
	// if the trip was never credited. A retried completion uses it to pick
	// up a credit that landed before the previous attempt died.
	GetTripCredit(ctx context.Context, tripID string) (*domain.LedgerEntry, error)

	// ReserveWithdrawal atomically creates a Pending withdrawal request,
	// subtracts its amount from the pending balance, and appends a debit
	// entry. Returns ErrConflict if the balance does not cover the amount.
	ReserveWithdrawal(ctx context.Context, req *domain.WithdrawalRequest) error

	// GetWithdrawal retrieves a withdrawal request by ID.
	GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error)

	// CompleteWithdrawal marks a Pending request Completed and adds its
	// amount to the cumulative withdrawn total. ErrConflict if not Pending.
	CompleteWithdrawal(ctx context.Context, id string, processedAt time.Time) error

	// FailWithdrawal marks a Pending request Failed, credits the amount
	// back to the pending balance, and appends a reversal entry.
	// ErrConflict if the request is not Pending.
	FailWithdrawal(ctx context.Context, id string, processedAt time.Time) error

	// ListWithdrawals retrieves a driver's withdrawal requests, newest first.
	ListWithdrawals(ctx context.Context, driverID string) ([]*domain.WithdrawalRequest, error)

	// ListEntries retrieves a driver's ledger entries, newest first.
	ListEntries(ctx context.Context, driverID string, limit int) ([]*domain.LedgerEntry, error)

	// SummarizeEarnings folds trip credits posted in [from, to) into an
	// earnings summary. Credits are posted at trip completion, so the fold
	// window is over completion timestamps.
	SummarizeEarnings(ctx context.Context, driverID string, from, to time.Time) (*domain.EarningsSummary, error)
}
