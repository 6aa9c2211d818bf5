package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tripbroker/internal/domain"
	"tripbroker/internal/repository"
)

// EarningsLedger manages driver settlement: crediting completed trips,
// reserving and settling withdrawals, and summarizing earnings. Every
// balance change goes through an atomic repository operation, so the
// pending balance always equals credits plus reversals minus reservations.
type EarningsLedger struct {
	ledgerRepo repository.LedgerRepository
	driverRepo repository.DriverRepository
	fare       *FareEngine
	notifier   Notifier
	log        *logrus.Logger
}

// NewEarningsLedger creates a new EarningsLedger.
func NewEarningsLedger(
	ledgerRepo repository.LedgerRepository,
	driverRepo repository.DriverRepository,
	fare *FareEngine,
	notifier Notifier,
	log *logrus.Logger,
) *EarningsLedger {
	return &EarningsLedger{
		ledgerRepo: ledgerRepo,
		driverRepo: driverRepo,
		fare:       fare,
		notifier:   notifier,
		log:        log,
	}
}

// OpenAccount initializes a zero-balance ledger for a new driver.
func (s *EarningsLedger) OpenAccount(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	return s.ledgerRepo.CreateAccount(ctx, driverID)
}

// PostTripCredit splits a completed trip's gross fare into commission and
// net and credits the net to the driver. At most one credit can exist per
// trip; a duplicate posting returns repository.ErrDuplicateID with the
// ledger untouched. Returns the net amount credited.
func (s *EarningsLedger) PostTripCredit(ctx context.Context, driverID, tripID string, gross float64, at time.Time) (float64, error) {
	if driverID == "" {
		return 0, ErrInvalidDriverID
	}
	if tripID == "" {
		return 0, ErrInvalidTripID
	}
	if gross < 0 || math.IsNaN(gross) || math.IsInf(gross, 0) {
		return 0, ErrInvalidAmount
	}

	commission, net := s.fare.Commission(gross)
	entry := &domain.LedgerEntry{
		ID:         uuid.NewString(),
		DriverID:   driverID,
		TripID:     tripID,
		Type:       domain.LedgerEntryTripCredit,
		Gross:      gross,
		Commission: commission,
		Net:        net,
		Amount:     net,
		CreatedAt:  at,
	}
	if err := s.ledgerRepo.CreditTrip(ctx, entry); err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"driver_id":  driverID,
		"trip_id":    tripID,
		"gross":      gross,
		"commission": commission,
		"net":        net,
	}).Info("trip earnings credited")
	return net, nil
}

// TripCredit retrieves the credit on file for a trip, or
// repository.ErrNotFound when the trip was never credited.
func (s *EarningsLedger) TripCredit(ctx context.Context, tripID string) (*domain.LedgerEntry, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.ledgerRepo.GetTripCredit(ctx, tripID)
}

// RequestWithdrawal reserves part of the driver's pending balance for
// payout. The reservation debits the balance immediately; a request that
// exceeds the balance fails with InsufficientBalanceError and changes
// nothing.
func (s *EarningsLedger) RequestWithdrawal(ctx context.Context, driverID string, amount float64) (*domain.WithdrawalRequest, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, ErrInvalidAmount
	}

	req := &domain.WithdrawalRequest{
		ID:          uuid.NewString(),
		DriverID:    driverID,
		Amount:      round2(amount),
		Status:      domain.WithdrawalStatusPending,
		RequestedAt: time.Now(),
	}
	if err := s.ledgerRepo.ReserveWithdrawal(ctx, req); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			balance, balErr := s.ledgerRepo.GetBalance(ctx, driverID)
			if balErr != nil {
				return nil, balErr
			}
			return nil, &InsufficientBalanceError{
				Requested: req.Amount,
				Available: balance.PendingBalance,
			}
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"driver_id":     driverID,
		"withdrawal_id": req.ID,
		"amount":        req.Amount,
	}).Info("withdrawal reserved")
	return req, nil
}

// CompleteWithdrawal marks a pending withdrawal as paid out. The reserved
// amount moves to the cumulative withdrawn total.
func (s *EarningsLedger) CompleteWithdrawal(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	return s.settleWithdrawal(ctx, withdrawalID, s.ledgerRepo.CompleteWithdrawal)
}

// FailWithdrawal marks a pending withdrawal as failed and credits the
// reserved amount back to the driver's pending balance.
func (s *EarningsLedger) FailWithdrawal(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	return s.settleWithdrawal(ctx, withdrawalID, s.ledgerRepo.FailWithdrawal)
}

func (s *EarningsLedger) settleWithdrawal(
	ctx context.Context,
	withdrawalID string,
	settle func(ctx context.Context, id string, processedAt time.Time) error,
) (*domain.WithdrawalRequest, error) {
	if withdrawalID == "" {
		return nil, ErrInvalidAmount
	}
	if err := settle(ctx, withdrawalID, time.Now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrWithdrawalNotPending
		}
		return nil, err
	}
	req, err := s.ledgerRepo.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.NotifyWithdrawalProcessed(ctx, req)
	}
	s.log.WithFields(logrus.Fields{
		"withdrawal_id": req.ID,
		"driver_id":     req.DriverID,
		"status":        req.Status,
	}).Info("withdrawal settled")
	return req, nil
}

// GetBalance retrieves the driver's current settlement position.
func (s *EarningsLedger) GetBalance(ctx context.Context, driverID string) (*domain.Balance, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.ledgerRepo.GetBalance(ctx, driverID)
}

// ListWithdrawals retrieves the driver's withdrawal requests, newest first.
func (s *EarningsLedger) ListWithdrawals(ctx context.Context, driverID string) ([]*domain.WithdrawalRequest, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.ledgerRepo.ListWithdrawals(ctx, driverID)
}

// ListTransactions retrieves the driver's ledger entries, newest first.
func (s *EarningsLedger) ListTransactions(ctx context.Context, driverID string, limit int) ([]*domain.LedgerEntry, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.ledgerRepo.ListEntries(ctx, driverID, normalizeLimit(limit))
}

// Earnings summarizes the driver's completed-trip earnings for a calendar
// period. Entries are attributed to the moment the trip completed.
func (s *EarningsLedger) Earnings(ctx context.Context, driverID string, period domain.EarningsPeriod) (*domain.EarningsSummary, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	from, to, err := periodWindow(period, time.Now())
	if err != nil {
		return nil, err
	}
	summary, err := s.ledgerRepo.SummarizeEarnings(ctx, driverID, from, to)
	if err != nil {
		return nil, err
	}
	summary.Period = period
	summary.From = from
	summary.To = to
	return summary, nil
}

// periodWindow resolves a named period to a half-open [from, to) window.
// Calendar boundaries are in the server's local time zone; week starts on
// Monday.
func periodWindow(period domain.EarningsPeriod, now time.Time) (time.Time, time.Time, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case domain.EarningsPeriodToday:
		return startOfDay, startOfDay.AddDate(0, 0, 1), nil
	case domain.EarningsPeriodWeek:
		offset := int(now.Weekday()) - int(time.Monday)
		if offset < 0 {
			offset += 7
		}
		start := startOfDay.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case domain.EarningsPeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), nil
	case domain.EarningsPeriodTotal:
		return time.Time{}, startOfDay.AddDate(0, 0, 1), nil
	}
	return time.Time{}, time.Time{}, ErrInvalidPeriod
}
