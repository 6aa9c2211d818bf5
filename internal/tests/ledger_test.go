package tests

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"tripbroker/internal/config"
	"tripbroker/internal/domain"
	"tripbroker/internal/repository"
	"tripbroker/internal/service"
)

func newLedgerFixture() (*service.EarningsLedger, *MockLedgerRepository, *MockNotifier) {
	ledgerRepo := NewMockLedgerRepository()
	notifier := &MockNotifier{}
	fare := service.NewFareEngine(config.LoadRates())
	ledger := service.NewEarningsLedger(ledgerRepo, NewMockDriverRepository(), fare, notifier, testLogger())
	return ledger, ledgerRepo, notifier
}

func TestPostTripCredit_SplitsCommission(t *testing.T) {
	ctx := context.Background()
	ledger, ledgerRepo, _ := newLedgerFixture()
	_ = ledger.OpenAccount(ctx, "driver-1")

	net, err := ledger.PostTripCredit(ctx, "driver-1", "trip-1", 2879.20, time.Now())
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if want := 2447.32; math.Abs(net-want) > 0.005 {
		t.Errorf("expected net %v, got %v", want, net)
	}

	balance, _ := ledger.GetBalance(ctx, "driver-1")
	if math.Abs(balance.PendingBalance-net) > 0.005 {
		t.Errorf("expected balance %v, got %v", net, balance.PendingBalance)
	}

	entries := ledgerRepo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if want := 431.88; math.Abs(entries[0].Commission-want) > 0.005 {
		t.Errorf("expected commission %v, got %v", want, entries[0].Commission)
	}
}

func TestPostTripCredit_SecondCreditForSameTripRejected(t *testing.T) {
	ctx := context.Background()
	ledger, ledgerRepo, _ := newLedgerFixture()
	_ = ledger.OpenAccount(ctx, "driver-1")

	if _, err := ledger.PostTripCredit(ctx, "driver-1", "trip-1", 1000, time.Now()); err != nil {
		t.Fatalf("first credit failed: %v", err)
	}
	_, err := ledger.PostTripCredit(ctx, "driver-1", "trip-1", 1000, time.Now())
	if !errors.Is(err, repository.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	balance := ledgerRepo.Balance("driver-1")
	if want := 850.0; math.Abs(balance.PendingBalance-want) > 0.005 {
		t.Errorf("double credit must not change the balance: want %v, got %v", want, balance.PendingBalance)
	}
}

func TestRequestWithdrawal_InsufficientBalanceCarriesShortfall(t *testing.T) {
	ctx := context.Background()
	ledger, ledgerRepo, _ := newLedgerFixture()
	_ = ledger.OpenAccount(ctx, "driver-1")
	// 200 on the books.
	ledgerRepo.Balance("driver-1").PendingBalance = 200

	_, err := ledger.RequestWithdrawal(ctx, "driver-1", 500)
	if !errors.Is(err, service.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	var insufficient *service.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %T", err)
	}
	if insufficient.Requested != 500 || insufficient.Available != 200 {
		t.Errorf("expected requested=500 available=200, got %+v", insufficient)
	}

	// Balance unchanged, nothing reserved.
	if got := ledgerRepo.Balance("driver-1").PendingBalance; got != 200 {
		t.Errorf("balance must be unchanged, got %v", got)
	}
	withdrawals, _ := ledger.ListWithdrawals(ctx, "driver-1")
	if len(withdrawals) != 0 {
		t.Errorf("expected no withdrawal on file, got %d", len(withdrawals))
	}
}

func TestWithdrawal_CompleteMovesToWithdrawn(t *testing.T) {
	ctx := context.Background()
	ledger, ledgerRepo, notifier := newLedgerFixture()
	_ = ledger.OpenAccount(ctx, "driver-1")
	_, _ = ledger.PostTripCredit(ctx, "driver-1", "trip-1", 1000, time.Now())

	req, err := ledger.RequestWithdrawal(ctx, "driver-1", 500)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got := ledgerRepo.Balance("driver-1").PendingBalance; math.Abs(got-350) > 0.005 {
		t.Errorf("expected 350 pending after reservation, got %v", got)
	}

	done, err := ledger.CompleteWithdrawal(ctx, req.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.Status != domain.WithdrawalStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", done.Status)
	}

	balance := ledgerRepo.Balance("driver-1")
	if math.Abs(balance.PendingBalance-350) > 0.005 {
		t.Errorf("completion must not touch pending, got %v", balance.PendingBalance)
	}
	if math.Abs(balance.WithdrawnAmount-500) > 0.005 {
		t.Errorf("expected 500 withdrawn, got %v", balance.WithdrawnAmount)
	}
	if notifier.WithdrawalCount != 1 {
		t.Errorf("expected settlement notification, got %d", notifier.WithdrawalCount)
	}
}

func TestWithdrawal_FailureReversesReservation(t *testing.T) {
	ctx := context.Background()
	ledger, ledgerRepo, _ := newLedgerFixture()
	_ = ledger.OpenAccount(ctx, "driver-1")
	_, _ = ledger.PostTripCredit(ctx, "driver-1", "trip-1", 1000, time.Now())

	req, _ := ledger.RequestWithdrawal(ctx, "driver-1", 500)

	failed, err := ledger.FailWithdrawal(ctx, req.ID)
	if err != nil {
		t.Fatalf("fail failed: %v", err)
	}
	if failed.Status != domain.WithdrawalStatusFailed {
		t.Errorf("expected FAILED, got %s", failed.Status)
	}

	// The reserved amount is back and a reversal entry is on file.
	if got := ledgerRepo.Balance("driver-1").PendingBalance; math.Abs(got-850) > 0.005 {
		t.Errorf("expected 850 pending after reversal, got %v", got)
	}
	var reversals int
	for _, e := range ledgerRepo.Entries() {
		if e.Type == domain.LedgerEntryWithdrawalReversal {
			reversals++
		}
	}
	if reversals != 1 {
		t.Errorf("expected 1 reversal entry, got %d", reversals)
	}

	// A settled request cannot be settled twice.
	if _, err := ledger.CompleteWithdrawal(ctx, req.ID); !errors.Is(err, service.ErrWithdrawalNotPending) {
		t.Fatalf("expected ErrWithdrawalNotPending, got %v", err)
	}
}

func TestLedgerConservation_UnderConcurrentTraffic(t *testing.T) {
	ctx := context.Background()
	ledger, ledgerRepo, _ := newLedgerFixture()
	_ = ledger.OpenAccount(ctx, "driver-1")

	// Concurrent credits and withdrawal attempts; whatever interleaving
	// happens, pending == credits + reversals - reservations.
	const trips = 20
	var wg sync.WaitGroup
	for i := 0; i < trips; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = ledger.PostTripCredit(ctx, "driver-1", tripID(i), 1000, time.Now())
			if i%4 == 0 {
				_, _ = ledger.RequestWithdrawal(ctx, "driver-1", 600)
			}
		}(i)
	}
	wg.Wait()

	var sum float64
	for _, e := range ledgerRepo.Entries() {
		sum += e.Amount
	}
	if got := ledgerRepo.Balance("driver-1").PendingBalance; math.Abs(got-sum) > 0.01 {
		t.Errorf("conservation violated: balance %v, entry sum %v", got, sum)
	}
}

func tripID(i int) string {
	return "trip-" + string(rune('a'+i))
}

func TestEarnings_FoldsOnlyTripCreditsInWindow(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newLedgerFixture()
	_ = ledger.OpenAccount(ctx, "driver-1")

	now := time.Now()
	_, _ = ledger.PostTripCredit(ctx, "driver-1", "trip-today", 1000, now)
	_, _ = ledger.PostTripCredit(ctx, "driver-1", "trip-lastweek", 2000, now.AddDate(0, 0, -10))

	// A withdrawal must never show up in earnings.
	_, _ = ledger.RequestWithdrawal(ctx, "driver-1", 100)

	today, err := ledger.Earnings(ctx, "driver-1", domain.EarningsPeriodToday)
	if err != nil {
		t.Fatalf("earnings failed: %v", err)
	}
	if today.TripCount != 1 {
		t.Errorf("expected 1 trip today, got %d", today.TripCount)
	}
	if math.Abs(today.Gross-1000) > 0.005 {
		t.Errorf("expected gross 1000 today, got %v", today.Gross)
	}

	total, err := ledger.Earnings(ctx, "driver-1", domain.EarningsPeriodTotal)
	if err != nil {
		t.Fatalf("earnings failed: %v", err)
	}
	if total.TripCount != 2 {
		t.Errorf("expected 2 trips in total, got %d", total.TripCount)
	}
	if math.Abs(total.Gross-3000) > 0.005 {
		t.Errorf("expected gross 3000 in total, got %v", total.Gross)
	}

	if _, err := ledger.Earnings(ctx, "driver-1", "fortnight"); !errors.Is(err, service.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}
