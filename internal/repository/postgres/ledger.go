package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tripbroker/internal/domain"
	"tripbroker/internal/repository"
)

// LedgerRepository is a PostgreSQL implementation of repository.LedgerRepository.
// Unlike the other repositories it holds the *sql.DB directly: every balance
// mutation pairs a ledger-entry insert with a balance update, and those two
// writes must commit or roll back together.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreateAccount initializes a zero-balance ledger for a new driver.
func (r *LedgerRepository) CreateAccount(ctx context.Context, driverID string) error {
	query := `
		INSERT INTO driver_ledgers (driver_id, pending_balance, withdrawn_amount)
		VALUES ($1, 0, 0)
		ON CONFLICT (driver_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, driverID)
	return err
}

// GetBalance retrieves the driver's current settlement position.
func (r *LedgerRepository) GetBalance(ctx context.Context, driverID string) (*domain.Balance, error) {
	query := `SELECT driver_id, pending_balance, withdrawn_amount FROM driver_ledgers WHERE driver_id = $1`

	var balance domain.Balance
	err := r.db.QueryRowContext(ctx, query, driverID).Scan(
		&balance.DriverID,
		&balance.PendingBalance,
		&balance.WithdrawnAmount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &balance, nil
}

// CreditTrip appends a trip-credit entry and adds its net amount to the
// pending balance in one transaction. The partial unique index on
// ledger_entries(trip_id) makes a double credit for the same trip impossible.
func (r *LedgerRepository) CreditTrip(ctx context.Context, entry *domain.LedgerEntry) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertEntry(ctx, tx, entry); err != nil {
		if isUniqueViolation(err) {
			err = repository.ErrDuplicateID
		}
		return err
	}

	var result sql.Result
	result, err = tx.ExecContext(ctx,
		`UPDATE driver_ledgers SET pending_balance = pending_balance + $2 WHERE driver_id = $1`,
		entry.DriverID, entry.Net,
	)
	if err != nil {
		return err
	}
	if err = requireRow(result); err != nil {
		return err
	}

	return tx.Commit()
}

// GetTripCredit retrieves the credit posted for a trip, if any.
func (r *LedgerRepository) GetTripCredit(ctx context.Context, tripID string) (*domain.LedgerEntry, error) {
	query := `
		SELECT id, driver_id, trip_id, withdrawal_id, type, gross, commission, net, amount, created_at
		FROM ledger_entries WHERE trip_id = $1 AND type = $2
	`

	var entry domain.LedgerEntry
	var entryTripID, withdrawalID sql.NullString
	err := r.db.QueryRowContext(ctx, query, tripID, domain.LedgerEntryTripCredit).Scan(
		&entry.ID,
		&entry.DriverID,
		&entryTripID,
		&withdrawalID,
		&entry.Type,
		&entry.Gross,
		&entry.Commission,
		&entry.Net,
		&entry.Amount,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	entry.TripID = entryTripID.String
	entry.WithdrawalID = withdrawalID.String

	return &entry, nil
}

// ReserveWithdrawal creates a Pending withdrawal, debits the pending balance,
// and appends the debit entry. The balance guard is part of the UPDATE so a
// concurrent reservation can never overdraw.
func (r *LedgerRepository) ReserveWithdrawal(ctx context.Context, req *domain.WithdrawalRequest) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var result sql.Result
	result, err = tx.ExecContext(ctx,
		`UPDATE driver_ledgers SET pending_balance = pending_balance - $2
		 WHERE driver_id = $1 AND pending_balance >= $2`,
		req.DriverID, req.Amount,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		var exists bool
		if err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM driver_ledgers WHERE driver_id = $1)`, req.DriverID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			err = repository.ErrNotFound
			return err
		}
		err = repository.ErrConflict
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO withdrawal_requests (id, driver_id, amount, status, requested_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		req.ID, req.DriverID, req.Amount, req.Status, req.RequestedAt,
	)
	if err != nil {
		return err
	}

	err = insertEntry(ctx, tx, &domain.LedgerEntry{
		ID:           req.ID + ":debit",
		DriverID:     req.DriverID,
		WithdrawalID: req.ID,
		Type:         domain.LedgerEntryWithdrawalDebit,
		Amount:       -req.Amount,
		CreatedAt:    req.RequestedAt,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetWithdrawal retrieves a withdrawal request by ID.
func (r *LedgerRepository) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	query := `
		SELECT id, driver_id, amount, status, requested_at, processed_at
		FROM withdrawal_requests WHERE id = $1
	`

	req, err := scanWithdrawal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return req, nil
}

// CompleteWithdrawal marks a Pending request Completed and moves its amount
// into the cumulative withdrawn total.
func (r *LedgerRepository) CompleteWithdrawal(ctx context.Context, id string, processedAt time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var driverID string
	var amount float64
	err = tx.QueryRowContext(ctx,
		`UPDATE withdrawal_requests SET status = $2, processed_at = $3
		 WHERE id = $1 AND status = $4
		 RETURNING driver_id, amount`,
		id, domain.WithdrawalStatusCompleted, processedAt, domain.WithdrawalStatusPending,
	).Scan(&driverID, &amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = r.withdrawalCASError(ctx, id)
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE driver_ledgers SET withdrawn_amount = withdrawn_amount + $2 WHERE driver_id = $1`,
		driverID, amount,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// FailWithdrawal marks a Pending request Failed and credits its amount back
// to the pending balance with a reversal entry.
func (r *LedgerRepository) FailWithdrawal(ctx context.Context, id string, processedAt time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var driverID string
	var amount float64
	err = tx.QueryRowContext(ctx,
		`UPDATE withdrawal_requests SET status = $2, processed_at = $3
		 WHERE id = $1 AND status = $4
		 RETURNING driver_id, amount`,
		id, domain.WithdrawalStatusFailed, processedAt, domain.WithdrawalStatusPending,
	).Scan(&driverID, &amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = r.withdrawalCASError(ctx, id)
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE driver_ledgers SET pending_balance = pending_balance + $2 WHERE driver_id = $1`,
		driverID, amount,
	)
	if err != nil {
		return err
	}

	err = insertEntry(ctx, tx, &domain.LedgerEntry{
		ID:           id + ":reversal",
		DriverID:     driverID,
		WithdrawalID: id,
		Type:         domain.LedgerEntryWithdrawalReversal,
		Amount:       amount,
		CreatedAt:    processedAt,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ListWithdrawals retrieves a driver's withdrawal requests, newest first.
func (r *LedgerRepository) ListWithdrawals(ctx context.Context, driverID string) ([]*domain.WithdrawalRequest, error) {
	query := `
		SELECT id, driver_id, amount, status, requested_at, processed_at
		FROM withdrawal_requests WHERE driver_id = $1 ORDER BY requested_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*domain.WithdrawalRequest
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// ListEntries retrieves a driver's ledger entries, newest first.
func (r *LedgerRepository) ListEntries(ctx context.Context, driverID string, limit int) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT id, driver_id, trip_id, withdrawal_id, type, gross, commission, net, amount, created_at
		FROM ledger_entries WHERE driver_id = $1 ORDER BY created_at DESC LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, driverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		var tripID, withdrawalID sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.DriverID,
			&tripID,
			&withdrawalID,
			&entry.Type,
			&entry.Gross,
			&entry.Commission,
			&entry.Net,
			&entry.Amount,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.TripID = tripID.String
		entry.WithdrawalID = withdrawalID.String
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// SummarizeEarnings folds trip credits posted in [from, to).
func (r *LedgerRepository) SummarizeEarnings(ctx context.Context, driverID string, from, to time.Time) (*domain.EarningsSummary, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(gross), 0), COALESCE(SUM(commission), 0), COALESCE(SUM(net), 0)
		FROM ledger_entries
		WHERE driver_id = $1 AND type = $2 AND created_at >= $3 AND created_at < $4
	`

	summary := &domain.EarningsSummary{DriverID: driverID, From: from, To: to}
	err := r.db.QueryRowContext(ctx, query, driverID, domain.LedgerEntryTripCredit, from, to).Scan(
		&summary.TripCount,
		&summary.Gross,
		&summary.Commission,
		&summary.Net,
	)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

func (r *LedgerRepository) withdrawalCASError(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM withdrawal_requests WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func insertEntry(ctx context.Context, q Querier, entry *domain.LedgerEntry) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, driver_id, trip_id, withdrawal_id, type, gross, commission, net, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID,
		entry.DriverID,
		nullString(entry.TripID),
		nullString(entry.WithdrawalID),
		entry.Type,
		entry.Gross,
		entry.Commission,
		entry.Net,
		entry.Amount,
		entry.CreatedAt,
	)
	return err
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanWithdrawal(row rowScanner) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	var processedAt sql.NullTime
	err := row.Scan(
		&req.ID,
		&req.DriverID,
		&req.Amount,
		&req.Status,
		&req.RequestedAt,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}
	if processedAt.Valid {
		req.ProcessedAt = processedAt.Time
	}
	return &req, nil
}

// Ensure LedgerRepository implements repository.LedgerRepository.
var _ repository.LedgerRepository = (*LedgerRepository)(nil)
