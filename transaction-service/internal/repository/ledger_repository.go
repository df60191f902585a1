package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/models"
	"github.com/shopspring/decimal"
)

// LedgerTx is the set of balance and status mutations that must commit
// together. Every method runs inside the surrounding SQL transaction.
type LedgerTx interface {
	Debit(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error)
	Release(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error)
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	MarkCompleted(ctx context.Context, transactionID string) error
	DeleteTransaction(ctx context.Context, transactionID string) error
	MarkDebtReminderPaid(ctx context.Context, reminderID, transactionID string) error
}

// LedgerRepository owns the balance column. Balances are only ever changed
// through WithinTx.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithinTx runs fn in one database transaction. The transaction commits only
// if fn returns nil; any error or panic rolls back every change fn made.
func (r *LedgerRepository) WithinTx(ctx context.Context, fn func(LedgerTx) error) error {
	return r.withinTx(ctx, func(l *ledgerTx) error { return fn(l) })
}

func (r *LedgerRepository) withinTx(ctx context.Context, fn func(*ledgerTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "ledger rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}

// ReleaseStalePending deletes PENDING rows of txType created before cutoff
// and gives their held debit back to the source account, all in one
// transaction. Rows locked by an in-flight transfer are skipped.
func (r *LedgerRepository) ReleaseStalePending(ctx context.Context, txType models.TransactionType, cutoff time.Time) ([]models.Transaction, error) {
	var released []models.Transaction
	err := r.withinTx(ctx, func(ltx *ledgerTx) error {
		rows, err := ltx.tx.QueryContext(ctx, `
			DELETE FROM transactions
			WHERE id IN (
				SELECT id FROM transactions
				WHERE status = $1 AND type = $2 AND created_at < $3
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, source_account_number, destination_account_number, amount, fee, fee_payer, created_at
		`, models.StatusPending, txType, cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete stale transactions: %w", err)
		}
		for rows.Next() {
			t := models.Transaction{Type: txType, Status: models.StatusPending}
			if err := rows.Scan(&t.ID, &t.SourceAccountNumber, &t.DestinationAccountNumber, &t.Amount, &t.Fee, &t.FeePayer, &t.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan stale transaction: %w", err)
			}
			released = append(released, t)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, t := range released {
			if _, err := ltx.Release(ctx, t.SourceAccountNumber, models.DebitAmount(t.Amount, t.Fee, t.FeePayer)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

type ledgerTx struct {
	tx *sql.Tx
}

// The balance guard lives in the WHERE clause so two concurrent debits can
// never both pass it: the second one waits on the row lock and re-evaluates.
const debitQuery = `
	UPDATE accounts
	SET balance = balance - $2, updated_at = NOW()
	WHERE account_number = $1 AND active AND balance >= $2
	RETURNING balance
`

func (l *ledgerTx) Debit(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.tx.QueryRowContext(ctx, debitQuery, accountNumber, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := l.tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1 AND active)`,
			accountNumber,
		).Scan(&exists); err != nil {
			return decimal.Zero, fmt.Errorf("failed to check account %s: %w", accountNumber, err)
		}
		if !exists {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, bankerr.ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit account %s: %w", accountNumber, err)
	}
	return balance, nil
}

func (l *ledgerTx) Credit(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE account_number = $1 AND active
		RETURNING balance
	`, accountNumber, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit account %s: %w", accountNumber, err)
	}
	return balance, nil
}

// Release gives back funds held for an outbound transfer. Unlike Credit it
// ignores the active flag: the money belongs to the account either way.
func (l *ledgerTx) Release(ctx context.Context, accountNumber string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE account_number = $1
		RETURNING balance
	`, accountNumber, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to release funds to %s: %w", accountNumber, err)
	}
	return balance, nil
}

func (l *ledgerTx) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return insertTransaction(ctx, l.tx, t)
}

func (l *ledgerTx) MarkCompleted(ctx context.Context, transactionID string) error {
	res, err := l.tx.ExecContext(ctx, `
		UPDATE transactions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, transactionID, models.StatusCompleted, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to complete transaction %s: %w", transactionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s is not pending", transactionID)
	}
	return nil
}

func (l *ledgerTx) DeleteTransaction(ctx context.Context, transactionID string) error {
	return deletePending(ctx, l.tx, transactionID)
}

func (l *ledgerTx) MarkDebtReminderPaid(ctx context.Context, reminderID, transactionID string) error {
	res, err := l.tx.ExecContext(ctx, `
		UPDATE debt_reminders
		SET status = $2, payment_transaction_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, reminderID, models.DebtPaid, transactionID, models.DebtUnpaid)
	if err != nil {
		return fmt.Errorf("failed to mark debt reminder %s paid: %w", reminderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return bankerr.Validation("debt reminder is no longer unpaid")
	}
	return nil
}
