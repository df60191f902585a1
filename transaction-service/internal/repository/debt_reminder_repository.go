package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/platform/shared/models"
	"github.com/lib/pq"
)

const reminderColumns = `
	id, creditor_account_number, debtor_account_number, amount, message,
	status, created_by, payment_transaction_id, created_at, updated_at
`

type DebtReminderRepository struct {
	db *sql.DB
}

func NewDebtReminderRepository(db *sql.DB) *DebtReminderRepository {
	return &DebtReminderRepository{db: db}
}

func (r *DebtReminderRepository) Create(ctx context.Context, d *models.DebtReminder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO debt_reminders (
			id, creditor_account_number, debtor_account_number, amount, message,
			status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, d.ID, d.CreditorAccountNumber, d.DebtorAccountNumber, d.Amount,
		nullString(d.Message), d.Status, d.CreatedBy, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create debt reminder: %w", err)
	}
	return nil
}

func (r *DebtReminderRepository) GetByID(ctx context.Context, id string) (*models.DebtReminder, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM debt_reminders WHERE id = $1`, id)
	d, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debt reminder: %w", err)
	}
	return d, nil
}

// ListForAccounts returns reminders where any of accountNumbers is the
// creditor or the debtor, newest first.
func (r *DebtReminderRepository) ListForAccounts(ctx context.Context, accountNumbers []string) ([]models.DebtReminder, error) {
	reminders := []models.DebtReminder{}
	if len(accountNumbers) == 0 {
		return reminders, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reminderColumns+` FROM debt_reminders
		WHERE creditor_account_number = ANY($1) OR debtor_account_number = ANY($1)
		ORDER BY created_at DESC
	`, pq.Array(accountNumbers))
	if err != nil {
		return nil, fmt.Errorf("failed to list debt reminders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debt reminder: %w", err)
		}
		reminders = append(reminders, *d)
	}
	return reminders, rows.Err()
}

// Cancel moves an UNPAID reminder to CANCELLED. It reports false when the
// reminder was no longer unpaid.
func (r *DebtReminderRepository) Cancel(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE debt_reminders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, id, models.DebtCancelled, models.DebtUnpaid)
	if err != nil {
		return false, fmt.Errorf("failed to cancel debt reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to cancel debt reminder: %w", err)
	}
	return n == 1, nil
}

func scanReminder(row rowScanner) (*models.DebtReminder, error) {
	var d models.DebtReminder
	var message sql.NullString
	if err := row.Scan(
		&d.ID, &d.CreditorAccountNumber, &d.DebtorAccountNumber, &d.Amount, &message,
		&d.Status, &d.CreatedBy, &d.PaymentTransactionID, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Message = message.String
	return &d, nil
}
