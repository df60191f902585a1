package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/models"
)

var ErrAccountNotFound = bankerr.NotFound("account not found")

// AccountWriteRepository handles all state-mutating operations for accounts.
// It operates exclusively against the PostgreSQL write store (source of truth).
// Balances are owned by transaction-service and never written here.
type AccountWriteRepository struct {
	db *sql.DB
}

func NewAccountWriteRepository(db *sql.DB) *AccountWriteRepository {
	return &AccountWriteRepository{db: db}
}

func (r *AccountWriteRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (account_number, user_id, sort_code, name, account_type, balance, currency, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.AccountNumber, account.UserID, account.SortCode, account.Name,
		account.AccountType, account.Balance, account.Currency, account.Active,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByAccountNumber fetches the full write model including UserID for ownership checks.
func (r *AccountWriteRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	query := `
		SELECT account_number, user_id, sort_code, name, account_type, balance, currency, active, created_at, updated_at
		FROM accounts
		WHERE account_number = $1
	`
	var account models.Account
	err := r.db.QueryRowContext(ctx, query, accountNumber).Scan(
		&account.AccountNumber, &account.UserID, &account.SortCode, &account.Name,
		&account.AccountType, &account.Balance, &account.Currency, &account.Active,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *AccountWriteRepository) Update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, account_type = $3, updated_at = $4
		WHERE account_number = $1 AND active
	`
	result, err := r.db.ExecContext(ctx, query, account.AccountNumber, account.Name, account.AccountType, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Deactivate closes an active account with a zero balance. It reports false
// when the account is already closed or still holds money.
func (r *AccountWriteRepository) Deactivate(ctx context.Context, accountNumber string) (bool, error) {
	query := `
		UPDATE accounts
		SET active = FALSE, updated_at = NOW()
		WHERE account_number = $1 AND active AND balance = 0
	`
	result, err := r.db.ExecContext(ctx, query, accountNumber)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows > 0, nil
}

// CountByUserID counts every account the user ever opened, closed ones included.
func (r *AccountWriteRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE user_id = $1`
	var count int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}
