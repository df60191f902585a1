package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/platform/shared/models"
	sharedredis "github.com/eaglebank/platform/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

const holderKeyPrefix = "account:holder:"

// AccountHolder is who owns an account and how to reach them.
type AccountHolder struct {
	AccountNumber string `json:"accountNumber"`
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	Email         string `json:"email"`
}

// AccountRepository reads accounts for the money movement flows. Balances are
// always read from PostgreSQL; holder details are cached in Redis.
type AccountRepository struct {
	db      *sql.DB
	holders *sharedredis.ViewCache[AccountHolder]
}

func NewAccountRepository(db *sql.DB, redisClient goredis.Cmdable, ttl time.Duration) *AccountRepository {
	return &AccountRepository{
		db:      db,
		holders: sharedredis.NewViewCache[AccountHolder](redisClient, holderKeyPrefix, ttl),
	}
}

const accountColumns = `
	account_number, user_id, sort_code, name, account_type,
	balance, currency, active, created_at, updated_at
`

// GetByNumber returns the account, active or not.
func (r *AccountRepository) GetByNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`,
		accountNumber,
	)
	return scanAccount(row)
}

// PrimaryForUser returns the user's oldest active account.
func (r *AccountRepository) PrimaryForUser(ctx context.Context, userID string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE user_id = $1 AND active
		ORDER BY created_at ASC
		LIMIT 1
	`, userID)
	return scanAccount(row)
}

// NumbersForUser lists every account number the user owns.
func (r *AccountRepository) NumbersForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_number FROM accounts WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan account number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// GetHolder returns the owner of an active account.
func (r *AccountRepository) GetHolder(ctx context.Context, accountNumber string) (*AccountHolder, error) {
	if h, ok := r.holders.Get(ctx, accountNumber); ok {
		return h, nil
	}

	var h AccountHolder
	err := r.db.QueryRowContext(ctx, `
		SELECT a.account_number, a.user_id, u.name, u.email
		FROM accounts a
		JOIN users u ON u.id = a.user_id
		WHERE a.account_number = $1 AND a.active AND u.deleted_at IS NULL
	`, accountNumber).Scan(&h.AccountNumber, &h.UserID, &h.Name, &h.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account holder: %w", err)
	}

	r.holders.Set(ctx, accountNumber, &h)
	return &h, nil
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.AccountNumber, &a.UserID, &a.SortCode, &a.Name, &a.AccountType,
		&a.Balance, &a.Currency, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}
