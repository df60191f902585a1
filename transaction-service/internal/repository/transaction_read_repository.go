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

const transactionKeyPrefix = "transaction:"

const transactionColumns = `
	id, type, source_bank_code, source_account_number,
	destination_bank_code, destination_account_number,
	amount, fee, fee_payer, status, message, created_at, updated_at
`

// TransactionReadRepository serves completed transactions. Completed rows are
// immutable, so they are cached in Redis by ID with PostgreSQL as fallback.
type TransactionReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.Transaction]
}

func NewTransactionReadRepository(db *sql.DB, redisClient goredis.Cmdable, ttl time.Duration) *TransactionReadRepository {
	return &TransactionReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.Transaction](redisClient, transactionKeyPrefix, ttl),
	}
}

// GetByID returns a completed transaction. Pending attempts are invisible.
func (r *TransactionReadRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	if t, ok := r.cache.Get(ctx, id); ok {
		return t, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND status = $2`,
		id, models.StatusCompleted,
	)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	r.cache.Set(ctx, id, t)
	return t, nil
}

// ListByAccountNumber returns completed transactions that moved money in or
// out of a local account, newest first.
func (r *TransactionReadRepository) ListByAccountNumber(ctx context.Context, accountNumber string, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = $2
		  AND ((source_account_number = $1 AND source_bank_code IS NULL)
		    OR (destination_account_number = $1 AND destination_bank_code IS NULL))
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, accountNumber, models.StatusCompleted, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// CacheTransaction warms the cache right after a ledger commit.
func (r *TransactionReadRepository) CacheTransaction(ctx context.Context, t *models.Transaction) {
	if t.Status != models.StatusCompleted {
		return
	}
	r.cache.Set(ctx, t.ID, t)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var message sql.NullString
	if err := row.Scan(
		&t.ID, &t.Type, &t.SourceBankCode, &t.SourceAccountNumber,
		&t.DestinationBankCode, &t.DestinationAccountNumber,
		&t.Amount, &t.Fee, &t.FeePayer, &t.Status, &message,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Message = message.String
	return &t, nil
}
