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
	"github.com/shopspring/decimal"
)

const accountViewKeyPrefix = "account:view:"

// accountCacheEntry is the internal Redis representation of an account.
// Unlike models.AccountView, it includes UserID so that ownership checks can
// be served from the cache.
type accountCacheEntry struct {
	AccountNumber string          `json:"accountNumber"`
	UserID        string          `json:"userId"`
	SortCode      string          `json:"sortCode"`
	Name          string          `json:"name"`
	AccountType   string          `json:"accountType"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	UpdatedAt     time.Time       `json:"updatedTimestamp"`
}

// AccountReadRepository handles all read operations for accounts.
// It treats Redis as the primary read store and falls back to PostgreSQL
// transparently, warming the cache on every cold read.
type AccountReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[accountCacheEntry]
}

func NewAccountReadRepository(db *sql.DB, redisClient goredis.Cmdable, ttl time.Duration) *AccountReadRepository {
	return &AccountReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[accountCacheEntry](redisClient, accountViewKeyPrefix, ttl),
	}
}

func cacheEntryToView(e *accountCacheEntry) *models.AccountView {
	return &models.AccountView{
		AccountNumber: e.AccountNumber,
		UserID:        e.UserID,
		SortCode:      e.SortCode,
		Name:          e.Name,
		AccountType:   e.AccountType,
		Balance:       e.Balance,
		Currency:      e.Currency,
		Active:        e.Active,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// GetByAccountNumber returns an AccountView, trying Redis first then PostgreSQL.
func (r *AccountReadRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*models.AccountView, error) {
	if entry, ok := r.cache.Get(ctx, accountNumber); ok {
		return cacheEntryToView(entry), nil
	}

	view, err := r.load(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	r.CacheAccountView(ctx, view)
	return view, nil
}

// RefreshAccountView reloads an account from PostgreSQL into the cache. Used
// after balance changes made by other services.
func (r *AccountReadRepository) RefreshAccountView(ctx context.Context, accountNumber string) error {
	view, err := r.load(ctx, accountNumber)
	if errors.Is(err, ErrAccountNotFound) {
		r.cache.Delete(ctx, accountNumber)
		return nil
	}
	if err != nil {
		return err
	}
	r.CacheAccountView(ctx, view)
	return nil
}

func (r *AccountReadRepository) load(ctx context.Context, accountNumber string) (*models.AccountView, error) {
	query := `
		SELECT account_number, user_id, sort_code, name, account_type, balance, currency, active, created_at, updated_at
		FROM accounts
		WHERE account_number = $1
	`
	var view models.AccountView
	err := r.db.QueryRowContext(ctx, query, accountNumber).Scan(
		&view.AccountNumber, &view.UserID, &view.SortCode, &view.Name,
		&view.AccountType, &view.Balance, &view.Currency, &view.Active,
		&view.CreatedAt, &view.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &view, nil
}

// ListByUserID returns all AccountViews for the given user from PostgreSQL.
func (r *AccountReadRepository) ListByUserID(ctx context.Context, userID string) ([]models.AccountView, error) {
	query := `
		SELECT account_number, user_id, sort_code, name, account_type, balance, currency, active, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	views := []models.AccountView{}
	for rows.Next() {
		var view models.AccountView
		if err := rows.Scan(
			&view.AccountNumber, &view.UserID, &view.SortCode, &view.Name,
			&view.AccountType, &view.Balance, &view.Currency, &view.Active,
			&view.CreatedAt, &view.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

// CacheAccountView stores or refreshes the Redis read model for an account.
func (r *AccountReadRepository) CacheAccountView(ctx context.Context, view *models.AccountView) {
	r.cache.Set(ctx, view.AccountNumber, &accountCacheEntry{
		AccountNumber: view.AccountNumber,
		UserID:        view.UserID,
		SortCode:      view.SortCode,
		Name:          view.Name,
		AccountType:   view.AccountType,
		Balance:       view.Balance,
		Currency:      view.Currency,
		Active:        view.Active,
		CreatedAt:     view.CreatedAt,
		UpdatedAt:     view.UpdatedAt,
	})
}
