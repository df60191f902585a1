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

const bankKeyPrefix = "bank:"

// bankCacheEntry mirrors models.Bank including the shared secret, which the
// model never serialises.
type bankCacheEntry struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	APIEndpoint    string `json:"apiEndpoint"`
	PublicKeyPEM   string `json:"publicKey"`
	SharedSecret   string `json:"sharedSecret"`
	SecurityScheme string `json:"securityScheme"`
}

// BankRepository resolves counterpart banks. The registry changes rarely and
// is read on every interbank call, so entries are cached.
type BankRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[bankCacheEntry]
}

func NewBankRepository(db *sql.DB, redisClient goredis.Cmdable, ttl time.Duration) *BankRepository {
	return &BankRepository{
		db:    db,
		cache: sharedredis.NewViewCache[bankCacheEntry](redisClient, bankKeyPrefix, ttl),
	}
}

func (r *BankRepository) GetByCode(ctx context.Context, code string) (*models.Bank, error) {
	if e, ok := r.cache.Get(ctx, code); ok {
		return e.bank(), nil
	}

	var e bankCacheEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT code, name, api_endpoint, public_key, shared_secret, security_scheme
		FROM banks WHERE code = $1
	`, code).Scan(&e.Code, &e.Name, &e.APIEndpoint, &e.PublicKeyPEM, &e.SharedSecret, &e.SecurityScheme)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBankNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank: %w", err)
	}

	r.cache.Set(ctx, code, &e)
	return e.bank(), nil
}

// List returns every registered bank without secrets.
func (r *BankRepository) List(ctx context.Context) ([]models.Bank, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT code, name, api_endpoint, public_key, security_scheme FROM banks ORDER BY code`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list banks: %w", err)
	}
	defer rows.Close()

	banks := []models.Bank{}
	for rows.Next() {
		var b models.Bank
		if err := rows.Scan(&b.Code, &b.Name, &b.APIEndpoint, &b.PublicKeyPEM, &b.SecurityScheme); err != nil {
			return nil, fmt.Errorf("failed to scan bank: %w", err)
		}
		banks = append(banks, b)
	}
	return banks, rows.Err()
}

func (e *bankCacheEntry) bank() *models.Bank {
	return &models.Bank{
		Code:           e.Code,
		Name:           e.Name,
		APIEndpoint:    e.APIEndpoint,
		PublicKeyPEM:   e.PublicKeyPEM,
		SharedSecret:   e.SharedSecret,
		SecurityScheme: e.SecurityScheme,
	}
}
