// Package database opens the shared PostgreSQL database and applies the schema.
// All services use one database so that a transfer can debit and credit in a
// single SQL transaction.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

const connectAttempts = 5

// Open connects with retries, tunes the pool and runs migrations.
func Open(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for i := 1; i <= connectAttempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			break
		}
		logger.Info("waiting for database", "attempt", i, "of", connectAttempts, "error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not reach database after %d attempts: %w", connectAttempts, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	logger.Info("database connection established")

	if err := RunMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RunMigrations creates tables and indexes idempotently.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	logger.Info("database migrations applied", "statements", len(schema))
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id               VARCHAR(32)  PRIMARY KEY,
		name             VARCHAR(255) NOT NULL,
		email            VARCHAR(255) NOT NULL UNIQUE,
		password_hash    VARCHAR(255) NOT NULL,
		phone_number     VARCHAR(32)  NOT NULL,
		address_line1    VARCHAR(255) NOT NULL,
		address_line2    VARCHAR(255),
		address_line3    VARCHAR(255),
		address_town     VARCHAR(255) NOT NULL,
		address_county   VARCHAR(255) NOT NULL,
		address_postcode VARCHAR(16)  NOT NULL,
		created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		deleted_at       TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		account_number VARCHAR(8)    PRIMARY KEY,
		user_id        VARCHAR(32)   NOT NULL REFERENCES users(id),
		sort_code      VARCHAR(8)    NOT NULL,
		name           VARCHAR(255)  NOT NULL,
		account_type   VARCHAR(32)   NOT NULL,
		balance        NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		currency       VARCHAR(3)    NOT NULL DEFAULT 'GBP',
		active         BOOLEAN       NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id)`,
	`CREATE TABLE IF NOT EXISTS banks (
		code            VARCHAR(32)  PRIMARY KEY,
		name            VARCHAR(255) NOT NULL,
		api_endpoint    VARCHAR(512) NOT NULL,
		public_key      TEXT         NOT NULL,
		shared_secret   VARCHAR(255) NOT NULL,
		security_scheme VARCHAR(16)  NOT NULL DEFAULT 'RSA'
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id                         UUID          PRIMARY KEY,
		type                       VARCHAR(32)   NOT NULL,
		source_bank_code           VARCHAR(32),
		source_account_number      VARCHAR(34)   NOT NULL,
		destination_bank_code      VARCHAR(32),
		destination_account_number VARCHAR(34)   NOT NULL,
		amount                     NUMERIC(20,2) NOT NULL CHECK (amount > 0),
		fee                        NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (fee >= 0),
		fee_payer                  VARCHAR(16)   NOT NULL,
		status                     VARCHAR(16)   NOT NULL,
		message                    VARCHAR(255),
		initiated_by               VARCHAR(32),
		created_at                 TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at                 TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		CHECK (source_bank_code IS NULL OR destination_bank_code IS NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions(source_account_number, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_destination ON transactions(destination_account_number, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_pending ON transactions(status, type, created_at)`,
	`CREATE TABLE IF NOT EXISTS debt_reminders (
		id                      UUID          PRIMARY KEY,
		creditor_account_number VARCHAR(8)    NOT NULL REFERENCES accounts(account_number),
		debtor_account_number   VARCHAR(8)    NOT NULL REFERENCES accounts(account_number),
		amount                  NUMERIC(20,2) NOT NULL CHECK (amount > 0),
		message                 VARCHAR(255),
		status                  VARCHAR(16)   NOT NULL DEFAULT 'UNPAID',
		created_by              VARCHAR(32)   NOT NULL,
		payment_transaction_id  UUID REFERENCES transactions(id),
		created_at              TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at              TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		CHECK (creditor_account_number <> debtor_account_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_debt_reminders_creditor ON debt_reminders(creditor_account_number)`,
	`CREATE INDEX IF NOT EXISTS idx_debt_reminders_debtor ON debt_reminders(debtor_account_number)`,
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsCheckViolation reports whether err is a PostgreSQL check_violation.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23514"
}
