package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eaglebank/platform/shared/models"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, ex execer, t *models.Transaction) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO transactions (
			id, type, source_bank_code, source_account_number,
			destination_bank_code, destination_account_number,
			amount, fee, fee_payer, status, message, initiated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`,
		t.ID, t.Type, t.SourceBankCode, t.SourceAccountNumber,
		t.DestinationBankCode, t.DestinationAccountNumber,
		t.Amount, t.Fee, t.FeePayer, t.Status,
		nullString(t.Message), nullString(t.InitiatedBy), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func deletePending(ctx context.Context, ex execer, id string) error {
	if _, err := ex.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = $1 AND status = $2`,
		id, models.StatusPending,
	); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
