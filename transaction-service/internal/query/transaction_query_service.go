package query

import (
	"context"
	"errors"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type AccountReader interface {
	GetByNumber(ctx context.Context, accountNumber string) (*models.Account, error)
}

type TransactionReader interface {
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	ListByAccountNumber(ctx context.Context, accountNumber string, limit, offset int) ([]models.Transaction, error)
}

// TransactionQueryService serves transaction history. Ownership is always
// checked before anything is returned.
type TransactionQueryService struct {
	accounts AccountReader
	reader   TransactionReader
}

func NewTransactionQueryService(accounts AccountReader, reader TransactionReader) *TransactionQueryService {
	return &TransactionQueryService{accounts: accounts, reader: reader}
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	if err := s.checkOwner(ctx, q.AccountNumber, q.UserID); err != nil {
		return nil, err
	}
	t, err := s.reader.GetByID(ctx, q.TransactionID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, bankerr.NotFound("transaction not found")
	}
	if err != nil {
		return nil, bankerr.Unexpected("failed to get transaction", err)
	}
	if !touches(t, q.AccountNumber) {
		return nil, bankerr.NotFound("transaction not found")
	}
	view := t.ViewFor(q.AccountNumber)
	return &view, nil
}

// ListTransactions returns one page of an account's history, newest first.
func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	if err := s.checkOwner(ctx, q.AccountNumber, q.UserID); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if q.Offset < 0 {
		return nil, bankerr.Validation("offset must not be negative")
	}

	txs, err := s.reader.ListByAccountNumber(ctx, q.AccountNumber, limit, q.Offset)
	if err != nil {
		return nil, bankerr.Unexpected("failed to list transactions", err)
	}
	views := make([]models.TransactionView, len(txs))
	for i := range txs {
		views[i] = txs[i].ViewFor(q.AccountNumber)
	}
	return views, nil
}

func (s *TransactionQueryService) checkOwner(ctx context.Context, accountNumber, userID string) error {
	account, err := s.accounts.GetByNumber(ctx, accountNumber)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return bankerr.NotFound("account not found")
	}
	if err != nil {
		return bankerr.Unexpected("failed to load account", err)
	}
	if account.UserID != userID {
		return bankerr.New(bankerr.KindForbidden, "you can only view transactions for your own accounts")
	}
	return nil
}

// touches reports whether t moved money in or out of the local account.
func touches(t *models.Transaction, accountNumber string) bool {
	return (t.SourceBankCode == nil && t.SourceAccountNumber == accountNumber) ||
		(t.DestinationBankCode == nil && t.DestinationAccountNumber == accountNumber)
}
