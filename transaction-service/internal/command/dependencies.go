package command

import (
	"context"

	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/otp"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
)

// Collaborators of the command services. The repository and interbank
// packages provide the production implementations.

type AccountReader interface {
	GetByNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	PrimaryForUser(ctx context.Context, userID string) (*models.Account, error)
	GetHolder(ctx context.Context, accountNumber string) (*repository.AccountHolder, error)
}

type Ledger interface {
	WithinTx(ctx context.Context, fn func(repository.LedgerTx) error) error
}

type BankDirectory interface {
	GetByCode(ctx context.Context, code string) (*models.Bank, error)
}

type OTPGate interface {
	Issue(ctx context.Context, userID, email string, purpose otp.Purpose) error
	Require(ctx context.Context, userID string, purpose otp.Purpose, candidate string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

type TransactionCache interface {
	CacheTransaction(ctx context.Context, t *models.Transaction)
}

type DepositSender interface {
	Deposit(ctx context.Context, bank *models.Bank, req cqrs.DepositRequest) (*cqrs.DepositResult, error)
}

type DebtReminderStore interface {
	Create(ctx context.Context, d *models.DebtReminder) error
	GetByID(ctx context.Context, id string) (*models.DebtReminder, error)
	Cancel(ctx context.Context, id string) (bool, error)
}
