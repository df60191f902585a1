package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/events"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/otp"
	"github.com/eaglebank/platform/shared/utils"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
	"github.com/shopspring/decimal"
)

// TransferCommandService moves money between accounts of this bank. The
// debit, the credit and the COMPLETED status commit in one ledger
// transaction, so a failure at any step leaves no trace.
type TransferCommandService struct {
	accounts  AccountReader
	ledger    Ledger
	gate      OTPGate
	fees      models.FeePolicy
	cache     TransactionCache
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewTransferCommandService(
	accounts AccountReader,
	ledger Ledger,
	gate OTPGate,
	fees models.FeePolicy,
	cache TransactionCache,
	publisher EventPublisher,
	logger *slog.Logger,
) *TransferCommandService {
	return &TransferCommandService{
		accounts:  accounts,
		ledger:    ledger,
		gate:      gate,
		fees:      fees,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// IssueOTP mails a code the user must present with a later transfer.
func (s *TransferCommandService) IssueOTP(ctx context.Context, cmd cqrs.IssueOTPCommand) error {
	return s.gate.Issue(ctx, cmd.UserID, cmd.Email, otp.Purpose(cmd.Purpose))
}

func (s *TransferCommandService) Transfer(ctx context.Context, cmd cqrs.TransferCommand) (*cqrs.TransferResult, error) {
	return s.move(ctx, movement{
		userID:             cmd.UserID,
		sourceAccount:      cmd.SourceAccountNumber,
		destinationAccount: cmd.DestinationAccountNumber,
		amount:             cmd.Amount,
		payer:              cmd.FeePayer,
		message:            cmd.Message,
		otp:                cmd.OTP,
		requireOTP:         cmd.RequireOTP,
		purpose:            otp.PurposeTransfer,
		txType:             models.TransactionInternalTransfer,
	})
}

// movement is a local transfer request. Debt payments reuse it with their
// reminder ID so the reminder is settled in the same ledger transaction.
type movement struct {
	userID             string
	sourceAccount      string
	destinationAccount string
	amount             decimal.Decimal
	payer              models.FeePayer
	message            string
	otp                string
	requireOTP         bool
	purpose            otp.Purpose
	txType             models.TransactionType
	reminderID         string
}

func (s *TransferCommandService) move(ctx context.Context, m movement) (*cqrs.TransferResult, error) {
	logger := s.logger.With("user_id", m.userID, "type", m.txType)
	state := cqrs.StateValidating

	fail := func(err error) (*cqrs.TransferResult, error) {
		if bankerr.IsExpected(err) {
			logger.InfoContext(ctx, "transfer rejected", "state", state, "reason", err.Error())
		} else {
			logger.ErrorContext(ctx, "transfer failed", "state", state, "error", err)
		}
		return nil, err
	}

	payer, err := validateMovement(m.amount, m.payer, m.message)
	if err != nil {
		return fail(err)
	}
	source, err := resolveSource(ctx, s.accounts, m.userID, m.sourceAccount)
	if err != nil {
		return fail(err)
	}
	destination, err := s.accounts.GetByNumber(ctx, m.destinationAccount)
	if err != nil || !destination.Active {
		if err == nil || bankerr.KindOf(err) == bankerr.KindNotFound {
			return fail(bankerr.NotFound("destination account %s not found", m.destinationAccount))
		}
		return fail(bankerr.Unexpected("failed to load destination account", err))
	}
	if destination.AccountNumber == source.AccountNumber {
		return fail(bankerr.Validation("source and destination accounts must differ"))
	}

	if m.requireOTP {
		state = cqrs.StateOTPChecking
		if err := s.gate.Require(ctx, m.userID, m.purpose, m.otp); err != nil {
			return fail(err)
		}
	}

	state = cqrs.StateFundsChecking
	q, err := price(s.fees, source, m.amount, payer)
	if err != nil {
		return fail(err)
	}

	now := s.now().UTC()
	tx := &models.Transaction{
		ID:                       utils.NewTransactionID(),
		Type:                     m.txType,
		SourceAccountNumber:      source.AccountNumber,
		DestinationAccountNumber: destination.AccountNumber,
		Amount:                   m.amount,
		Fee:                      q.fee,
		FeePayer:                 payer,
		Status:                   models.StatusPending,
		Message:                  m.message,
		InitiatedBy:              m.userID,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := tx.Validate(); err != nil {
		return fail(err)
	}

	var newBalance decimal.Decimal
	err = s.ledger.WithinTx(ctx, func(ltx repository.LedgerTx) error {
		if err := ltx.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		state = cqrs.StateDebiting
		balance, err := ltx.Debit(ctx, source.AccountNumber, q.debit)
		if err != nil {
			return err
		}
		state = cqrs.StateCrediting
		if _, err := ltx.Credit(ctx, destination.AccountNumber, q.credit); err != nil {
			return err
		}
		if err := ltx.MarkCompleted(ctx, tx.ID); err != nil {
			return err
		}
		if m.reminderID != "" {
			if err := ltx.MarkDebtReminderPaid(ctx, m.reminderID, tx.ID); err != nil {
				return err
			}
		}
		newBalance = balance
		return nil
	})
	if err != nil {
		logger = logger.With("transaction_id", tx.ID, "failed_at", state)
		state = cqrs.StateFailedRolledBack
		return fail(ledgerError(err))
	}

	tx.Status = models.StatusCompleted
	s.cache.CacheTransaction(ctx, tx)
	publishCompleted(ctx, s.publisher, logger, tx, source.AccountNumber, destination.AccountNumber)
	logger.InfoContext(ctx, "transfer completed",
		"transaction_id", tx.ID,
		"source", source.AccountNumber,
		"destination", destination.AccountNumber,
		"amount", m.amount.String(),
	)

	return &cqrs.TransferResult{
		Success:       true,
		TransactionID: tx.ID,
		State:         cqrs.StateCompleted,
		Amount:        m.amount,
		Fee:           q.fee,
		Message:       m.message,
		NewBalance:    newBalance,
	}, nil
}

// publishCompleted announces a committed transaction. A lost event only
// delays read model refreshes, so failures are logged and swallowed.
func publishCompleted(ctx context.Context, publisher EventPublisher, logger *slog.Logger, tx *models.Transaction, local ...string) {
	err := publisher.Publish(ctx, events.TransactionEventsStream, events.TransactionCompleted, events.TransactionCompletedEvent{
		TransactionID:            tx.ID,
		Type:                     string(tx.Type),
		SourceAccountNumber:      tx.SourceAccountNumber,
		DestinationAccountNumber: tx.DestinationAccountNumber,
		LocalAccountNumbers:      local,
		Amount:                   tx.Amount,
		Fee:                      tx.Fee,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to publish transaction.completed", "transaction_id", tx.ID, "error", err)
	}
}
