package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/crypto"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/otp"
	"github.com/eaglebank/platform/shared/utils"
	"github.com/eaglebank/platform/transaction-service/internal/interbank"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
	"github.com/shopspring/decimal"
)

type InterbankSettings struct {
	BankCode     string
	ReplayWindow time.Duration
}

// InterbankCommandService sends transfers to counterpart banks and credits
// deposits they send us.
//
// Outbound, the debit is taken together with the PENDING row before the
// remote bank is called, and released again if the call fails. A crash while
// funds are held leaves a PENDING row for the sweeper and needs
// reconciliation with the remote bank.
type InterbankCommandService struct {
	settings  InterbankSettings
	accounts  AccountReader
	banks     BankDirectory
	ledger    Ledger
	gate      OTPGate
	fees      models.FeePolicy
	remote    DepositSender
	cache     TransactionCache
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewInterbankCommandService(
	settings InterbankSettings,
	accounts AccountReader,
	banks BankDirectory,
	ledger Ledger,
	gate OTPGate,
	fees models.FeePolicy,
	remote DepositSender,
	cache TransactionCache,
	publisher EventPublisher,
	logger *slog.Logger,
) *InterbankCommandService {
	return &InterbankCommandService{
		settings:  settings,
		accounts:  accounts,
		banks:     banks,
		ledger:    ledger,
		gate:      gate,
		fees:      fees,
		remote:    remote,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// TransferExternal sends money to an account at another bank. A rejection by
// the remote bank is reported as an unsuccessful result, not an error.
func (s *InterbankCommandService) TransferExternal(ctx context.Context, cmd cqrs.ExternalTransferCommand) (*cqrs.TransferResult, error) {
	logger := s.logger.With("user_id", cmd.UserID, "type", models.TransactionInterbankTransfer, "bank_code", cmd.DestinationBankCode)
	state := cqrs.StateValidating

	fail := func(err error) (*cqrs.TransferResult, error) {
		if bankerr.IsExpected(err) {
			logger.InfoContext(ctx, "external transfer rejected", "state", state, "reason", err.Error())
		} else {
			logger.ErrorContext(ctx, "external transfer failed", "state", state, "error", err)
		}
		return nil, err
	}

	payer, err := validateMovement(cmd.Amount, cmd.FeePayer, cmd.Message)
	if err != nil {
		return fail(err)
	}
	if cmd.DestinationAccountNumber == "" {
		return fail(bankerr.Validation("destination account number is required"))
	}
	if strings.EqualFold(cmd.DestinationBankCode, s.settings.BankCode) {
		return fail(bankerr.Validation("use an internal transfer for accounts at this bank"))
	}
	source, err := resolveSource(ctx, s.accounts, cmd.UserID, cmd.SourceAccountNumber)
	if err != nil {
		return fail(err)
	}
	bank, err := s.banks.GetByCode(ctx, cmd.DestinationBankCode)
	if errors.Is(err, repository.ErrBankNotFound) {
		return fail(bankerr.NotFound("bank %s is not registered", cmd.DestinationBankCode))
	}
	if err != nil {
		return fail(bankerr.Unexpected("failed to load destination bank", err))
	}

	state = cqrs.StateOTPChecking
	if err := s.gate.Require(ctx, cmd.UserID, otp.PurposeInterbankTransfer, cmd.OTP); err != nil {
		return fail(err)
	}

	state = cqrs.StateFundsChecking
	q, err := price(s.fees, source, cmd.Amount, payer)
	if err != nil {
		return fail(err)
	}

	now := s.now().UTC()
	tx := &models.Transaction{
		ID:                       utils.NewTransactionID(),
		Type:                     models.TransactionInterbankTransfer,
		SourceAccountNumber:      source.AccountNumber,
		DestinationBankCode:      &bank.Code,
		DestinationAccountNumber: cmd.DestinationAccountNumber,
		Amount:                   cmd.Amount,
		Fee:                      q.fee,
		FeePayer:                 payer,
		Status:                   models.StatusPending,
		Message:                  cmd.Message,
		InitiatedBy:              cmd.UserID,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := tx.Validate(); err != nil {
		return fail(err)
	}
	// The PENDING row and the debit commit together, so concurrent transfers
	// from one account cannot both spend the same balance.
	state = cqrs.StateDebiting
	var reserved decimal.Decimal
	err = s.ledger.WithinTx(ctx, func(ltx repository.LedgerTx) error {
		if err := ltx.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		balance, err := ltx.Debit(ctx, source.AccountNumber, q.debit)
		if err != nil {
			return err
		}
		reserved = balance
		return nil
	})
	if err != nil {
		return fail(ledgerError(err))
	}
	logger = logger.With("transaction_id", tx.ID)

	// From here on the funds are held. The remote call and whatever follows it
	// must finish even if the customer goes away.
	detached := context.WithoutCancel(ctx)

	ack, err := s.remote.Deposit(detached, bank, cqrs.DepositRequest{
		SenderAccountNumber:   source.AccountNumber,
		ReceiverAccountNumber: cmd.DestinationAccountNumber,
		Amount:                q.credit,
		Content:               cmd.Message,
	})
	if err != nil {
		balance, released := s.release(detached, logger, tx, q.debit)
		if !released {
			balance = reserved
		}
		state = cqrs.StateFailedRolledBack
		var be *bankerr.Error
		if errors.Is(err, bankerr.ErrRemoteTransfer) && errors.As(err, &be) {
			logger.WarnContext(ctx, "remote bank rejected transfer", "reason", be.Message, "error", err)
			return &cqrs.TransferResult{
				Success:      false,
				State:        state,
				Amount:       cmd.Amount,
				Fee:          q.fee,
				Message:      cmd.Message,
				NewBalance:   balance,
				ErrorMessage: fmt.Sprintf("remote bank %s rejected the transfer: %s", bank.Code, be.Message),
			}, nil
		}
		return fail(ledgerError(err))
	}
	if ack == nil {
		ack = &cqrs.DepositResult{}
	}

	state = cqrs.StateCompleted
	err = s.ledger.WithinTx(detached, func(ltx repository.LedgerTx) error {
		return ltx.MarkCompleted(detached, tx.ID)
	})
	if err != nil {
		logger.ErrorContext(ctx, "remote bank accepted deposit but the transfer could not be marked completed; reconcile manually",
			"remote_transaction_id", ack.TransactionID,
			"source", source.AccountNumber,
			"destination", cmd.DestinationAccountNumber,
			"amount", cmd.Amount.String(),
			"debit", q.debit.String(),
			"error", err,
		)
		return nil, bankerr.Unexpected("transfer could not be settled", err)
	}

	tx.Status = models.StatusCompleted
	s.cache.CacheTransaction(detached, tx)
	publishCompleted(detached, s.publisher, logger, tx, source.AccountNumber)
	logger.InfoContext(ctx, "external transfer completed",
		"remote_transaction_id", ack.TransactionID,
		"source", source.AccountNumber,
		"destination", cmd.DestinationAccountNumber,
		"amount", cmd.Amount.String(),
	)

	return &cqrs.TransferResult{
		Success:       true,
		TransactionID: tx.ID,
		State:         cqrs.StateCompleted,
		Amount:        cmd.Amount,
		Fee:           q.fee,
		Message:       cmd.Message,
		NewBalance:    reserved,
	}, nil
}

// release returns held funds to the source account and removes the PENDING
// row. On failure the row stays for the sweeper.
func (s *InterbankCommandService) release(ctx context.Context, logger *slog.Logger, tx *models.Transaction, amount decimal.Decimal) (decimal.Decimal, bool) {
	var balance decimal.Decimal
	err := s.ledger.WithinTx(ctx, func(ltx repository.LedgerTx) error {
		if err := ltx.DeleteTransaction(ctx, tx.ID); err != nil {
			return err
		}
		b, err := ltx.Release(ctx, tx.SourceAccountNumber, amount)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to release held funds, left for the pending sweeper",
			"source", tx.SourceAccountNumber, "amount", amount.String(), "error", err)
		return decimal.Zero, false
	}
	return balance, true
}

// ReceiveDeposit credits a deposit sent by a counterpart bank. The request is
// authenticated before its fields are looked at, and every check runs before
// anything is written. The transaction row and the credit commit together.
func (s *InterbankCommandService) ReceiveDeposit(ctx context.Context, cmd cqrs.DepositCommand) (*cqrs.DepositResult, error) {
	logger := s.logger.With("caller_bank", cmd.CallerBankCode, "receiver", cmd.Request.ReceiverAccountNumber)
	reject := func(err error) (*cqrs.DepositResult, error) {
		if bankerr.IsExpected(err) {
			logger.WarnContext(ctx, "inbound deposit rejected", "kind", bankerr.KindOf(err).String(), "reason", err.Error())
		} else {
			logger.ErrorContext(ctx, "inbound deposit failed", "error", err)
		}
		return nil, err
	}

	ts, err := interbank.ParseTimestamp(cmd.Timestamp)
	if err != nil || !interbank.WithinWindow(ts, s.now(), s.settings.ReplayWindow) {
		return reject(bankerr.ErrExpiredRequest)
	}

	bank, err := s.banks.GetByCode(ctx, cmd.CallerBankCode)
	if errors.Is(err, repository.ErrBankNotFound) {
		return reject(bankerr.ErrUnknownBank)
	}
	if err != nil {
		return reject(bankerr.Unexpected("failed to load caller bank", err))
	}

	req := cmd.Request
	canonical := crypto.CanonicalDeposit(crypto.DepositFields{
		SenderAccountNumber:   req.SenderAccountNumber,
		ReceiverAccountNumber: req.ReceiverAccountNumber,
		Amount:                req.Amount,
		Content:               req.Content,
	})
	if err := crypto.VerifyHMAC(canonical, cmd.HMAC, bank.SharedSecret, cmd.Timestamp, cmd.CallerBankCode); err != nil {
		return reject(err)
	}
	if err := crypto.Verify(canonical, cmd.Signature, bank.PublicKeyPEM); err != nil {
		return reject(err)
	}

	if err := checkDeposit(req); err != nil {
		return reject(err)
	}
	receiver, err := s.accounts.GetByNumber(ctx, req.ReceiverAccountNumber)
	if errors.Is(err, repository.ErrAccountNotFound) || (err == nil && !receiver.Active) {
		return reject(bankerr.NotFound("account %s not found", req.ReceiverAccountNumber))
	}
	if err != nil {
		return reject(bankerr.Unexpected("failed to load receiving account", err))
	}

	now := s.now().UTC()
	tx := &models.Transaction{
		ID:                       utils.NewTransactionID(),
		Type:                     models.TransactionDeposit,
		SourceBankCode:           &bank.Code,
		SourceAccountNumber:      req.SenderAccountNumber,
		DestinationAccountNumber: receiver.AccountNumber,
		Amount:                   req.Amount,
		Fee:                      decimal.Zero,
		FeePayer:                 models.FeePayerSender,
		Status:                   models.StatusCompleted,
		Message:                  req.Content,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := tx.Validate(); err != nil {
		return reject(err)
	}

	var newBalance decimal.Decimal
	err = s.ledger.WithinTx(ctx, func(ltx repository.LedgerTx) error {
		if err := ltx.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		balance, err := ltx.Credit(ctx, receiver.AccountNumber, req.Amount)
		if err != nil {
			return err
		}
		newBalance = balance
		return nil
	})
	if err != nil {
		return reject(ledgerError(err))
	}

	s.cache.CacheTransaction(ctx, tx)
	publishCompleted(ctx, s.publisher, logger, tx, receiver.AccountNumber)
	logger.InfoContext(ctx, "inbound deposit credited", "transaction_id", tx.ID, "amount", req.Amount.String())

	return &cqrs.DepositResult{
		TransactionID: tx.ID,
		AccountNumber: receiver.AccountNumber,
		NewBalance:    newBalance,
	}, nil
}

const maxExternalAccountLength = 34

// checkDeposit validates the fields of an authenticated deposit.
func checkDeposit(req cqrs.DepositRequest) error {
	if _, err := validateMovement(req.Amount, models.FeePayerSender, req.Content); err != nil {
		return err
	}
	if req.SenderAccountNumber == "" || len(req.SenderAccountNumber) > maxExternalAccountLength {
		return bankerr.Validation("sender account number must be 1 to %d characters", maxExternalAccountLength)
	}
	if !utils.ValidateAccountNumber(req.ReceiverAccountNumber) {
		return bankerr.Validation("receiver account number must be 8 digits starting with 01")
	}
	return nil
}
