package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/mail"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/otp"
	"github.com/eaglebank/platform/shared/utils"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
)

// DebtReminderCommandService lets a creditor ask a debtor for money and the
// debtor settle it with an OTP-confirmed transfer.
type DebtReminderCommandService struct {
	accounts  AccountReader
	reminders DebtReminderStore
	transfers *TransferCommandService
	mailer    mail.Mailer
	logger    *slog.Logger
	now       func() time.Time
}

func NewDebtReminderCommandService(
	accounts AccountReader,
	reminders DebtReminderStore,
	transfers *TransferCommandService,
	mailer mail.Mailer,
	logger *slog.Logger,
) *DebtReminderCommandService {
	return &DebtReminderCommandService{
		accounts:  accounts,
		reminders: reminders,
		transfers: transfers,
		mailer:    mailer,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *DebtReminderCommandService) Create(ctx context.Context, cmd cqrs.CreateDebtReminderCommand) (*models.DebtReminder, error) {
	if _, err := validateMovement(cmd.Amount, models.FeePayerSender, cmd.Message); err != nil {
		return nil, err
	}
	creditor, err := resolveSource(ctx, s.accounts, cmd.UserID, cmd.CreditorAccountNumber)
	if err != nil {
		return nil, err
	}
	debtor, err := s.activeAccount(ctx, cmd.DebtorAccountNumber)
	if err != nil {
		return nil, err
	}
	if debtor.AccountNumber == creditor.AccountNumber {
		return nil, bankerr.Validation("you cannot send a debt reminder to the same account")
	}

	now := s.now().UTC()
	reminder := &models.DebtReminder{
		ID:                    utils.NewTransactionID(),
		CreditorAccountNumber: creditor.AccountNumber,
		DebtorAccountNumber:   debtor.AccountNumber,
		Amount:                cmd.Amount,
		Message:               cmd.Message,
		Status:                models.DebtUnpaid,
		CreatedBy:             cmd.UserID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.reminders.Create(ctx, reminder); err != nil {
		return nil, bankerr.Unexpected("failed to create debt reminder", err)
	}

	s.notify(ctx, debtor.AccountNumber, "You have a new debt reminder",
		fmt.Sprintf("Account %s asks you to pay %s. Message: %s", creditor.AccountNumber, cmd.Amount.StringFixed(2), cmd.Message))
	s.logger.InfoContext(ctx, "debt reminder created", "reminder_id", reminder.ID, "user_id", cmd.UserID)
	return reminder, nil
}

// Cancel can be done by either party while the reminder is unpaid.
func (s *DebtReminderCommandService) Cancel(ctx context.Context, cmd cqrs.CancelDebtReminderCommand) error {
	reminder, err := s.load(ctx, cmd.ReminderID)
	if err != nil {
		return err
	}
	isCreditor, isDebtor, err := s.parties(ctx, cmd.UserID, reminder)
	if err != nil {
		return err
	}
	if !isCreditor && !isDebtor {
		return bankerr.New(bankerr.KindForbidden, "you are not a party to this debt reminder")
	}

	ok, err := s.reminders.Cancel(ctx, reminder.ID)
	if err != nil {
		return bankerr.Unexpected("failed to cancel debt reminder", err)
	}
	if !ok {
		return bankerr.Validation("debt reminder is no longer unpaid")
	}

	other := reminder.DebtorAccountNumber
	if isDebtor {
		other = reminder.CreditorAccountNumber
	}
	s.notify(ctx, other, "A debt reminder was cancelled",
		fmt.Sprintf("The reminder for %s between %s and %s was cancelled.",
			reminder.Amount.StringFixed(2), reminder.CreditorAccountNumber, reminder.DebtorAccountNumber))
	s.logger.InfoContext(ctx, "debt reminder cancelled", "reminder_id", reminder.ID, "user_id", cmd.UserID)
	return nil
}

// Pay transfers the reminder amount from the debtor to the creditor. The
// reminder is marked PAID in the same ledger transaction as the transfer.
func (s *DebtReminderCommandService) Pay(ctx context.Context, cmd cqrs.PayDebtReminderCommand) (*cqrs.TransferResult, error) {
	reminder, err := s.load(ctx, cmd.ReminderID)
	if err != nil {
		return nil, err
	}
	if reminder.Status != models.DebtUnpaid {
		return nil, bankerr.Validation("debt reminder is %s", reminder.Status)
	}
	_, isDebtor, err := s.parties(ctx, cmd.UserID, reminder)
	if err != nil {
		return nil, err
	}
	if !isDebtor {
		return nil, bankerr.New(bankerr.KindForbidden, "only the debtor can pay this debt reminder")
	}

	message := reminder.Message
	if message == "" {
		message = "Debt reminder payment"
	}
	result, err := s.transfers.move(ctx, movement{
		userID:             cmd.UserID,
		sourceAccount:      reminder.DebtorAccountNumber,
		destinationAccount: reminder.CreditorAccountNumber,
		amount:             reminder.Amount,
		payer:              models.FeePayerSender,
		message:            message,
		otp:                cmd.OTP,
		requireOTP:         true,
		purpose:            otp.PurposeDebtPayment,
		txType:             models.TransactionDebtPayment,
		reminderID:         reminder.ID,
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, reminder.CreditorAccountNumber, "Your debt reminder was paid",
		fmt.Sprintf("Account %s paid %s.", reminder.DebtorAccountNumber, reminder.Amount.StringFixed(2)))
	return result, nil
}

func (s *DebtReminderCommandService) load(ctx context.Context, id string) (*models.DebtReminder, error) {
	reminder, err := s.reminders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrReminderNotFound) {
		return nil, bankerr.NotFound("debt reminder not found")
	}
	if err != nil {
		return nil, bankerr.Unexpected("failed to load debt reminder", err)
	}
	return reminder, nil
}

func (s *DebtReminderCommandService) activeAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	acc, err := s.accounts.GetByNumber(ctx, accountNumber)
	if errors.Is(err, repository.ErrAccountNotFound) || (err == nil && !acc.Active) {
		return nil, bankerr.NotFound("account %s not found", accountNumber)
	}
	if err != nil {
		return nil, bankerr.Unexpected("failed to load account", err)
	}
	return acc, nil
}

// parties reports whether userID owns the creditor or the debtor account.
func (s *DebtReminderCommandService) parties(ctx context.Context, userID string, r *models.DebtReminder) (creditor, debtor bool, err error) {
	owns := func(accountNumber string) (bool, error) {
		acc, err := s.accounts.GetByNumber(ctx, accountNumber)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return false, nil
		}
		if err != nil {
			return false, bankerr.Unexpected("failed to load account", err)
		}
		return acc.UserID == userID, nil
	}
	if creditor, err = owns(r.CreditorAccountNumber); err != nil {
		return false, false, err
	}
	if debtor, err = owns(r.DebtorAccountNumber); err != nil {
		return false, false, err
	}
	return creditor, debtor, nil
}

// notify mails the holder of accountNumber. Reminder notifications are best
// effort; the reminder itself is already saved.
func (s *DebtReminderCommandService) notify(ctx context.Context, accountNumber, subject, body string) {
	holder, err := s.accounts.GetHolder(ctx, accountNumber)
	if err != nil {
		s.logger.WarnContext(ctx, "no holder to notify", "account_number", accountNumber, "error", err)
		return
	}
	if err := s.mailer.Send(ctx, holder.Email, subject, body); err != nil {
		s.logger.WarnContext(ctx, "debt reminder notification failed", "account_number", accountNumber, "error", err)
	}
}
