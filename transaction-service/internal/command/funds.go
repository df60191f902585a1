package command

import (
	"context"
	"errors"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
	"github.com/shopspring/decimal"
)

const maxMessageLength = 255

// quote is the priced form of a requested amount.
type quote struct {
	fee    decimal.Decimal
	debit  decimal.Decimal
	credit decimal.Decimal
}

func validateMovement(amount decimal.Decimal, payer models.FeePayer, message string) (models.FeePayer, error) {
	if !amount.IsPositive() {
		return "", bankerr.Validation("amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return "", bankerr.Validation("amount must have at most two decimal places")
	}
	if len(message) > maxMessageLength {
		return "", bankerr.Validation("message must be at most %d characters", maxMessageLength)
	}
	switch payer {
	case "":
		return models.FeePayerSender, nil
	case models.FeePayerSender, models.FeePayerReceiver:
		return payer, nil
	}
	return "", bankerr.Validation("fee payer must be %q or %q", models.FeePayerSender, models.FeePayerReceiver)
}

// resolveSource picks the account money leaves from: the named one if the
// user owns it, otherwise the user's primary account.
func resolveSource(ctx context.Context, accounts AccountReader, userID, accountNumber string) (*models.Account, error) {
	if accountNumber == "" {
		acc, err := accounts.PrimaryForUser(ctx, userID)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, bankerr.NotFound("you have no active account to pay from")
		}
		if err != nil {
			return nil, bankerr.Unexpected("failed to load source account", err)
		}
		return acc, nil
	}

	acc, err := accounts.GetByNumber(ctx, accountNumber)
	if errors.Is(err, repository.ErrAccountNotFound) || (err == nil && !acc.Active) {
		return nil, bankerr.NotFound("account %s not found", accountNumber)
	}
	if err != nil {
		return nil, bankerr.Unexpected("failed to load source account", err)
	}
	if acc.UserID != userID {
		return nil, bankerr.New(bankerr.KindForbidden, "you can only transfer from your own accounts")
	}
	return acc, nil
}

// price applies the fee policy and checks the source balance covers the
// debit. The balance read here is advisory; the ledger debit re-checks it.
func price(fees models.FeePolicy, source *models.Account, amount decimal.Decimal, payer models.FeePayer) (quote, error) {
	fee := fees.Fee(amount, payer)
	if fee.IsNegative() {
		return quote{}, bankerr.Unexpected("fee policy returned a negative fee", nil)
	}
	q := quote{
		fee:    fee,
		debit:  models.DebitAmount(amount, fee, payer),
		credit: models.CreditAmount(amount, fee, payer),
	}
	if !q.credit.IsPositive() {
		return quote{}, bankerr.Validation("amount does not cover the transfer fee")
	}
	if source.Balance.LessThan(q.debit) {
		return quote{}, bankerr.ErrInsufficientFunds
	}
	return q, nil
}

// ledgerError keeps business outcomes from inside a ledger transaction and
// wraps everything else as a fault.
func ledgerError(err error) error {
	var be *bankerr.Error
	if errors.As(err, &be) {
		return err
	}
	return bankerr.Unexpected("ledger update failed", err)
}
