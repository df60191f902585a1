package models

import (
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/shopspring/decimal"
)

type Address struct {
	Line1    string `json:"line1" validate:"required"`
	Line2    string `json:"line2,omitempty"`
	Line3    string `json:"line3,omitempty"`
	Town     string `json:"town" validate:"required"`
	County   string `json:"county" validate:"required"`
	Postcode string `json:"postcode" validate:"required"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PhoneNumber  string    `json:"phoneNumber"`
	Address      Address   `json:"address"`
	CreatedAt    time.Time `json:"createdTimestamp"`
	UpdatedAt    time.Time `json:"updatedTimestamp"`
}

// Account is a customer account held at this bank. Balance never goes below
// zero; accounts are deactivated instead of deleted.
type Account struct {
	AccountNumber string          `json:"accountNumber"`
	UserID        string          `json:"-"`
	SortCode      string          `json:"sortCode"`
	Name          string          `json:"name"`
	AccountType   string          `json:"accountType"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	UpdatedAt     time.Time       `json:"updatedTimestamp"`
}

type TransactionType string

const (
	TransactionInternalTransfer  TransactionType = "internal-transfer"
	TransactionInterbankTransfer TransactionType = "interbank-transfer"
	TransactionDeposit           TransactionType = "deposit"
	TransactionDebtPayment       TransactionType = "debt-payment"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
)

type FeePayer string

const (
	FeePayerSender   FeePayer = "sender"
	FeePayerReceiver FeePayer = "receiver"
)

// Transaction records one movement of money. A nil bank code means this bank.
// Failed transactions are deleted, so Status is only ever PENDING or COMPLETED.
type Transaction struct {
	ID                       string            `json:"id"`
	Type                     TransactionType   `json:"type"`
	SourceBankCode           *string           `json:"sourceBankCode,omitempty"`
	SourceAccountNumber      string            `json:"sourceAccountNumber"`
	DestinationBankCode      *string           `json:"destinationBankCode,omitempty"`
	DestinationAccountNumber string            `json:"destinationAccountNumber"`
	Amount                   decimal.Decimal   `json:"amount"`
	Fee                      decimal.Decimal   `json:"fee"`
	FeePayer                 FeePayer          `json:"feePayer"`
	Status                   TransactionStatus `json:"status"`
	Message                  string            `json:"message,omitempty"`
	InitiatedBy              string            `json:"-"`
	CreatedAt                time.Time         `json:"createdTimestamp"`
	UpdatedAt                time.Time         `json:"updatedTimestamp"`
}

// Validate checks the structural invariants of a transaction before it is
// persisted.
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return bankerr.Validation("amount must be greater than zero")
	}
	if t.Fee.IsNegative() {
		return bankerr.Validation("fee must not be negative")
	}
	if t.FeePayer != FeePayerSender && t.FeePayer != FeePayerReceiver {
		return bankerr.Validation("fee payer must be %q or %q", FeePayerSender, FeePayerReceiver)
	}
	if t.Status != StatusPending && t.Status != StatusCompleted {
		return bankerr.Validation("invalid transaction status %q", t.Status)
	}
	external := t.SourceBankCode != nil || t.DestinationBankCode != nil
	switch t.Type {
	case TransactionInternalTransfer, TransactionDebtPayment:
		if external {
			return bankerr.Validation("%s transactions cannot reference another bank", t.Type)
		}
	case TransactionInterbankTransfer:
		if t.SourceBankCode != nil || t.DestinationBankCode == nil {
			return bankerr.Validation("interbank transfers need a destination bank only")
		}
	case TransactionDeposit:
		if t.SourceBankCode == nil || t.DestinationBankCode != nil {
			return bankerr.Validation("deposits need a source bank only")
		}
	default:
		return bankerr.Validation("unknown transaction type %q", t.Type)
	}
	return nil
}

// Bank is a registered counterpart bank.
type Bank struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	APIEndpoint    string `json:"apiEndpoint"`
	PublicKeyPEM   string `json:"publicKey"`
	SharedSecret   string `json:"-"`
	SecurityScheme string `json:"securityScheme"`
}

type DebtReminderStatus string

const (
	DebtUnpaid    DebtReminderStatus = "UNPAID"
	DebtPaid      DebtReminderStatus = "PAID"
	DebtCancelled DebtReminderStatus = "CANCELLED"
)

// DebtReminder asks the owner of DebtorAccountNumber to pay the creditor.
type DebtReminder struct {
	ID                    string             `json:"id"`
	CreditorAccountNumber string             `json:"creditorAccountNumber"`
	DebtorAccountNumber   string             `json:"debtorAccountNumber"`
	Amount                decimal.Decimal    `json:"amount"`
	Message               string             `json:"message,omitempty"`
	Status                DebtReminderStatus `json:"status"`
	CreatedBy             string             `json:"-"`
	PaymentTransactionID  *string            `json:"paymentTransactionId,omitempty"`
	CreatedAt             time.Time          `json:"createdTimestamp"`
	UpdatedAt             time.Time          `json:"updatedTimestamp"`
}
