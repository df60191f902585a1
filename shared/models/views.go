package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserView is the read-optimised projection of a user.
// It never exposes PasswordHash.
type UserView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	Address     Address   `json:"address"`
	CreatedAt   time.Time `json:"createdTimestamp"`
	UpdatedAt   time.Time `json:"updatedTimestamp"`
}

// AccountView is the read-optimised projection of an account.
// UserID is populated for ownership checks but never serialised to the API response.
type AccountView struct {
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

// TransactionView is a transaction as seen from one account. Direction is
// "debit" when money left AccountNumber and "credit" when it arrived.
type TransactionView struct {
	ID                       string            `json:"id"`
	AccountNumber            string            `json:"accountNumber"`
	Direction                string            `json:"direction"`
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
	CreatedAt                time.Time         `json:"createdTimestamp"`
}

// BankView is the public listing of a counterpart bank.
type BankView struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ExternalAccountView is what a counterpart bank reveals about one of its accounts.
type ExternalAccountView struct {
	BankCode      string `json:"bankCode,omitempty"`
	AccountNumber string `json:"accountNumber"`
	Name          string `json:"name"`
}

// ViewFor projects t onto accountNumber.
func (t *Transaction) ViewFor(accountNumber string) TransactionView {
	direction := "credit"
	if t.SourceBankCode == nil && t.SourceAccountNumber == accountNumber {
		direction = "debit"
	}
	return TransactionView{
		ID:                       t.ID,
		AccountNumber:            accountNumber,
		Direction:                direction,
		Type:                     t.Type,
		SourceBankCode:           t.SourceBankCode,
		SourceAccountNumber:      t.SourceAccountNumber,
		DestinationBankCode:      t.DestinationBankCode,
		DestinationAccountNumber: t.DestinationAccountNumber,
		Amount:                   t.Amount,
		Fee:                      t.Fee,
		FeePayer:                 t.FeePayer,
		Status:                   t.Status,
		Message:                  t.Message,
		CreatedAt:                t.CreatedAt,
	}
}
