package cqrs

import (
	"github.com/eaglebank/platform/shared/models"
	"github.com/shopspring/decimal"
)

// ---------- User commands ----------

type CreateUserCommand struct {
	Name        string
	Email       string
	Password    string
	PhoneNumber string
	Address     models.Address
}

// UpdateUserCommand is a partial update; nil fields are left unchanged.
type UpdateUserCommand struct {
	UserID      string
	Name        *string
	Email       *string
	PhoneNumber *string
	Address     *models.Address
}

type DeleteUserCommand struct {
	UserID string
}

// ---------- Account commands ----------

type CreateAccountCommand struct {
	UserID      string
	Name        string
	AccountType string
}

type UpdateAccountCommand struct {
	AccountNumber    string
	RequestingUserID string
	Name             string
	AccountType      string
}

// DeactivateAccountCommand closes an account. Accounts are never removed.
type DeactivateAccountCommand struct {
	AccountNumber    string
	RequestingUserID string
}

// ---------- Auth commands ----------

type LoginCommand struct {
	Email    string
	Password string
}

type RefreshTokenCommand struct {
	Token string
}

// ---------- Money movement commands ----------

// IssueOTPCommand mails a fresh one-time password to the user.
type IssueOTPCommand struct {
	UserID  string
	Email   string
	Purpose string
}

// TransferCommand moves money between two accounts of this bank. An empty
// SourceAccountNumber selects the caller's primary account.
type TransferCommand struct {
	UserID                   string
	SourceAccountNumber      string
	DestinationAccountNumber string
	Amount                   decimal.Decimal
	FeePayer                 models.FeePayer
	Message                  string
	OTP                      string
	RequireOTP               bool
}

// ExternalTransferCommand sends money to an account at another bank.
type ExternalTransferCommand struct {
	UserID                   string
	SourceAccountNumber      string
	DestinationBankCode      string
	DestinationAccountNumber string
	Amount                   decimal.Decimal
	FeePayer                 models.FeePayer
	Message                  string
	OTP                      string
}

// DepositRequest is the body a remote bank posts to credit one of our
// accounts. Its fields are checked by the receiver only after the request
// has been authenticated.
type DepositRequest struct {
	SenderAccountNumber   string          `json:"senderAccountNumber"`
	ReceiverAccountNumber string          `json:"receiverAccountNumber"`
	Amount                decimal.Decimal `json:"amount"`
	Content               string          `json:"content"`
}

// DepositCommand is an inbound interbank deposit with its security headers.
type DepositCommand struct {
	Request        DepositRequest
	CallerBankCode string
	Timestamp      string
	HMAC           string
	Signature      string
}

// ---------- Debt reminder commands ----------

type CreateDebtReminderCommand struct {
	UserID                string
	CreditorAccountNumber string
	DebtorAccountNumber   string
	Amount                decimal.Decimal
	Message               string
}

type CancelDebtReminderCommand struct {
	UserID     string
	ReminderID string
}

type PayDebtReminderCommand struct {
	UserID     string
	ReminderID string
	OTP        string
}
