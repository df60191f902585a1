package cqrs

import "github.com/shopspring/decimal"

// TransferState is the last stage a transfer reached.
type TransferState string

const (
	StateValidating       TransferState = "VALIDATING"
	StateOTPChecking      TransferState = "OTP_CHECKING"
	StateFundsChecking    TransferState = "FUNDS_CHECKING"
	StateDebiting         TransferState = "DEBITING"
	StateCrediting        TransferState = "CREDITING"
	StateCompleted        TransferState = "COMPLETED"
	StateRejected         TransferState = "REJECTED"
	StateFailedRolledBack TransferState = "FAILED_ROLLED_BACK"
)

// TransferResult reports the outcome of a transfer. A remote rejection is a
// result with Success false, not an error.
type TransferResult struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId,omitempty"`
	State         TransferState   `json:"state"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Message       string          `json:"message,omitempty"`
	NewBalance    decimal.Decimal `json:"newBalance"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
}

// DepositResult is returned to the remote bank after a credited deposit.
type DepositResult struct {
	TransactionID string          `json:"transactionId"`
	AccountNumber string          `json:"accountNumber"`
	NewBalance    decimal.Decimal `json:"newBalance"`
}
