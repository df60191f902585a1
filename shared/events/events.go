package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	UserCreated = "user.created"

	AccountOpened      = "account.opened"
	AccountDeactivated = "account.deactivated"

	TransactionCompleted = "transaction.completed"
)

// Stream names
const (
	UserEventsStream        = "user.events"
	AccountEventsStream     = "account.events"
	TransactionEventsStream = "transaction.events"
)

// Event is the envelope written to every stream. ID is unique per publish
// and is what consumers log when a delivery fails.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", e.Type, err)
	}
	return nil
}

type UserCreatedEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type AccountOpenedEvent struct {
	AccountNumber string `json:"accountNumber"`
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	AccountType   string `json:"accountType"`
}

type AccountDeactivatedEvent struct {
	AccountNumber string `json:"accountNumber"`
	UserID        string `json:"userId"`
}

// TransactionCompletedEvent is published after the ledger commit. Local
// account numbers are the ones whose balances changed; either side may be
// empty when the counterpart lives at another bank.
type TransactionCompletedEvent struct {
	TransactionID            string          `json:"transactionId"`
	Type                     string          `json:"type"`
	SourceAccountNumber      string          `json:"sourceAccountNumber"`
	DestinationAccountNumber string          `json:"destinationAccountNumber"`
	LocalAccountNumbers      []string        `json:"localAccountNumbers"`
	Amount                   decimal.Decimal `json:"amount"`
	Fee                      decimal.Decimal `json:"fee"`
}
