package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/database"
	"github.com/eaglebank/platform/shared/events"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/utils"
	"github.com/shopspring/decimal"
)

const (
	sortCode       = "10-10-10"
	currency       = "GBP"
	openAttempts   = 3
	onboardingName = "Current Account"
	onboardingType = "personal"
)

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Deactivate(ctx context.Context, accountNumber string) (bool, error)
	CountByUserID(ctx context.Context, userID string) (int, error)
}

type AccountViewCache interface {
	CacheAccountView(ctx context.Context, view *models.AccountView)
	RefreshAccountView(ctx context.Context, accountNumber string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// AccountCommandService writes account state and keeps the read model in sync.
type AccountCommandService struct {
	store     AccountStore
	views     AccountViewCache
	publisher EventPublisher
	logger    *slog.Logger
	newNumber func() string
	now       func() time.Time
}

func NewAccountCommandService(store AccountStore, views AccountViewCache, publisher EventPublisher, logger *slog.Logger) *AccountCommandService {
	return &AccountCommandService{
		store:     store,
		views:     views,
		publisher: publisher,
		logger:    logger,
		newNumber: utils.GenerateAccountNumber,
		now:       time.Now,
	}
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	now := s.now().UTC()
	account := &models.Account{
		UserID:      cmd.UserID,
		SortCode:    sortCode,
		Name:        cmd.Name,
		AccountType: cmd.AccountType,
		Balance:     decimal.Zero,
		Currency:    currency,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Numbers are random; retry the rare collision.
	var err error
	for i := 0; i < openAttempts; i++ {
		account.AccountNumber = s.newNumber()
		if err = s.store.Create(ctx, account); !database.IsUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, bankerr.Unexpected("failed to open account", err)
	}

	s.views.CacheAccountView(ctx, accountToView(account))
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, events.AccountOpened, events.AccountOpenedEvent{
		AccountNumber: account.AccountNumber,
		UserID:        account.UserID,
		Name:          account.Name,
		AccountType:   account.AccountType,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish account.opened event", "account_number", account.AccountNumber, "error", err)
	}
	s.logger.InfoContext(ctx, "account opened", "account_number", account.AccountNumber, "user_id", account.UserID)
	return account, nil
}

func (s *AccountCommandService) UpdateAccount(ctx context.Context, cmd cqrs.UpdateAccountCommand) (*models.AccountView, error) {
	account, err := s.owned(ctx, cmd.AccountNumber, cmd.RequestingUserID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, bankerr.Validation("account %s is deactivated", account.AccountNumber)
	}
	if cmd.Name != "" {
		account.Name = cmd.Name
	}
	if cmd.AccountType != "" {
		account.AccountType = cmd.AccountType
	}
	account.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, account); err != nil {
		return nil, storeError(err)
	}

	view := accountToView(account)
	s.views.CacheAccountView(ctx, view)
	return view, nil
}

// DeactivateAccount closes an account. Only empty accounts can be closed, so
// no money is ever stranded on an inactive account.
func (s *AccountCommandService) DeactivateAccount(ctx context.Context, cmd cqrs.DeactivateAccountCommand) error {
	account, err := s.owned(ctx, cmd.AccountNumber, cmd.RequestingUserID)
	if err != nil {
		return err
	}
	if !account.Active {
		return bankerr.Validation("account %s is already deactivated", account.AccountNumber)
	}
	if !account.Balance.IsZero() {
		return bankerr.Validation("account %s still holds %s %s", account.AccountNumber, account.Balance.StringFixed(2), account.Currency)
	}

	ok, err := s.store.Deactivate(ctx, account.AccountNumber)
	if err != nil {
		return bankerr.Unexpected("failed to deactivate account", err)
	}
	if !ok {
		// A transfer landed between the read and the update.
		return bankerr.Validation("account %s balance changed, retry", account.AccountNumber)
	}

	if err := s.views.RefreshAccountView(ctx, account.AccountNumber); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh account view", "account_number", account.AccountNumber, "error", err)
	}
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, events.AccountDeactivated, events.AccountDeactivatedEvent{
		AccountNumber: account.AccountNumber,
		UserID:        account.UserID,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish account.deactivated event", "account_number", account.AccountNumber, "error", err)
	}
	return nil
}

// HandleTransactionEvent refreshes the cached views of every local account a
// completed transaction touched. Refreshing is idempotent, so redelivery is
// harmless. Returning an error leaves the message pending for a retry.
func (s *AccountCommandService) HandleTransactionEvent(ctx context.Context, event events.Event) error {
	if event.Type != events.TransactionCompleted {
		return nil
	}
	var data events.TransactionCompletedEvent
	if err := event.Decode(&data); err != nil {
		return err
	}

	var errs []error
	for _, accountNumber := range data.LocalAccountNumbers {
		if err := s.views.RefreshAccountView(ctx, accountNumber); err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", accountNumber, err))
		}
	}
	s.logger.DebugContext(ctx, "account views refreshed", "transaction_id", data.TransactionID, "accounts", data.LocalAccountNumbers)
	return errors.Join(errs...)
}

// HandleUserEvent opens the first account of a newly registered customer.
// Customers who already have an account are skipped, which makes redelivery
// safe.
func (s *AccountCommandService) HandleUserEvent(ctx context.Context, event events.Event) error {
	if event.Type != events.UserCreated {
		return nil
	}
	var data events.UserCreatedEvent
	if err := event.Decode(&data); err != nil {
		return err
	}

	count, err := s.store.CountByUserID(ctx, data.UserID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = s.CreateAccount(ctx, cqrs.CreateAccountCommand{
		UserID:      data.UserID,
		Name:        onboardingName,
		AccountType: onboardingType,
	})
	return err
}

func (s *AccountCommandService) owned(ctx context.Context, accountNumber, userID string) (*models.Account, error) {
	account, err := s.store.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, storeError(err)
	}
	if account.UserID != userID {
		return nil, bankerr.ErrForbidden
	}
	return account, nil
}

func storeError(err error) error {
	var appErr *bankerr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return bankerr.Unexpected("account store failure", err)
}

// accountToView converts the PostgreSQL write model to the Redis read view model.
func accountToView(a *models.Account) *models.AccountView {
	return &models.AccountView{
		AccountNumber: a.AccountNumber,
		UserID:        a.UserID,
		SortCode:      a.SortCode,
		Name:          a.Name,
		AccountType:   a.AccountType,
		Balance:       a.Balance,
		Currency:      a.Currency,
		Active:        a.Active,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
