package query

import (
	"context"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/models"
)

type AccountNumberLister interface {
	NumbersForUser(ctx context.Context, userID string) ([]string, error)
}

type DebtReminderReader interface {
	ListForAccounts(ctx context.Context, accountNumbers []string) ([]models.DebtReminder, error)
}

type DebtReminderQueryService struct {
	accounts  AccountNumberLister
	reminders DebtReminderReader
}

func NewDebtReminderQueryService(accounts AccountNumberLister, reminders DebtReminderReader) *DebtReminderQueryService {
	return &DebtReminderQueryService{accounts: accounts, reminders: reminders}
}

// ListDebtReminders returns reminders sent or received by any of the user's accounts.
func (s *DebtReminderQueryService) ListDebtReminders(ctx context.Context, q cqrs.ListDebtRemindersQuery) ([]models.DebtReminder, error) {
	numbers, err := s.accounts.NumbersForUser(ctx, q.UserID)
	if err != nil {
		return nil, bankerr.Unexpected("failed to list accounts", err)
	}
	reminders, err := s.reminders.ListForAccounts(ctx, numbers)
	if err != nil {
		return nil, bankerr.Unexpected("failed to list debt reminders", err)
	}
	return reminders, nil
}
