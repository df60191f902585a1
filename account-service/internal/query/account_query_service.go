package query

import (
	"context"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/models"
)

type AccountViewReader interface {
	GetByAccountNumber(ctx context.Context, accountNumber string) (*models.AccountView, error)
	ListByUserID(ctx context.Context, userID string) ([]models.AccountView, error)
}

type AccountQueryService struct {
	views AccountViewReader
}

func NewAccountQueryService(views AccountViewReader) *AccountQueryService {
	return &AccountQueryService{views: views}
}

// GetAccount fetches a single account view and enforces ownership.
func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	view, err := s.views.GetByAccountNumber(ctx, q.AccountNumber)
	if err != nil {
		return nil, err
	}
	// The AccountView carries UserID (json:"-") for this check.
	if view.UserID != q.RequestingUserID {
		return nil, bankerr.ErrForbidden
	}
	return view, nil
}

func (s *AccountQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	return s.views.ListByUserID(ctx, q.UserID)
}
