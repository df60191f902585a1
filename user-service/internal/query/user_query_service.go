package query

import (
	"context"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/models"
)

type UserViewReader interface {
	GetByID(ctx context.Context, id string) (*models.UserView, error)
}

// UserQueryService reads user views from the Redis cache (with a Postgres fallback).
type UserQueryService struct {
	views UserViewReader
}

func NewUserQueryService(views UserViewReader) *UserQueryService {
	return &UserQueryService{views: views}
}

func (s *UserQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	if q.UserID != q.RequestingUserID {
		return nil, bankerr.ErrForbidden
	}
	return s.views.GetByID(ctx, q.UserID)
}
