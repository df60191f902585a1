package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/events"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/utils"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	HasActiveAccounts(ctx context.Context, userID string) (bool, error)
}

type UserViewCache interface {
	CacheUserView(ctx context.Context, view *models.UserView)
	InvalidateUserView(ctx context.Context, userID string)
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// UserCommandService writes user state to PostgreSQL and keeps the Redis
// read model up to date.
type UserCommandService struct {
	store     UserStore
	views     UserViewCache
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewUserCommandService(store UserStore, views UserViewCache, publisher EventPublisher, logger *slog.Logger) *UserCommandService {
	return &UserCommandService{
		store:     store,
		views:     views,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateUser registers a customer. The user.created event drives the opening
// of their first account in account-service.
func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.UserView, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, bankerr.Unexpected("failed to hash password", err)
	}
	now := s.now().UTC()
	user := &models.User{
		ID:           utils.GenerateID("usr"),
		Name:         cmd.Name,
		Email:        strings.ToLower(strings.TrimSpace(cmd.Email)),
		PasswordHash: passwordHash,
		PhoneNumber:  cmd.PhoneNumber,
		Address:      cmd.Address,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, storeError(err)
	}

	view := userToView(user)
	s.views.CacheUserView(ctx, view)
	if err := s.publisher.Publish(ctx, events.UserEventsStream, events.UserCreated, events.UserCreatedEvent{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish user.created event", "user_id", user.ID, "error", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return view, nil
}

func (s *UserCommandService) UpdateUser(ctx context.Context, cmd cqrs.UpdateUserCommand) (*models.UserView, error) {
	if cmd.Name == nil && cmd.Email == nil && cmd.PhoneNumber == nil && cmd.Address == nil {
		return nil, bankerr.Validation("no fields to update")
	}
	user, err := s.store.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, storeError(err)
	}
	if cmd.Name != nil {
		user.Name = *cmd.Name
	}
	if cmd.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*cmd.Email))
	}
	if cmd.PhoneNumber != nil {
		user.PhoneNumber = *cmd.PhoneNumber
	}
	if cmd.Address != nil {
		user.Address = *cmd.Address
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, storeError(err)
	}
	view := userToView(user)
	s.views.CacheUserView(ctx, view)
	return view, nil
}

// DeleteUser rejects the operation if the user still has open accounts.
func (s *UserCommandService) DeleteUser(ctx context.Context, cmd cqrs.DeleteUserCommand) error {
	active, err := s.store.HasActiveAccounts(ctx, cmd.UserID)
	if err != nil {
		return storeError(err)
	}
	if active {
		return bankerr.Validation("user has active accounts")
	}
	if err := s.store.Delete(ctx, cmd.UserID); err != nil {
		return storeError(err)
	}
	s.views.InvalidateUserView(ctx, cmd.UserID)
	return nil
}

func storeError(err error) error {
	var appErr *bankerr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return bankerr.Unexpected("user store failure", err)
}

func userToView(u *models.User) *models.UserView {
	return &models.UserView{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
