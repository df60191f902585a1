package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/middleware"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/utils"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = bankerr.New(bankerr.KindForbidden, "invalid credentials")
	ErrInvalidToken       = bankerr.New(bankerr.KindForbidden, "invalid token")
)

type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthQueryService handles login and token refresh. There's no CommandService
// for auth because these operations don't mutate application state.
type AuthQueryService struct {
	users  CredentialStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthQueryService(users CredentialStore, secret []byte, ttl time.Duration) *AuthQueryService {
	return &AuthQueryService{users: users, secret: secret, ttl: ttl, now: time.Now}
}

func (s *AuthQueryService) Login(ctx context.Context, cmd cqrs.LoginCommand) (string, error) {
	user, err := s.users.GetByEmail(ctx, cmd.Email)
	if errors.Is(err, bankerr.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", bankerr.Unexpected("failed to load credentials", err)
	}
	if !utils.CheckPassword(cmd.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.generateToken(user.ID, user.Email)
}

func (s *AuthQueryService) RefreshToken(_ context.Context, cmd cqrs.RefreshTokenCommand) (string, error) {
	claims, err := middleware.ParseToken(cmd.Token, s.secret)
	if err != nil || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return s.generateToken(claims.UserID, claims.Email)
}

func (s *AuthQueryService) generateToken(userID, email string) (string, error) {
	now := s.now()
	claims := middleware.Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", bankerr.Unexpected("failed to generate token", fmt.Errorf("sign: %w", err))
	}
	return signed, nil
}
