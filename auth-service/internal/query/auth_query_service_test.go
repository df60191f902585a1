package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/middleware"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/utils"
)

var testSecret = []byte("test-secret")

type fakeCredentials struct {
	users map[string]*models.User
	err   error
}

func (f *fakeCredentials) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok {
		return nil, bankerr.NotFound("user not found")
	}
	return u, nil
}

func newService(t *testing.T) *AuthQueryService {
	t.Helper()
	hash, err := utils.HashPassword("securepass123")
	if err != nil {
		t.Fatal(err)
	}
	store := &fakeCredentials{users: map[string]*models.User{
		"alice@example.com": {ID: "usr-abc123", Email: "alice@example.com", PasswordHash: hash},
	}}
	return NewAuthQueryService(store, testSecret, time.Hour)
}

func TestLogin(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		name    string
		cmd     cqrs.LoginCommand
		wantErr error
	}{
		{name: "valid credentials", cmd: cqrs.LoginCommand{Email: "alice@example.com", Password: "securepass123"}},
		{name: "wrong password", cmd: cqrs.LoginCommand{Email: "alice@example.com", Password: "nope"}, wantErr: ErrInvalidCredentials},
		{name: "unknown email", cmd: cqrs.LoginCommand{Email: "bob@example.com", Password: "securepass123"}, wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := svc.Login(context.Background(), tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			claims, err := middleware.ParseToken(token, testSecret)
			if err != nil {
				t.Fatalf("token does not verify: %v", err)
			}
			if claims.UserID != "usr-abc123" || claims.Email != "alice@example.com" {
				t.Errorf("unexpected claims: %+v", claims)
			}
		})
	}
}

func TestLoginStoreFailureIsUnexpected(t *testing.T) {
	svc := NewAuthQueryService(&fakeCredentials{err: errors.New("connection refused")}, testSecret, time.Hour)
	_, err := svc.Login(context.Background(), cqrs.LoginCommand{Email: "alice@example.com", Password: "x"})
	if bankerr.KindOf(err) != bankerr.KindUnexpected {
		t.Fatalf("expected unexpected kind, got %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	svc := newService(t)
	token, err := svc.Login(context.Background(), cqrs.LoginCommand{Email: "alice@example.com", Password: "securepass123"})
	if err != nil {
		t.Fatal(err)
	}

	refreshed, err := svc.RefreshToken(context.Background(), cqrs.RefreshTokenCommand{Token: token})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := middleware.ParseToken(refreshed, testSecret); err != nil {
		t.Errorf("refreshed token does not verify: %v", err)
	}

	other := NewAuthQueryService(&fakeCredentials{}, []byte("other-secret"), time.Hour)
	if _, err := other.RefreshToken(context.Background(), cqrs.RefreshTokenCommand{Token: token}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected invalid token for foreign signature, got %v", err)
	}
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	svc := newService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.Login(context.Background(), cqrs.LoginCommand{Email: "alice@example.com", Password: "securepass123"})
	if err != nil {
		t.Fatal(err)
	}
	svc.now = time.Now
	if _, err := svc.RefreshToken(context.Background(), cqrs.RefreshTokenCommand{Token: token}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected expired token to be rejected, got %v", err)
	}
}
