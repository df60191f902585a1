// Package otp issues and checks the one-time passwords that authorise money
// movements. Codes live only in Redis and are consumed on first successful use.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/mail"
	sharedredis "github.com/eaglebank/platform/shared/redis"
)

type Purpose string

const (
	PurposeTransfer          Purpose = "transfer"
	PurposeInterbankTransfer Purpose = "interbank-transfer"
	PurposeDebtPayment       Purpose = "debt-payment"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeTransfer, PurposeInterbankTransfer, PurposeDebtPayment:
		return true
	}
	return false
}

// Store is the persistence used by Gate; *sharedredis.OTPStore satisfies it.
type Store interface {
	Save(ctx context.Context, key string, rec sharedredis.OTPRecord) error
	Consume(ctx context.Context, key, candidate string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type Gate struct {
	store    Store
	mailer   mail.Mailer
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	generate func() (string, error)
}

func NewGate(store Store, mailer mail.Mailer, ttl time.Duration, logger *slog.Logger) *Gate {
	return &Gate{
		store:    store,
		mailer:   mailer,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		generate: generateCode,
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue creates a fresh code for (userID, purpose), replacing any earlier one,
// and mails it to email. If the mail cannot be sent the code is withdrawn.
func (g *Gate) Issue(ctx context.Context, userID, email string, purpose Purpose) error {
	if !purpose.Valid() {
		return bankerr.Validation("unknown otp purpose %q", purpose)
	}
	if email == "" {
		return bankerr.Validation("no email address on file")
	}
	code, err := g.generate()
	if err != nil {
		return bankerr.Unexpected("failed to generate otp", err)
	}

	key := sharedredis.OTPKey(string(purpose), userID)
	now := g.now()
	if err := g.store.Save(ctx, key, sharedredis.OTPRecord{Code: code, CreatedAt: now, ExpiresAt: now.Add(g.ttl)}); err != nil {
		return bankerr.Unexpected("failed to store otp", err)
	}

	subject := "Your Eagle Bank verification code"
	body := fmt.Sprintf("Your verification code for %s is %s. It expires in %d minutes.", purpose, code, int(g.ttl.Minutes()))
	if err := g.mailer.Send(ctx, email, subject, body); err != nil {
		if delErr := g.store.Delete(ctx, key); delErr != nil {
			g.logger.ErrorContext(ctx, "failed to withdraw undelivered otp", "user_id", userID, "purpose", purpose, "error", delErr)
		}
		return bankerr.Wrap(bankerr.KindNotification, "failed to deliver verification code", err)
	}

	g.logger.InfoContext(ctx, "otp issued", "user_id", userID, "purpose", purpose)
	return nil
}

// Validate reports whether candidate is the live code for (userID, purpose).
// A match consumes the code.
func (g *Gate) Validate(ctx context.Context, userID string, purpose Purpose, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}
	ok, err := g.store.Consume(ctx, sharedredis.OTPKey(string(purpose), userID), candidate)
	if err != nil {
		return false, bankerr.Unexpected("failed to validate otp", err)
	}
	return ok, nil
}

// Invalidate drops any outstanding code for (userID, purpose).
func (g *Gate) Invalidate(ctx context.Context, userID string, purpose Purpose) error {
	if err := g.store.Delete(ctx, sharedredis.OTPKey(string(purpose), userID)); err != nil {
		return bankerr.Unexpected("failed to invalidate otp", err)
	}
	return nil
}

// Require turns a validation outcome into the error callers return: a missing
// code is OTPRequired, a wrong or expired one InvalidOTP.
func (g *Gate) Require(ctx context.Context, userID string, purpose Purpose, candidate string) error {
	if candidate == "" {
		return bankerr.ErrOTPRequired
	}
	ok, err := g.Validate(ctx, userID, purpose, candidate)
	if err != nil {
		return err
	}
	if !ok {
		return bankerr.ErrInvalidOTP
	}
	return nil
}

// IsOTPError reports whether err came from Require rejecting a code.
func IsOTPError(err error) bool {
	return errors.Is(err, bankerr.ErrOTPRequired) || errors.Is(err, bankerr.ErrInvalidOTP)
}
