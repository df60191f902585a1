package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/crypto"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/transaction-service/internal/interbank"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
)

type HolderReader interface {
	GetHolder(ctx context.Context, accountNumber string) (*repository.AccountHolder, error)
}

type BankDirectory interface {
	GetByCode(ctx context.Context, code string) (*models.Bank, error)
	List(ctx context.Context) ([]models.Bank, error)
}

type AccountLookup interface {
	LookupAccount(ctx context.Context, bank *models.Bank, accountNumber string) (*models.ExternalAccountView, error)
}

// InterbankQueryService answers account lookups in both directions: our
// customers asking about accounts elsewhere, and other banks asking about ours.
type InterbankQueryService struct {
	bankCode string
	window   time.Duration
	holders  HolderReader
	banks    BankDirectory
	remote   AccountLookup
	logger   *slog.Logger
	now      func() time.Time
}

func NewInterbankQueryService(bankCode string, window time.Duration, holders HolderReader, banks BankDirectory, remote AccountLookup, logger *slog.Logger) *InterbankQueryService {
	return &InterbankQueryService{
		bankCode: bankCode,
		window:   window,
		holders:  holders,
		banks:    banks,
		remote:   remote,
		logger:   logger,
		now:      time.Now,
	}
}

// ListBanks returns the counterpart banks customers can send money to.
func (s *InterbankQueryService) ListBanks(ctx context.Context) ([]models.Bank, error) {
	banks, err := s.banks.List(ctx)
	if err != nil {
		return nil, bankerr.Unexpected("failed to list banks", err)
	}
	return banks, nil
}

// LookupExternalAccount resolves the holder name of an account at any bank,
// including this one.
func (s *InterbankQueryService) LookupExternalAccount(ctx context.Context, q cqrs.LookupExternalAccountQuery) (*models.ExternalAccountView, error) {
	if strings.EqualFold(q.BankCode, s.bankCode) {
		holder, err := s.holder(ctx, q.AccountNumber)
		if err != nil {
			return nil, err
		}
		return &models.ExternalAccountView{BankCode: s.bankCode, AccountNumber: holder.AccountNumber, Name: holder.Name}, nil
	}

	bank, err := s.banks.GetByCode(ctx, q.BankCode)
	if errors.Is(err, repository.ErrBankNotFound) {
		return nil, bankerr.NotFound("bank %s is not registered", q.BankCode)
	}
	if err != nil {
		return nil, bankerr.Unexpected("failed to load bank", err)
	}
	view, err := s.remote.LookupAccount(ctx, bank, q.AccountNumber)
	if err != nil {
		if errors.Is(err, bankerr.ErrRemoteTransfer) {
			s.logger.WarnContext(ctx, "remote account lookup failed", "bank_code", bank.Code, "error", err)
		}
		return nil, err
	}
	return view, nil
}

// DescribeAccount answers an HMAC-authenticated lookup from another bank.
func (s *InterbankQueryService) DescribeAccount(ctx context.Context, q cqrs.DescribeAccountQuery) (*models.ExternalAccountView, error) {
	ts, err := interbank.ParseTimestamp(q.Timestamp)
	if err != nil || !interbank.WithinWindow(ts, s.now(), s.window) {
		return nil, bankerr.ErrExpiredRequest
	}
	bank, err := s.banks.GetByCode(ctx, q.CallerBankCode)
	if errors.Is(err, repository.ErrBankNotFound) {
		return nil, bankerr.ErrUnknownBank
	}
	if err != nil {
		return nil, bankerr.Unexpected("failed to load caller bank", err)
	}
	if err := crypto.VerifyHMAC(crypto.CanonicalAccountLookup(q.AccountNumber), q.HMAC, bank.SharedSecret, q.Timestamp, q.CallerBankCode); err != nil {
		return nil, err
	}

	holder, err := s.holder(ctx, q.AccountNumber)
	if err != nil {
		return nil, err
	}
	return &models.ExternalAccountView{AccountNumber: holder.AccountNumber, Name: holder.Name}, nil
}

func (s *InterbankQueryService) holder(ctx context.Context, accountNumber string) (*repository.AccountHolder, error) {
	holder, err := s.holders.GetHolder(ctx, accountNumber)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, bankerr.NotFound("account %s not found", accountNumber)
	}
	if err != nil {
		return nil, bankerr.Unexpected("failed to load account holder", err)
	}
	return holder, nil
}
