package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/crypto"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/transaction-service/internal/interbank"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
	"github.com/shopspring/decimal"
)

type fakeAccounts map[string]models.Account

func (f fakeAccounts) GetByNumber(_ context.Context, n string) (*models.Account, error) {
	if a, ok := f[n]; ok {
		return &a, nil
	}
	return nil, repository.ErrAccountNotFound
}

func (f fakeAccounts) GetHolder(_ context.Context, n string) (*repository.AccountHolder, error) {
	if a, ok := f[n]; ok && a.Active {
		return &repository.AccountHolder{AccountNumber: n, UserID: a.UserID, Name: "Holder of " + n}, nil
	}
	return nil, repository.ErrAccountNotFound
}

type fakeReader struct {
	txs       map[string]models.Transaction
	lastLimit int
}

func (f *fakeReader) GetByID(_ context.Context, id string) (*models.Transaction, error) {
	if t, ok := f.txs[id]; ok {
		return &t, nil
	}
	return nil, repository.ErrTransactionNotFound
}

func (f *fakeReader) ListByAccountNumber(_ context.Context, n string, limit, offset int) ([]models.Transaction, error) {
	f.lastLimit = limit
	var out []models.Transaction
	for _, t := range f.txs {
		if touches(&t, n) {
			out = append(out, t)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func newTransactionFixture() (*TransactionQueryService, *fakeReader) {
	accounts := fakeAccounts{
		"01000001": {AccountNumber: "01000001", UserID: "usr-a", Active: true},
		"01000002": {AccountNumber: "01000002", UserID: "usr-b", Active: true},
	}
	reader := &fakeReader{txs: map[string]models.Transaction{
		"tx-internal": {ID: "tx-internal", Type: models.TransactionInternalTransfer, SourceAccountNumber: "01000001", DestinationAccountNumber: "01000002", Amount: decimal.NewFromInt(5), Status: models.StatusCompleted},
		"tx-deposit":  {ID: "tx-deposit", Type: models.TransactionDeposit, SourceBankCode: strPtr("ACME"), SourceAccountNumber: "01000001", DestinationAccountNumber: "01000002", Amount: decimal.NewFromInt(7), Status: models.StatusCompleted},
	}}
	return NewTransactionQueryService(accounts, reader), reader
}

func TestGetTransaction(t *testing.T) {
	svc, _ := newTransactionFixture()
	tests := []struct {
		name          string
		q             cqrs.GetTransactionQuery
		wantErr       error
		wantDirection string
	}{
		{name: "sender sees debit", q: cqrs.GetTransactionQuery{TransactionID: "tx-internal", AccountNumber: "01000001", UserID: "usr-a"}, wantDirection: "debit"},
		{name: "receiver sees credit", q: cqrs.GetTransactionQuery{TransactionID: "tx-internal", AccountNumber: "01000002", UserID: "usr-b"}, wantDirection: "credit"},
		{name: "foreign account", q: cqrs.GetTransactionQuery{TransactionID: "tx-internal", AccountNumber: "01000002", UserID: "usr-a"}, wantErr: bankerr.ErrForbidden},
		{name: "remote account number collision", q: cqrs.GetTransactionQuery{TransactionID: "tx-deposit", AccountNumber: "01000001", UserID: "usr-a"}, wantErr: bankerr.ErrNotFound},
		{name: "unknown transaction", q: cqrs.GetTransactionQuery{TransactionID: "nope", AccountNumber: "01000001", UserID: "usr-a"}, wantErr: bankerr.ErrNotFound},
		{name: "unknown account", q: cqrs.GetTransactionQuery{TransactionID: "tx-internal", AccountNumber: "01009999", UserID: "usr-a"}, wantErr: bankerr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := svc.GetTransaction(context.Background(), tt.q)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetTransaction: %v", err)
			}
			if view.Direction != tt.wantDirection {
				t.Errorf("direction = %s, want %s", view.Direction, tt.wantDirection)
			}
		})
	}
}

func TestListTransactionsClampsPageSize(t *testing.T) {
	svc, reader := newTransactionFixture()

	views, err := svc.ListTransactions(context.Background(), cqrs.ListTransactionsQuery{AccountNumber: "01000002", UserID: "usr-b", Limit: 10_000})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if reader.lastLimit != maxPageSize {
		t.Errorf("limit = %d, want %d", reader.lastLimit, maxPageSize)
	}
	if len(views) != 2 {
		t.Errorf("expected 2 views, got %d", len(views))
	}

	if _, err := svc.ListTransactions(context.Background(), cqrs.ListTransactionsQuery{AccountNumber: "01000002", UserID: "usr-b", Offset: -1}); !errors.Is(err, bankerr.ErrValidation) {
		t.Errorf("negative offset: err = %v", err)
	}
}

type fakeBanks map[string]*models.Bank

func (f fakeBanks) GetByCode(_ context.Context, code string) (*models.Bank, error) {
	if b, ok := f[code]; ok {
		return b, nil
	}
	return nil, repository.ErrBankNotFound
}

func (f fakeBanks) List(context.Context) ([]models.Bank, error) {
	out := make([]models.Bank, 0, len(f))
	for _, b := range f {
		out = append(out, *b)
	}
	return out, nil
}

type fakeLookup struct {
	lookupFn func(*models.Bank, string) (*models.ExternalAccountView, error)
}

func (f fakeLookup) LookupAccount(_ context.Context, bank *models.Bank, n string) (*models.ExternalAccountView, error) {
	return f.lookupFn(bank, n)
}

func newInterbankFixture(lookup fakeLookup) (*InterbankQueryService, time.Time) {
	accounts := fakeAccounts{"01000001": {AccountNumber: "01000001", UserID: "usr-a", Active: true}}
	banks := fakeBanks{"ACME": {Code: "ACME", SharedSecret: "acme-secret"}}
	svc := NewInterbankQueryService("EAGLE", 5*time.Minute, accounts, banks, lookup, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }
	return svc, now
}

func TestDescribeAccount(t *testing.T) {
	svc, now := newInterbankFixture(fakeLookup{})

	signed := func(accountNumber string, at time.Time, secret string) cqrs.DescribeAccountQuery {
		ts := interbank.FormatTimestamp(at)
		return cqrs.DescribeAccountQuery{
			AccountNumber:  accountNumber,
			CallerBankCode: "ACME",
			Timestamp:      ts,
			HMAC:           crypto.ComputeHMAC(crypto.CanonicalAccountLookup(accountNumber), secret, ts, "ACME"),
		}
	}

	view, err := svc.DescribeAccount(context.Background(), signed("01000001", now, "acme-secret"))
	if err != nil {
		t.Fatalf("DescribeAccount: %v", err)
	}
	if view.Name != "Holder of 01000001" {
		t.Errorf("view = %+v", view)
	}

	unknownCaller := signed("01000001", now, "acme-secret")
	unknownCaller.CallerBankCode = "EVIL"

	tests := []struct {
		name    string
		q       cqrs.DescribeAccountQuery
		wantErr error
	}{
		{name: "stale", q: signed("01000001", now.Add(-6*time.Minute), "acme-secret"), wantErr: bankerr.ErrExpiredRequest},
		{name: "wrong secret", q: signed("01000001", now, "guess"), wantErr: bankerr.ErrIntegrity},
		{name: "unknown caller", q: unknownCaller, wantErr: bankerr.ErrUnknownBank},
		{name: "unknown account", q: signed("01009999", now, "acme-secret"), wantErr: bankerr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.DescribeAccount(context.Background(), tt.q); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLookupExternalAccount(t *testing.T) {
	svc, _ := newInterbankFixture(fakeLookup{lookupFn: func(bank *models.Bank, n string) (*models.ExternalAccountView, error) {
		if n == "down" {
			return nil, bankerr.New(bankerr.KindRemoteTransfer, "HTTP 503")
		}
		return &models.ExternalAccountView{BankCode: bank.Code, AccountNumber: n, Name: "Grace Hopper"}, nil
	}})
	ctx := context.Background()

	own, err := svc.LookupExternalAccount(ctx, cqrs.LookupExternalAccountQuery{BankCode: "EAGLE", AccountNumber: "01000001"})
	if err != nil || own.Name != "Holder of 01000001" || own.BankCode != "EAGLE" {
		t.Fatalf("own bank lookup = %+v, %v", own, err)
	}
	remote, err := svc.LookupExternalAccount(ctx, cqrs.LookupExternalAccountQuery{BankCode: "ACME", AccountNumber: "77770001"})
	if err != nil || remote.Name != "Grace Hopper" {
		t.Fatalf("remote lookup = %+v, %v", remote, err)
	}
	if _, err := svc.LookupExternalAccount(ctx, cqrs.LookupExternalAccountQuery{BankCode: "NOPE", AccountNumber: "1"}); !errors.Is(err, bankerr.ErrNotFound) {
		t.Errorf("unknown bank: err = %v", err)
	}
	if _, err := svc.LookupExternalAccount(ctx, cqrs.LookupExternalAccountQuery{BankCode: "ACME", AccountNumber: "down"}); !errors.Is(err, bankerr.ErrRemoteTransfer) {
		t.Errorf("remote failure: err = %v", err)
	}
}

type fakeNumbers map[string][]string

func (f fakeNumbers) NumbersForUser(_ context.Context, userID string) ([]string, error) {
	return f[userID], nil
}

type fakeReminderReader struct{ got []string }

func (f *fakeReminderReader) ListForAccounts(_ context.Context, numbers []string) ([]models.DebtReminder, error) {
	f.got = numbers
	return []models.DebtReminder{{ID: "rem-1"}}, nil
}

func TestListDebtRemindersUsesAllAccounts(t *testing.T) {
	reader := &fakeReminderReader{}
	svc := NewDebtReminderQueryService(fakeNumbers{"usr-a": {"01000001", "01000004"}}, reader)

	reminders, err := svc.ListDebtReminders(context.Background(), cqrs.ListDebtRemindersQuery{UserID: "usr-a"})
	if err != nil {
		t.Fatalf("ListDebtReminders: %v", err)
	}
	if len(reminders) != 1 || len(reader.got) != 2 {
		t.Errorf("reminders = %v, accounts queried = %v", reminders, reader.got)
	}
}
