package command

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/events"
	"github.com/eaglebank/platform/shared/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ---- fakes ----

type fakeStore struct {
	accounts    map[string]*models.Account
	createErrs  []error
	deactivated []string
}

func newFakeStore(accounts ...*models.Account) *fakeStore {
	s := &fakeStore{accounts: map[string]*models.Account{}}
	for _, a := range accounts {
		s.accounts[a.AccountNumber] = a
	}
	return s
}

func (s *fakeStore) Create(_ context.Context, a *models.Account) error {
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *a
	s.accounts[a.AccountNumber] = &cp
	return nil
}

func (s *fakeStore) GetByAccountNumber(_ context.Context, n string) (*models.Account, error) {
	a, ok := s.accounts[n]
	if !ok {
		return nil, bankerr.NotFound("account not found")
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) Update(_ context.Context, a *models.Account) error {
	cp := *a
	s.accounts[a.AccountNumber] = &cp
	return nil
}

func (s *fakeStore) Deactivate(_ context.Context, n string) (bool, error) {
	a := s.accounts[n]
	if !a.Active || !a.Balance.IsZero() {
		return false, nil
	}
	a.Active = false
	s.deactivated = append(s.deactivated, n)
	return true, nil
}

func (s *fakeStore) CountByUserID(_ context.Context, userID string) (int, error) {
	n := 0
	for _, a := range s.accounts {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeViews struct {
	cached    map[string]*models.AccountView
	refreshed []string
	failOn    string
}

func newFakeViews() *fakeViews { return &fakeViews{cached: map[string]*models.AccountView{}} }

func (v *fakeViews) CacheAccountView(_ context.Context, view *models.AccountView) {
	v.cached[view.AccountNumber] = view
}

func (v *fakeViews) RefreshAccountView(_ context.Context, n string) error {
	if n == v.failOn {
		return errors.New("redis down")
	}
	v.refreshed = append(v.refreshed, n)
	return nil
}

type published struct {
	stream, eventType string
	data              any
}

type recordingPublisher struct {
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, stream, eventType string, data any) error {
	p.events = append(p.events, published{stream, eventType, data})
	return nil
}

func newService(store *fakeStore, views *fakeViews, pub *recordingPublisher) *AccountCommandService {
	svc := NewAccountCommandService(store, views, pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

func anAccount(number, userID string, balance int64) *models.Account {
	return &models.Account{
		AccountNumber: number,
		UserID:        userID,
		Name:          "Current Account",
		AccountType:   "personal",
		Balance:       decimal.NewFromInt(balance),
		Currency:      "GBP",
		Active:        true,
	}
}

func mustEvent(t *testing.T, eventType string, data any) events.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	return events.Event{Type: eventType, Data: raw}
}

// ---- tests ----

func TestCreateAccountRetriesNumberCollision(t *testing.T) {
	store := newFakeStore()
	store.createErrs = []error{&pq.Error{Code: "23505"}, nil}
	views := newFakeViews()
	pub := &recordingPublisher{}
	svc := newService(store, views, pub)
	numbers := []string{"01000001", "01000002"}
	svc.newNumber = func() string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	account, err := svc.CreateAccount(context.Background(), cqrs.CreateAccountCommand{UserID: "usr-001", Name: "Savings", AccountType: "personal"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if account.AccountNumber != "01000002" || !account.Active || !account.Balance.IsZero() {
		t.Errorf("unexpected account %+v", account)
	}
	if _, ok := views.cached["01000002"]; !ok {
		t.Error("expected new account to be cached")
	}
	if len(pub.events) != 1 || pub.events[0].eventType != events.AccountOpened {
		t.Errorf("expected account.opened, got %+v", pub.events)
	}
}

func TestCreateAccountStoreFailureIsUnexpected(t *testing.T) {
	store := newFakeStore()
	store.createErrs = []error{errors.New("connection reset")}
	svc := newService(store, newFakeViews(), &recordingPublisher{})

	_, err := svc.CreateAccount(context.Background(), cqrs.CreateAccountCommand{UserID: "usr-001", Name: "x", AccountType: "personal"})
	if bankerr.KindOf(err) != bankerr.KindUnexpected {
		t.Fatalf("expected unexpected error, got %v", err)
	}
}

func TestUpdateAccount(t *testing.T) {
	closed := anAccount("01000003", "usr-001", 0)
	closed.Active = false
	store := newFakeStore(anAccount("01000001", "usr-001", 10), closed)
	svc := newService(store, newFakeViews(), &recordingPublisher{})
	ctx := context.Background()

	view, err := svc.UpdateAccount(ctx, cqrs.UpdateAccountCommand{AccountNumber: "01000001", RequestingUserID: "usr-001", Name: "Holiday"})
	if err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	if view.Name != "Holiday" || view.AccountType != "personal" {
		t.Errorf("unexpected view %+v", view)
	}

	tests := []struct {
		name string
		cmd  cqrs.UpdateAccountCommand
		want error
	}{
		{name: "other user", cmd: cqrs.UpdateAccountCommand{AccountNumber: "01000001", RequestingUserID: "usr-002", Name: "x"}, want: bankerr.ErrForbidden},
		{name: "missing", cmd: cqrs.UpdateAccountCommand{AccountNumber: "01999999", RequestingUserID: "usr-001", Name: "x"}, want: bankerr.ErrNotFound},
		{name: "closed", cmd: cqrs.UpdateAccountCommand{AccountNumber: "01000003", RequestingUserID: "usr-001", Name: "x"}, want: bankerr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.UpdateAccount(ctx, tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDeactivateAccount(t *testing.T) {
	store := newFakeStore(anAccount("01000001", "usr-001", 0), anAccount("01000002", "usr-001", 25))
	views := newFakeViews()
	pub := &recordingPublisher{}
	svc := newService(store, views, pub)
	ctx := context.Background()

	if err := svc.DeactivateAccount(ctx, cqrs.DeactivateAccountCommand{AccountNumber: "01000001", RequestingUserID: "usr-001"}); err != nil {
		t.Fatalf("DeactivateAccount: %v", err)
	}
	if len(store.deactivated) != 1 || len(views.refreshed) != 1 {
		t.Errorf("expected one deactivation and refresh, got %v %v", store.deactivated, views.refreshed)
	}
	if len(pub.events) != 1 || pub.events[0].eventType != events.AccountDeactivated {
		t.Errorf("expected account.deactivated, got %+v", pub.events)
	}

	err := svc.DeactivateAccount(ctx, cqrs.DeactivateAccountCommand{AccountNumber: "01000002", RequestingUserID: "usr-001"})
	if !errors.Is(err, bankerr.ErrValidation) {
		t.Errorf("funded account: expected validation error, got %v", err)
	}
	err = svc.DeactivateAccount(ctx, cqrs.DeactivateAccountCommand{AccountNumber: "01000001", RequestingUserID: "usr-001"})
	if !errors.Is(err, bankerr.ErrValidation) {
		t.Errorf("closed account: expected validation error, got %v", err)
	}
	err = svc.DeactivateAccount(ctx, cqrs.DeactivateAccountCommand{AccountNumber: "01000002", RequestingUserID: "usr-009"})
	if !errors.Is(err, bankerr.ErrForbidden) {
		t.Errorf("other user: expected forbidden, got %v", err)
	}
}

func TestHandleTransactionEventRefreshesLocalAccounts(t *testing.T) {
	views := newFakeViews()
	svc := newService(newFakeStore(), views, &recordingPublisher{})

	event := mustEvent(t, events.TransactionCompleted, events.TransactionCompletedEvent{
		TransactionID:       "tx-1",
		LocalAccountNumbers: []string{"01000001", "01000002"},
		Amount:              decimal.NewFromInt(70000),
	})
	if err := svc.HandleTransactionEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleTransactionEvent: %v", err)
	}
	if len(views.refreshed) != 2 {
		t.Errorf("expected both accounts refreshed, got %v", views.refreshed)
	}

	views.failOn = "01000002"
	if err := svc.HandleTransactionEvent(context.Background(), event); err == nil {
		t.Error("expected refresh failure to keep the message pending")
	}

	if err := svc.HandleTransactionEvent(context.Background(), events.Event{Type: events.AccountOpened}); err != nil {
		t.Errorf("unrelated events are ignored, got %v", err)
	}
}

func TestHandleUserEventOpensFirstAccountOnce(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{}
	svc := newService(store, newFakeViews(), pub)
	event := mustEvent(t, events.UserCreated, events.UserCreatedEvent{UserID: "usr-007", Email: "a@b.c", Name: "Ann"})

	for i := 0; i < 2; i++ {
		if err := svc.HandleUserEvent(context.Background(), event); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}
	if n, _ := store.CountByUserID(context.Background(), "usr-007"); n != 1 {
		t.Errorf("expected exactly one onboarding account, got %d", n)
	}
	if len(pub.events) != 1 {
		t.Errorf("expected one account.opened event, got %d", len(pub.events))
	}
}
