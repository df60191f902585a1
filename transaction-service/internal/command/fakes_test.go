package command

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/otp"
	"github.com/eaglebank/platform/transaction-service/internal/repository"
	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// memBank is an in-memory stand-in for the accounts, transactions and
// debt_reminders tables. WithinTx serialises ledger transactions and applies
// their changes only when fn succeeds.
type memBank struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	emails    map[string]string
	txs       map[string]models.Transaction
	reminders map[string]models.DebtReminder

	failCredit   error
	failDebit    error
	failComplete error
}

func newMemBank() *memBank {
	return &memBank{
		accounts:  map[string]models.Account{},
		emails:    map[string]string{},
		txs:       map[string]models.Transaction{},
		reminders: map[string]models.DebtReminder{},
	}
}

func (b *memBank) addAccount(number, userID, balance string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[number] = models.Account{
		AccountNumber: number, UserID: userID, Balance: dec(balance), Active: true,
		CreatedAt: time.Now().Add(time.Duration(len(b.accounts)) * time.Second),
	}
	b.emails[userID] = userID + "@example.com"
}

func (b *memBank) balance(number string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[number].Balance
}

func (b *memBank) transactions() []models.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Transaction, 0, len(b.txs))
	for _, t := range b.txs {
		out = append(out, t)
	}
	return out
}

func (b *memBank) reminder(id string) models.DebtReminder {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reminders[id]
}

// AccountReader

func (b *memBank) GetByNumber(_ context.Context, number string) (*models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[number]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &a, nil
}

func (b *memBank) PrimaryForUser(_ context.Context, userID string) (*models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var primary *models.Account
	for _, a := range b.accounts {
		a := a
		if a.UserID == userID && a.Active && (primary == nil || a.CreatedAt.Before(primary.CreatedAt)) {
			primary = &a
		}
	}
	if primary == nil {
		return nil, repository.ErrAccountNotFound
	}
	return primary, nil
}

func (b *memBank) GetHolder(_ context.Context, number string) (*repository.AccountHolder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[number]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &repository.AccountHolder{AccountNumber: number, UserID: a.UserID, Name: a.UserID, Email: b.emails[a.UserID]}, nil
}

// Ledger

func (b *memBank) WithinTx(ctx context.Context, fn func(repository.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := &memTx{
		bank:      b,
		accounts:  map[string]models.Account{},
		txs:       map[string]models.Transaction{},
		reminders: map[string]models.DebtReminder{},
	}
	for k, v := range b.accounts {
		tx.accounts[k] = v
	}
	for k, v := range b.txs {
		tx.txs[k] = v
	}
	for k, v := range b.reminders {
		tx.reminders[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	b.accounts, b.txs, b.reminders = tx.accounts, tx.txs, tx.reminders
	return nil
}

type memTx struct {
	bank      *memBank
	accounts  map[string]models.Account
	txs       map[string]models.Transaction
	reminders map[string]models.DebtReminder
}

func (t *memTx) Debit(_ context.Context, number string, amount decimal.Decimal) (decimal.Decimal, error) {
	if t.bank.failDebit != nil {
		return decimal.Zero, t.bank.failDebit
	}
	a, ok := t.accounts[number]
	if !ok || !a.Active {
		return decimal.Zero, repository.ErrAccountNotFound
	}
	if a.Balance.LessThan(amount) {
		return decimal.Zero, bankerr.ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	t.accounts[number] = a
	return a.Balance, nil
}

func (t *memTx) Credit(_ context.Context, number string, amount decimal.Decimal) (decimal.Decimal, error) {
	if t.bank.failCredit != nil {
		return decimal.Zero, t.bank.failCredit
	}
	a, ok := t.accounts[number]
	if !ok || !a.Active {
		return decimal.Zero, repository.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(amount)
	t.accounts[number] = a
	return a.Balance, nil
}

func (t *memTx) Release(_ context.Context, number string, amount decimal.Decimal) (decimal.Decimal, error) {
	a, ok := t.accounts[number]
	if !ok {
		return decimal.Zero, repository.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(amount)
	t.accounts[number] = a
	return a.Balance, nil
}

func (t *memTx) CreateTransaction(_ context.Context, tr *models.Transaction) error {
	t.txs[tr.ID] = *tr
	return nil
}

func (t *memTx) MarkCompleted(_ context.Context, id string) error {
	if t.bank.failComplete != nil {
		return t.bank.failComplete
	}
	tr, ok := t.txs[id]
	if !ok || tr.Status != models.StatusPending {
		return bankerr.Unexpected("transaction is not pending", nil)
	}
	tr.Status = models.StatusCompleted
	t.txs[id] = tr
	return nil
}

func (t *memTx) DeleteTransaction(_ context.Context, id string) error {
	if t.txs[id].Status == models.StatusPending {
		delete(t.txs, id)
	}
	return nil
}

func (t *memTx) MarkDebtReminderPaid(_ context.Context, reminderID, transactionID string) error {
	r, ok := t.reminders[reminderID]
	if !ok || r.Status != models.DebtUnpaid {
		return bankerr.Validation("debt reminder is no longer unpaid")
	}
	r.Status = models.DebtPaid
	r.PaymentTransactionID = &transactionID
	t.reminders[reminderID] = r
	return nil
}

// memReminders adapts memBank to DebtReminderStore.
type memReminders struct{ bank *memBank }

func (m memReminders) Create(_ context.Context, d *models.DebtReminder) error {
	m.bank.mu.Lock()
	defer m.bank.mu.Unlock()
	m.bank.reminders[d.ID] = *d
	return nil
}

func (m memReminders) GetByID(_ context.Context, id string) (*models.DebtReminder, error) {
	m.bank.mu.Lock()
	defer m.bank.mu.Unlock()
	d, ok := m.bank.reminders[id]
	if !ok {
		return nil, repository.ErrReminderNotFound
	}
	return &d, nil
}

func (m memReminders) Cancel(_ context.Context, id string) (bool, error) {
	m.bank.mu.Lock()
	defer m.bank.mu.Unlock()
	d, ok := m.bank.reminders[id]
	if !ok || d.Status != models.DebtUnpaid {
		return false, nil
	}
	d.Status = models.DebtCancelled
	m.bank.reminders[id] = d
	return true, nil
}

// fakeGate accepts one live code per user and purpose, consumed on use.
type fakeGate struct {
	mu     sync.Mutex
	codes  map[string]string
	issued []string
}

func newFakeGate() *fakeGate {
	return &fakeGate{codes: map[string]string{}}
}

func (g *fakeGate) set(userID string, purpose otp.Purpose, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.codes[string(purpose)+":"+userID] = code
}

func (g *fakeGate) Issue(_ context.Context, userID, email string, purpose otp.Purpose) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued = append(g.issued, string(purpose)+":"+userID+":"+email)
	return nil
}

func (g *fakeGate) Require(_ context.Context, userID string, purpose otp.Purpose, candidate string) error {
	if candidate == "" {
		return bankerr.ErrOTPRequired
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	key := string(purpose) + ":" + userID
	if code, ok := g.codes[key]; !ok || code != candidate {
		return bankerr.ErrInvalidOTP
	}
	delete(g.codes, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _, _ string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, data)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type noopCache struct{}

func (noopCache) CacheTransaction(context.Context, *models.Transaction) {}

type fakeBanks map[string]*models.Bank

func (f fakeBanks) GetByCode(_ context.Context, code string) (*models.Bank, error) {
	if b, ok := f[code]; ok {
		return b, nil
	}
	return nil, repository.ErrBankNotFound
}

type fakeRemote struct {
	depositFn func(context.Context, *models.Bank, cqrs.DepositRequest) (*cqrs.DepositResult, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeRemote) Deposit(ctx context.Context, bank *models.Bank, req cqrs.DepositRequest) (*cqrs.DepositResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.depositFn(ctx, bank, req)
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type capturedMail struct{ to, subject, body string }

type capturingMailer struct {
	mu   sync.Mutex
	sent []capturedMail
}

func (m *capturingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, capturedMail{to, subject, body})
	return nil
}

// flatFee charges a fixed amount on every transfer.
type flatFee decimal.Decimal

func (f flatFee) Fee(decimal.Decimal, models.FeePayer) decimal.Decimal { return decimal.Decimal(f) }
