package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ---- mock implementations ----

type mockAccountCommander struct {
	createFn     func(cqrs.CreateAccountCommand) (*models.Account, error)
	updateFn     func(cqrs.UpdateAccountCommand) (*models.AccountView, error)
	deactivateFn func(cqrs.DeactivateAccountCommand) error
}

func (m *mockAccountCommander) CreateAccount(_ context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, errors.New("not configured")
}

func (m *mockAccountCommander) UpdateAccount(_ context.Context, cmd cqrs.UpdateAccountCommand) (*models.AccountView, error) {
	if m.updateFn != nil {
		return m.updateFn(cmd)
	}
	return nil, errors.New("not configured")
}

func (m *mockAccountCommander) DeactivateAccount(_ context.Context, cmd cqrs.DeactivateAccountCommand) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(cmd)
	}
	return errors.New("not configured")
}

type mockAccountQuerier struct {
	getFn  func(cqrs.GetAccountQuery) (*models.AccountView, error)
	listFn func(cqrs.ListAccountsQuery) ([]models.AccountView, error)
}

func (m *mockAccountQuerier) GetAccount(_ context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, errors.New("not configured")
}

func (m *mockAccountQuerier) ListAccounts(_ context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, errors.New("not configured")
}

// ---- helpers ----

const owner = "usr-001"

func fakeAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	}
}

func newTestRouter(cmds *mockAccountCommander, qrys *mockAccountQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAccountHandler(cmds, qrys)
	v1 := r.Group("/v1/accounts", fakeAuth(owner))
	v1.POST("", h.CreateAccount)
	v1.GET("", h.ListAccounts)
	v1.GET("/:accountNumber", h.GetAccount)
	v1.PATCH("/:accountNumber", h.UpdateAccount)
	v1.DELETE("/:accountNumber", h.DeactivateAccount)
	return r
}

func doRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	payload := ""
	if body != nil {
		b, _ := json.Marshal(body)
		payload = string(b)
	}
	req := httptest.NewRequest(method, url, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- test data ----

func fundedAccount() *models.Account {
	return &models.Account{
		AccountNumber: "01345678",
		UserID:        owner,
		SortCode:      "10-10-10",
		Name:          "Current Account",
		AccountType:   "personal",
		Balance:       decimal.RequireFromString("100.00"),
		Currency:      "GBP",
		Active:        true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func fundedView() *models.AccountView {
	a := fundedAccount()
	return &models.AccountView{
		AccountNumber: a.AccountNumber,
		UserID:        a.UserID,
		SortCode:      a.SortCode,
		Name:          a.Name,
		AccountType:   a.AccountType,
		Balance:       a.Balance,
		Currency:      a.Currency,
		Active:        a.Active,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// ---- tests ----

func TestCreateAccount(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]any
		createFn       func(cqrs.CreateAccountCommand) (*models.Account, error)
		expectedStatus int
	}{
		{
			name: "opens a personal account",
			body: map[string]any{"name": "Savings", "accountType": "personal"},
			createFn: func(cmd cqrs.CreateAccountCommand) (*models.Account, error) {
				if cmd.UserID != owner {
					return nil, errors.New("user id not taken from token")
				}
				return fundedAccount(), nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing required fields",
			body:           map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unsupported account type",
			body:           map[string]any{"name": "Test", "accountType": "business"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "account number space exhausted",
			body:           map[string]any{"name": "Savings", "accountType": "personal"},
			createFn:       func(cqrs.CreateAccountCommand) (*models.Account, error) { return nil, bankerr.Unexpected("allocate", errors.New("collision")) },
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{createFn: tt.createFn}, &mockAccountQuerier{})
			w := doRequest(router, http.MethodPost, "/v1/accounts", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected %d got %d; body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListAccounts(t *testing.T) {
	qrys := &mockAccountQuerier{listFn: func(q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
		if q.UserID != owner {
			return nil, bankerr.ErrForbidden
		}
		return []models.AccountView{*fundedView()}, nil
	}}
	w := doRequest(newTestRouter(&mockAccountCommander{}, qrys), http.MethodGet, "/v1/accounts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", w.Code, w.Body.String())
	}
	var resp ListAccountsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Accounts) != 1 || !resp.Accounts[0].Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected accounts %+v", resp.Accounts)
	}
	if strings.Contains(w.Body.String(), owner) {
		t.Error("user id must not be rendered")
	}
}

func TestListAccountsRendersEmptyArray(t *testing.T) {
	qrys := &mockAccountQuerier{listFn: func(cqrs.ListAccountsQuery) ([]models.AccountView, error) {
		return []models.AccountView{}, nil
	}}
	w := doRequest(newTestRouter(&mockAccountCommander{}, qrys), http.MethodGet, "/v1/accounts", nil)
	if !strings.Contains(w.Body.String(), `"accounts":[]`) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

func TestGetAccount(t *testing.T) {
	tests := []struct {
		name           string
		accountNumber  string
		getFn          func(cqrs.GetAccountQuery) (*models.AccountView, error)
		expectedStatus int
	}{
		{
			name:           "own account",
			accountNumber:  "01345678",
			getFn:          func(cqrs.GetAccountQuery) (*models.AccountView, error) { return fundedView(), nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "another customer's account",
			accountNumber:  "01999999",
			getFn:          func(cqrs.GetAccountQuery) (*models.AccountView, error) { return nil, bankerr.ErrForbidden },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "unknown account",
			accountNumber:  "01000000",
			getFn:          func(cqrs.GetAccountQuery) (*models.AccountView, error) { return nil, bankerr.NotFound("account not found") },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "malformed account number",
			accountNumber:  "99999999",
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{getFn: tt.getFn})
			w := doRequest(router, http.MethodGet, "/v1/accounts/"+tt.accountNumber, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected %d got %d; body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestUpdateAccount(t *testing.T) {
	tests := []struct {
		name           string
		accountNumber  string
		body           map[string]any
		updateFn       func(cqrs.UpdateAccountCommand) (*models.AccountView, error)
		expectedStatus int
	}{
		{
			name:           "rename own account",
			accountNumber:  "01345678",
			body:           map[string]any{"name": "Holiday Fund"},
			updateFn:       func(cqrs.UpdateAccountCommand) (*models.AccountView, error) { return fundedView(), nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "empty patch",
			accountNumber:  "01345678",
			body:           map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "deactivated account is read-only",
			accountNumber:  "01345678",
			body:           map[string]any{"name": "Holiday Fund"},
			updateFn:       func(cqrs.UpdateAccountCommand) (*models.AccountView, error) { return nil, bankerr.Validation("account 01345678 is deactivated") },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "another customer's account",
			accountNumber:  "01999999",
			body:           map[string]any{"name": "Mine now"},
			updateFn:       func(cqrs.UpdateAccountCommand) (*models.AccountView, error) { return nil, bankerr.ErrForbidden },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "unknown account",
			accountNumber:  "01000000",
			body:           map[string]any{"name": "Holiday Fund"},
			updateFn:       func(cqrs.UpdateAccountCommand) (*models.AccountView, error) { return nil, bankerr.NotFound("account not found") },
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{updateFn: tt.updateFn}, &mockAccountQuerier{})
			w := doRequest(router, http.MethodPatch, "/v1/accounts/"+tt.accountNumber, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected %d got %d; body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestDeactivateAccount(t *testing.T) {
	tests := []struct {
		name           string
		accountNumber  string
		deactivateFn   func(cqrs.DeactivateAccountCommand) error
		expectedStatus int
	}{
		{
			name:           "empty own account",
			accountNumber:  "01345678",
			deactivateFn:   func(cqrs.DeactivateAccountCommand) error { return nil },
			expectedStatus: http.StatusNoContent,
		},
		{
			name:          "account still holds money",
			accountNumber: "01345678",
			deactivateFn: func(cmd cqrs.DeactivateAccountCommand) error {
				return bankerr.Validation("account %s still holds 100.00 GBP", cmd.AccountNumber)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "another customer's account",
			accountNumber:  "01999999",
			deactivateFn:   func(cqrs.DeactivateAccountCommand) error { return bankerr.ErrForbidden },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "unknown account",
			accountNumber:  "01000000",
			deactivateFn:   func(cqrs.DeactivateAccountCommand) error { return bankerr.NotFound("account not found") },
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAccountCommander{deactivateFn: tt.deactivateFn}, &mockAccountQuerier{})
			w := doRequest(router, http.MethodDelete, "/v1/accounts/"+tt.accountNumber, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected %d got %d; body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
