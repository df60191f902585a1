package interbank

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eaglebank/platform/shared/bankerr"
	"github.com/eaglebank/platform/shared/crypto"
	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/models"
)

// Client calls counterpart banks on behalf of this bank. Every failure to get
// a 2xx answer is reported as a RemoteTransfer error whose message says why.
type Client struct {
	bankCode   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

func NewClient(bankCode string, privateKey *rsa.PrivateKey, timeout time.Duration) *Client {
	return &Client{
		bankCode:   bankCode,
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		now:        time.Now,
	}
}

// Deposit asks bank to credit req.ReceiverAccountNumber. A nil error means the
// remote bank acknowledged the deposit.
func (c *Client) Deposit(ctx context.Context, bank *models.Bank, req cqrs.DepositRequest) (*cqrs.DepositResult, error) {
	canonical := crypto.CanonicalDeposit(crypto.DepositFields{
		SenderAccountNumber:   req.SenderAccountNumber,
		ReceiverAccountNumber: req.ReceiverAccountNumber,
		Amount:                req.Amount,
		Content:               req.Content,
	})
	signature, err := crypto.Sign(canonical, c.privateKey)
	if err != nil {
		return nil, bankerr.Unexpected("failed to sign deposit", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, bankerr.Unexpected("failed to marshal deposit", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(bank, DepositPath), bytes.NewReader(body))
	if err != nil {
		return nil, bankerr.Unexpected("failed to create deposit request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.sign(httpReq, bank, canonical)
	httpReq.Header.Set(HeaderSignature, signature)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	// The status code is the acknowledgement; the body is informational.
	var result cqrs.DepositResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && !errors.Is(err, io.EOF) {
		slog.WarnContext(ctx, "unreadable deposit acknowledgement", "bank_code", bank.Code, "error", err)
	}
	return &result, nil
}

// LookupAccount asks bank for the holder name of accountNumber.
func (c *Client) LookupAccount(ctx context.Context, bank *models.Bank, accountNumber string) (*models.ExternalAccountView, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		endpoint(bank, AccountLookupPath+url.PathEscape(accountNumber)), nil)
	if err != nil {
		return nil, bankerr.Unexpected("failed to create account lookup request", err)
	}
	c.sign(httpReq, bank, crypto.CanonicalAccountLookup(accountNumber))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, bankerr.NotFound("account %s not found at bank %s", accountNumber, bank.Code)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var view models.ExternalAccountView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, bankerr.Wrap(bankerr.KindRemoteTransfer, "malformed account lookup response", err)
	}
	view.BankCode = bank.Code
	return &view, nil
}

func (c *Client) sign(req *http.Request, bank *models.Bank, canonical []byte) {
	ts := FormatTimestamp(c.now())
	req.Header.Set(HeaderBankCode, c.bankCode)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderRequestHash, crypto.ComputeHMAC(canonical, bank.SharedSecret, ts, c.bankCode))
}

func endpoint(bank *models.Bank, path string) string {
	return strings.TrimSuffix(bank.APIEndpoint, "/") + path
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return bankerr.Wrap(bankerr.KindRemoteTransfer, "timeout", err)
	}
	return bankerr.Wrap(bankerr.KindRemoteTransfer, "connection error", err)
}

// statusError summarises a non-2xx answer as "HTTP <code>", followed by the
// remote message when the body carries one.
func statusError(resp *http.Response) error {
	reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
	var body struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		reason += ": " + body.Message
	}
	return bankerr.New(bankerr.KindRemoteTransfer, reason)
}
