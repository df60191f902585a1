package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/middleware"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/transaction-service/internal/interbank"
	"github.com/gin-gonic/gin"
)

type DepositReceiver interface {
	ReceiveDeposit(context.Context, cqrs.DepositCommand) (*cqrs.DepositResult, error)
}

type AccountDescriber interface {
	DescribeAccount(context.Context, cqrs.DescribeAccountQuery) (*models.ExternalAccountView, error)
}

// InterbankHandler serves calls from counterpart banks. These routes carry
// no JWT; requests authenticate with the interbank headers instead.
type InterbankHandler struct {
	deposits DepositReceiver
	accounts AccountDescriber
}

func NewInterbankHandler(deposits DepositReceiver, accounts AccountDescriber) *InterbankHandler {
	return &InterbankHandler{deposits: deposits, accounts: accounts}
}

// ReceiveDeposit only decodes the body here. Field rules are applied after
// the interbank headers have been verified.
func (h *InterbankHandler) ReceiveDeposit(c *gin.Context) {
	var req cqrs.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.deposits.ReceiveDeposit(c.Request.Context(), cqrs.DepositCommand{
		Request:        req,
		CallerBankCode: c.GetHeader(interbank.HeaderBankCode),
		Timestamp:      c.GetHeader(interbank.HeaderTimestamp),
		HMAC:           c.GetHeader(interbank.HeaderRequestHash),
		Signature:      c.GetHeader(interbank.HeaderSignature),
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *InterbankHandler) DescribeAccount(c *gin.Context) {
	view, err := h.accounts.DescribeAccount(c.Request.Context(), cqrs.DescribeAccountQuery{
		AccountNumber:  c.Param("accountNumber"),
		CallerBankCode: c.GetHeader(interbank.HeaderBankCode),
		Timestamp:      c.GetHeader(interbank.HeaderTimestamp),
		HMAC:           c.GetHeader(interbank.HeaderRequestHash),
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
