package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/middleware"
	"github.com/eaglebank/platform/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type TransferCommander interface {
	IssueOTP(context.Context, cqrs.IssueOTPCommand) error
	Transfer(context.Context, cqrs.TransferCommand) (*cqrs.TransferResult, error)
}

type ExternalTransferCommander interface {
	TransferExternal(context.Context, cqrs.ExternalTransferCommand) (*cqrs.TransferResult, error)
}

type BankQuerier interface {
	ListBanks(context.Context) ([]models.Bank, error)
	LookupExternalAccount(context.Context, cqrs.LookupExternalAccountQuery) (*models.ExternalAccountView, error)
}

// TransferHandler serves the customer-facing money movement endpoints.
type TransferHandler struct {
	transfers  TransferCommander
	external   ExternalTransferCommander
	banks      BankQuerier
	requireOTP bool
}

type IssueOTPRequest struct {
	Purpose string `json:"purpose" validate:"required,oneof=transfer interbank-transfer debt-payment"`
}

type TransferRequest struct {
	SourceAccountNumber      string          `json:"sourceAccountNumber" validate:"omitempty,len=8,numeric"`
	DestinationAccountNumber string          `json:"destinationAccountNumber" validate:"required,len=8,numeric"`
	Amount                   decimal.Decimal `json:"amount"`
	FeePayer                 string          `json:"feePayer" validate:"omitempty,oneof=sender receiver"`
	Message                  string          `json:"message" validate:"max=255"`
	OTP                      string          `json:"otp" validate:"omitempty,len=6,numeric"`
}

type ExternalTransferRequest struct {
	SourceAccountNumber      string          `json:"sourceAccountNumber" validate:"omitempty,len=8,numeric"`
	DestinationBankCode      string          `json:"destinationBankCode" validate:"required,max=32"`
	DestinationAccountNumber string          `json:"destinationAccountNumber" validate:"required,max=34"`
	Amount                   decimal.Decimal `json:"amount"`
	FeePayer                 string          `json:"feePayer" validate:"omitempty,oneof=sender receiver"`
	Message                  string          `json:"message" validate:"max=255"`
	OTP                      string          `json:"otp" validate:"omitempty,len=6,numeric"`
}

type ListBanksResponse struct {
	Banks []models.BankView `json:"banks"`
}

func NewTransferHandler(transfers TransferCommander, external ExternalTransferCommander, banks BankQuerier, requireOTP bool) *TransferHandler {
	return &TransferHandler{transfers: transfers, external: external, banks: banks, requireOTP: requireOTP}
}

func (h *TransferHandler) IssueOTP(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req IssueOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	if err := h.transfers.IssueOTP(c.Request.Context(), cqrs.IssueOTPCommand{
		UserID:  userID,
		Email:   middleware.GetEmail(c),
		Purpose: req.Purpose,
	}); err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Verification code sent"})
}

func (h *TransferHandler) Transfer(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), cqrs.TransferCommand{
		UserID:                   userID,
		SourceAccountNumber:      req.SourceAccountNumber,
		DestinationAccountNumber: req.DestinationAccountNumber,
		Amount:                   req.Amount,
		FeePayer:                 models.FeePayer(req.FeePayer),
		Message:                  req.Message,
		OTP:                      req.OTP,
		RequireOTP:               h.requireOTP,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// TransferExternal answers 201 when the remote bank accepted the deposit and
// 502 with the failed result when it did not.
func (h *TransferHandler) TransferExternal(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ExternalTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.external.TransferExternal(c.Request.Context(), cqrs.ExternalTransferCommand{
		UserID:                   userID,
		SourceAccountNumber:      req.SourceAccountNumber,
		DestinationBankCode:      req.DestinationBankCode,
		DestinationAccountNumber: req.DestinationAccountNumber,
		Amount:                   req.Amount,
		FeePayer:                 models.FeePayer(req.FeePayer),
		Message:                  req.Message,
		OTP:                      req.OTP,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *TransferHandler) ListBanks(c *gin.Context) {
	banks, err := h.banks.ListBanks(c.Request.Context())
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	views := make([]models.BankView, 0, len(banks))
	for _, b := range banks {
		views = append(views, models.BankView{Code: b.Code, Name: b.Name})
	}
	c.JSON(http.StatusOK, ListBanksResponse{Banks: views})
}

func (h *TransferHandler) LookupExternalAccount(c *gin.Context) {
	view, err := h.banks.LookupExternalAccount(c.Request.Context(), cqrs.LookupExternalAccountQuery{
		BankCode:      c.Param("bankCode"),
		AccountNumber: c.Param("accountNumber"),
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
