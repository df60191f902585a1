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

type DebtReminderCommander interface {
	Create(context.Context, cqrs.CreateDebtReminderCommand) (*models.DebtReminder, error)
	Cancel(context.Context, cqrs.CancelDebtReminderCommand) error
	Pay(context.Context, cqrs.PayDebtReminderCommand) (*cqrs.TransferResult, error)
}

type DebtReminderQuerier interface {
	ListDebtReminders(context.Context, cqrs.ListDebtRemindersQuery) ([]models.DebtReminder, error)
}

type DebtReminderHandler struct {
	commands DebtReminderCommander
	queries  DebtReminderQuerier
}

type CreateDebtReminderRequest struct {
	CreditorAccountNumber string          `json:"creditorAccountNumber" validate:"omitempty,len=8,numeric"`
	DebtorAccountNumber   string          `json:"debtorAccountNumber" validate:"required,len=8,numeric"`
	Amount                decimal.Decimal `json:"amount"`
	Message               string          `json:"message" validate:"max=255"`
}

type PayDebtReminderRequest struct {
	OTP string `json:"otp" validate:"required,len=6,numeric"`
}

type ListDebtRemindersResponse struct {
	DebtReminders []models.DebtReminder `json:"debtReminders"`
}

func NewDebtReminderHandler(commands DebtReminderCommander, queries DebtReminderQuerier) *DebtReminderHandler {
	return &DebtReminderHandler{commands: commands, queries: queries}
}

func (h *DebtReminderHandler) Create(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CreateDebtReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	reminder, err := h.commands.Create(c.Request.Context(), cqrs.CreateDebtReminderCommand{
		UserID:                userID,
		CreditorAccountNumber: req.CreditorAccountNumber,
		DebtorAccountNumber:   req.DebtorAccountNumber,
		Amount:                req.Amount,
		Message:               req.Message,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reminder)
}

func (h *DebtReminderHandler) List(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	reminders, err := h.queries.ListDebtReminders(c.Request.Context(), cqrs.ListDebtRemindersQuery{UserID: userID})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListDebtRemindersResponse{DebtReminders: reminders})
}

func (h *DebtReminderHandler) Cancel(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	if err := h.commands.Cancel(c.Request.Context(), cqrs.CancelDebtReminderCommand{
		UserID:     userID,
		ReminderID: c.Param("reminderId"),
	}); err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DebtReminderHandler) Pay(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req PayDebtReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.commands.Pay(c.Request.Context(), cqrs.PayDebtReminderCommand{
		UserID:     userID,
		ReminderID: c.Param("reminderId"),
		OTP:        req.OTP,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
