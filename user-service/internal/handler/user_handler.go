package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/platform/shared/cqrs"
	"github.com/eaglebank/platform/shared/middleware"
	"github.com/eaglebank/platform/shared/models"
	"github.com/eaglebank/platform/shared/utils"
	"github.com/gin-gonic/gin"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(context.Context, cqrs.CreateUserCommand) (*models.UserView, error)
	UpdateUser(context.Context, cqrs.UpdateUserCommand) (*models.UserView, error)
	DeleteUser(context.Context, cqrs.DeleteUserCommand) error
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	GetUser(context.Context, cqrs.GetUserQuery) (*models.UserView, error)
}

// UserHandler serves customer registration and profile management.
type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
}

type CreateUserRequest struct {
	Name        string         `json:"name" validate:"required"`
	Email       string         `json:"email" validate:"required,email"`
	Password    string         `json:"password" validate:"required,min=8"`
	PhoneNumber string         `json:"phoneNumber" validate:"required,e164"`
	Address     models.Address `json:"address" validate:"required"`
}

// UpdateUserRequest carries only the fields the customer wants to change.
type UpdateUserRequest struct {
	Name        *string         `json:"name" validate:"omitempty,min=1"`
	Email       *string         `json:"email" validate:"omitempty,email"`
	PhoneNumber *string         `json:"phoneNumber" validate:"omitempty,e164"`
	Address     *models.Address `json:"address" validate:"omitempty"`
}

func (r UpdateUserRequest) empty() bool {
	return r.Name == nil && r.Email == nil && r.PhoneNumber == nil && r.Address == nil
}

func NewUserHandler(commands UserCommander, queries UserQuerier) *UserHandler {
	return &UserHandler{commands: commands, queries: queries}
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	view, err := h.commands.CreateUser(c.Request.Context(), cqrs.CreateUserCommand{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID := c.Param("userId")
	if !utils.ValidateUserID(userID) {
		middleware.RespondWithError(c, http.StatusNotFound, "User not found")
		return
	}
	requestingUserID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetUser(c.Request.Context(), cqrs.GetUserQuery{
		UserID:           userID,
		RequestingUserID: requestingUserID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, ok := ownProfile(c, "You can only update your own user details")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.empty() {
		middleware.RespondWithError(c, http.StatusBadRequest, "At least one field must be provided")
		return
	}

	view, err := h.commands.UpdateUser(c.Request.Context(), cqrs.UpdateUserCommand{
		UserID:      userID,
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, ok := ownProfile(c, "You can only delete your own account")
	if !ok {
		return
	}

	if err := h.commands.DeleteUser(c.Request.Context(), cqrs.DeleteUserCommand{UserID: userID}); err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ownProfile returns the path user ID when it matches the authenticated caller.
func ownProfile(c *gin.Context, denied string) (string, bool) {
	userID := c.Param("userId")
	if requester, _ := middleware.GetUserID(c); requester != userID {
		middleware.RespondWithError(c, http.StatusForbidden, denied)
		return "", false
	}
	return userID, true
}

func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}
