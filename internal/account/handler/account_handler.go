package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/middleware"
	"github.com/monli/monli/shared/models"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.AccountView, error)
	UpdateAccount(context.Context, cqrs.UpdateAccountCommand) (*models.AccountView, error)
	DeleteAccount(context.Context, cqrs.DeleteAccountCommand) error
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) ([]models.AccountView, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

type CreateAccountRequest struct {
	Name           string          `json:"name" validate:"required,max=100"`
	Type           string          `json:"type" validate:"required,oneof=cash bank ewallet savings investment credit"`
	Currency       string          `json:"currency" validate:"omitempty,len=3,alpha"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}

type UpdateAccountRequest struct {
	Name           *string          `json:"name" validate:"omitempty,min=1,max=100"`
	Type           *string          `json:"type" validate:"omitempty,oneof=cash bank ewallet savings investment credit"`
	Currency       *string          `json:"currency" validate:"omitempty,len=3,alpha"`
	OpeningBalance *decimal.Decimal `json:"openingBalance"`
	Archived       *bool            `json:"archived"`
}

type ListAccountsResponse struct {
	Accounts []models.AccountView `json:"accounts"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		UserID:         userID,
		Name:           req.Name,
		Type:           req.Type,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		if errors.Is(err, cqrs.ErrInvalidAmount) {
			middleware.RespondWithError(c, http.StatusBadRequest, "Opening balance must have at most 2 decimal places")
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	includeArchived := false
	if raw := c.Query("includeArchived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, "includeArchived must be true or false")
			return
		}
		includeArchived = v
	}

	views, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{
		UserID:          userID,
		IncludeArchived: includeArchived,
	})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: views})
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	accountID := c.Param("accountId")
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{
		AccountID:        accountID,
		RequestingUserID: userID,
	})
	if err != nil {
		respondAccountError(c, err, "You can only access your own accounts", "Failed to fetch account")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	accountID := c.Param("accountId")
	userID, _ := middleware.GetUserID(c)

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.UpdateAccount(c.Request.Context(), cqrs.UpdateAccountCommand{
		AccountID:        accountID,
		RequestingUserID: userID,
		Name:             req.Name,
		Type:             req.Type,
		Currency:         req.Currency,
		OpeningBalance:   req.OpeningBalance,
		Archived:         req.Archived,
	})
	if err != nil {
		respondAccountError(c, err, "You can only update your own accounts", "Failed to update account")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	accountID := c.Param("accountId")
	userID, _ := middleware.GetUserID(c)

	err := h.commands.DeleteAccount(c.Request.Context(), cqrs.DeleteAccountCommand{
		AccountID:        accountID,
		RequestingUserID: userID,
	})
	if err != nil {
		if errors.Is(err, cqrs.ErrAccountHasActivity) {
			middleware.RespondWithError(c, http.StatusConflict, "Account has transactions; archive it instead")
			return
		}
		respondAccountError(c, err, "You can only delete your own accounts", "Failed to delete account")
		return
	}

	c.Status(http.StatusNoContent)
}

func respondAccountError(c *gin.Context, err error, forbidden, fallback string) {
	switch {
	case errors.Is(err, cqrs.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, cqrs.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, forbidden)
	case errors.Is(err, cqrs.ErrInvalidAmount):
		middleware.RespondWithError(c, http.StatusBadRequest, "Opening balance must have at most 2 decimal places")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
