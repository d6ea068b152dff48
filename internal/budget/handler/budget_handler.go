package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/middleware"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

type BudgetCommander interface {
	SetBudget(context.Context, cqrs.SetBudgetCommand) (*models.Budget, error)
	DeleteBudget(context.Context, cqrs.DeleteBudgetCommand) error
}

type BudgetQuerier interface {
	ListBudgets(context.Context, cqrs.ListBudgetsQuery) ([]models.BudgetView, error)
}

type BudgetHandler struct {
	commands BudgetCommander
	queries  BudgetQuerier
}

type SetBudgetRequest struct {
	CategoryID string          `json:"categoryId" validate:"required,uuid"`
	Month      string          `json:"month" validate:"required,datetime=2006-01"`
	Amount     decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type ListBudgetsResponse struct {
	Month   string              `json:"month"`
	Budgets []models.BudgetView `json:"budgets"`
}

func NewBudgetHandler(commands BudgetCommander, queries BudgetQuerier) *BudgetHandler {
	return &BudgetHandler{commands: commands, queries: queries}
}

func (h *BudgetHandler) SetBudget(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req SetBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}
	month, _ := utils.ParseMonth(req.Month)

	budget, err := h.commands.SetBudget(c.Request.Context(), cqrs.SetBudgetCommand{
		UserID:     userID,
		CategoryID: req.CategoryID,
		Month:      month,
		Amount:     req.Amount,
	})
	if err != nil {
		respondBudgetError(c, err, "Failed to save budget")
		return
	}

	c.JSON(http.StatusOK, budget)
}

func (h *BudgetHandler) ListBudgets(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	month, ok := middleware.MonthParam(c, "month")
	if !ok {
		return
	}

	views, err := h.queries.ListBudgets(c.Request.Context(), cqrs.ListBudgetsQuery{UserID: userID, Month: month})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list budgets")
		return
	}

	c.JSON(http.StatusOK, ListBudgetsResponse{Month: utils.MonthKey(month), Budgets: views})
}

func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	budgetID := c.Param("budgetId")
	userID, _ := middleware.GetUserID(c)

	err := h.commands.DeleteBudget(c.Request.Context(), cqrs.DeleteBudgetCommand{
		BudgetID:         budgetID,
		RequestingUserID: userID,
	})
	if err != nil {
		respondBudgetError(c, err, "Failed to delete budget")
		return
	}

	c.Status(http.StatusNoContent)
}

func respondBudgetError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, cqrs.ErrInvalidAmount):
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, cqrs.ErrBudgetNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Budget not found")
	case errors.Is(err, cqrs.ErrCategoryNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Category not found")
	case errors.Is(err, cqrs.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, "You can only manage your own budgets")
	case errors.Is(err, cqrs.ErrCategoryMismatch):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Budgets can only be set on expense categories")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
