package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/middleware"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

type ReportQuerier interface {
	MonthlyReport(context.Context, cqrs.MonthlyReportQuery) ([]models.MonthSummary, error)
	CategoryReport(context.Context, cqrs.CategoryReportQuery) ([]models.CategoryTotal, error)
}

type ReportHandler struct {
	queries ReportQuerier
}

type MonthlyReportResponse struct {
	From   string                `json:"from"`
	To     string                `json:"to"`
	Months []models.MonthSummary `json:"months"`
}

type CategoryReportResponse struct {
	Month      string                 `json:"month"`
	Kind       string                 `json:"kind"`
	Categories []models.CategoryTotal `json:"categories"`
}

func NewReportHandler(queries ReportQuerier) *ReportHandler {
	return &ReportHandler{queries: queries}
}

// MonthlyReport serves GET /reports/monthly. Both bounds default to the
// current month.
func (h *ReportHandler) MonthlyReport(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	from, ok := middleware.MonthParam(c, "from")
	if !ok {
		return
	}
	to, ok := middleware.MonthParam(c, "to")
	if !ok {
		return
	}

	months, err := h.queries.MonthlyReport(c.Request.Context(), cqrs.MonthlyReportQuery{UserID: userID, From: from, To: to})
	if err != nil {
		if errors.Is(err, cqrs.ErrInvalidRange) {
			middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to build monthly report")
		return
	}

	c.JSON(http.StatusOK, MonthlyReportResponse{From: utils.MonthKey(from), To: utils.MonthKey(to), Months: months})
}

func (h *ReportHandler) CategoryReport(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	month, ok := middleware.MonthParam(c, "month")
	if !ok {
		return
	}
	kind := c.DefaultQuery("kind", models.CategoryExpense)
	if kind != models.CategoryExpense && kind != models.CategoryIncome {
		middleware.RespondWithError(c, http.StatusBadRequest, "kind must be income or expense")
		return
	}

	totals, err := h.queries.CategoryReport(c.Request.Context(), cqrs.CategoryReportQuery{UserID: userID, Month: month, Kind: kind})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to build category report")
		return
	}

	c.JSON(http.StatusOK, CategoryReportResponse{Month: utils.MonthKey(month), Kind: kind, Categories: totals})
}
