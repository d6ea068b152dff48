package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monli/monli/internal/dashboard/query"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/middleware"
)

type DashboardQuerier interface {
	GetDashboard(context.Context, cqrs.DashboardQuery) (*query.Dashboard, error)
}

type DashboardHandler struct {
	queries DashboardQuerier
}

func NewDashboardHandler(queries DashboardQuerier) *DashboardHandler {
	return &DashboardHandler{queries: queries}
}

func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	month, ok := middleware.MonthParam(c, "month")
	if !ok {
		return
	}

	dashboard, err := h.queries.GetDashboard(c.Request.Context(), cqrs.DashboardQuery{UserID: userID, Month: month})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
