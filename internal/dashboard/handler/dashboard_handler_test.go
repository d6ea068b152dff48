package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/monli/monli/internal/dashboard/query"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

type mockDashboardQuerier struct {
	getFn func(cqrs.DashboardQuery) (*query.Dashboard, error)
}

func (m *mockDashboardQuerier) GetDashboard(_ context.Context, q cqrs.DashboardQuery) (*query.Dashboard, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

func TestGetDashboard(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		getFn          func(cqrs.DashboardQuery) (*query.Dashboard, error)
		expectedStatus int
	}{
		{
			name: "success",
			url:  "/v1/dashboard?month=2024-03",
			getFn: func(q cqrs.DashboardQuery) (*query.Dashboard, error) {
				if q.UserID != "usr-001" || utils.MonthKey(q.Month) != "2024-03" {
					return nil, fmt.Errorf("unexpected query %+v", q)
				}
				return &query.Dashboard{
					TotalBalance: decimal.RequireFromString("1084.75"),
					Month:        models.MonthSummary{Month: "2024-03"},
				}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{name: "bad month", url: "/v1/dashboard?month=03-2024", expectedStatus: http.StatusBadRequest},
		{
			name:           "failure",
			url:            "/v1/dashboard",
			getFn:          func(cqrs.DashboardQuery) (*query.Dashboard, error) { return nil, fmt.Errorf("db down") },
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Set("userId", "usr-001")
				c.Next()
			})
			r.GET("/v1/dashboard", NewDashboardHandler(&mockDashboardQuerier{getFn: tt.getFn}).GetDashboard)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, tt.url, nil)
			r.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected %d got %d; body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code != http.StatusOK {
				return
			}
			var resp struct {
				TotalBalance string `json:"totalBalance"`
				Month        struct {
					Month string `json:"month"`
				} `json:"month"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.TotalBalance != "1084.75" || resp.Month.Month != "2024-03" {
				t.Errorf("unexpected payload: %s", w.Body.String())
			}
		})
	}
}
