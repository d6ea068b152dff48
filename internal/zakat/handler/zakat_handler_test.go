package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/monli/monli/internal/zakat/query"
	"github.com/monli/monli/shared/cqrs"
)

type mockZakatCalculator struct {
	calculateFn func(cqrs.ZakatQuery) (*query.Result, error)
}

func (m *mockZakatCalculator) Calculate(_ context.Context, q cqrs.ZakatQuery) (*query.Result, error) {
	if m.calculateFn != nil {
		return m.calculateFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

func TestCalculateZakat(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		calculateFn    func(cqrs.ZakatQuery) (*query.Result, error)
		expectedStatus int
	}{
		{
			name: "success with overrides",
			body: `{"nisabBasis":"silver","silverPricePerGram":"12000","additionalAssets":"250000","liabilities":"1000"}`,
			calculateFn: func(q cqrs.ZakatQuery) (*query.Result, error) {
				if q.UserID != "usr-001" || q.NisabBasis != "silver" || q.SilverPricePerGram == nil ||
					!q.SilverPricePerGram.Equal(decimal.NewFromInt(12000)) || !q.Liabilities.Equal(decimal.NewFromInt(1000)) {
					return nil, fmt.Errorf("unexpected query %+v", q)
				}
				return &query.Result{NisabBasis: "silver"}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "empty body uses defaults",
			body:           `{}`,
			calculateFn:    func(cqrs.ZakatQuery) (*query.Result, error) { return &query.Result{}, nil },
			expectedStatus: http.StatusOK,
		},
		{name: "unknown basis", body: `{"nisabBasis":"platinum"}`, expectedStatus: http.StatusBadRequest},
		{name: "negative liabilities", body: `{"liabilities":"-5"}`, expectedStatus: http.StatusBadRequest},
		{name: "zero price override", body: `{"goldPricePerGram":"0"}`, expectedStatus: http.StatusBadRequest},
		{
			name:           "no price configured",
			body:           `{}`,
			calculateFn:    func(cqrs.ZakatQuery) (*query.Result, error) { return nil, fmt.Errorf("%w: no gold price", cqrs.ErrInvalidAmount) },
			expectedStatus: http.StatusBadRequest,
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
			r.POST("/v1/zakat/calculate", NewZakatHandler(&mockZakatCalculator{calculateFn: tt.calculateFn}).Calculate)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/v1/zakat/calculate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected %d got %d; body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
