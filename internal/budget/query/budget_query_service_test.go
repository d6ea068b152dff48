package query

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/monli/monli/internal/budget/repository"
	"github.com/monli/monli/shared/models"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		name          string
		amount, spent string
		wantRemaining string
	}{
		{"untouched", "500000", "0", "500000"},
		{"partly spent", "500000", "123456.78", "376543.22"},
		{"exactly spent", "100.10", "100.10", "0"},
		{"overspent", "100", "150.50", "-50.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Progress(repository.BudgetProgress{
				Budget:       models.Budget{ID: "b-1", Amount: decimal.RequireFromString(tt.amount)},
				CategoryName: "Food",
				Spent:        decimal.RequireFromString(tt.spent),
			})
			assert.True(t, view.Remaining.Equal(decimal.RequireFromString(tt.wantRemaining)), "remaining = %s", view.Remaining)
			assert.Equal(t, "Food", view.CategoryName)
			assert.Equal(t, "b-1", view.ID)
		})
	}
}
