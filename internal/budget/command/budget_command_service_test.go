package command

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/monli/monli/shared/cqrs"
)

// Amount checks run before any query, so no database is needed.
func TestSetBudget_RejectsInvalidAmount(t *testing.T) {
	svc := NewBudgetCommandService(nil)

	for _, amount := range []string{"0", "-5", "10.001", "10000000000000000"} {
		t.Run(amount, func(t *testing.T) {
			_, err := svc.SetBudget(context.Background(), cqrs.SetBudgetCommand{
				UserID:     "usr-001",
				CategoryID: "6ec0bd7f-11c0-43da-975e-2a8ad9ebae0b",
				Month:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				Amount:     decimal.RequireFromString(amount),
			})
			assert.ErrorIs(t, err, cqrs.ErrInvalidAmount)
		})
	}
}
