package command

import (
	"fmt"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

// ValidateShape checks the fields a transaction must or must not carry for
// its type. It does not touch storage.
func ValidateShape(t *models.Transaction) error {
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", cqrs.ErrInvalidAmount)
	}
	if !utils.HasCents(t.Amount) {
		return fmt.Errorf("%w: amount must have at most 2 decimal places", cqrs.ErrInvalidAmount)
	}
	if t.Amount.GreaterThan(utils.MaxAmount) {
		return fmt.Errorf("%w: amount must not exceed %s", cqrs.ErrInvalidAmount, utils.MaxAmount)
	}

	switch t.Type {
	case models.TransactionIncome, models.TransactionExpense:
		if t.AccountID == "" {
			return fmt.Errorf("%w: %s requires accountId", cqrs.ErrInvalidTransaction, t.Type)
		}
		if t.FromAccountID != "" || t.ToAccountID != "" {
			return fmt.Errorf("%w: %s cannot have fromAccountId or toAccountId", cqrs.ErrInvalidTransaction, t.Type)
		}
	case models.TransactionTransfer:
		if t.FromAccountID == "" || t.ToAccountID == "" {
			return fmt.Errorf("%w: transfer requires fromAccountId and toAccountId", cqrs.ErrInvalidTransaction)
		}
		if t.FromAccountID == t.ToAccountID {
			return fmt.Errorf("%w: transfer source and destination must differ", cqrs.ErrInvalidTransaction)
		}
		if t.AccountID != "" {
			return fmt.Errorf("%w: transfer cannot have accountId", cqrs.ErrInvalidTransaction)
		}
		if t.CategoryID != "" {
			return fmt.Errorf("%w: transfer cannot have a category", cqrs.ErrInvalidTransaction)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", cqrs.ErrInvalidTransaction, t.Type)
	}
	return nil
}
