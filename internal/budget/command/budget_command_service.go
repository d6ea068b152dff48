package command

import (
	"context"
	"fmt"
	"time"

	"github.com/monli/monli/internal/budget/repository"
	categoryrepo "github.com/monli/monli/internal/category/repository"
	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

type BudgetCommandService struct {
	budgets    *repository.BudgetRepository
	categories *categoryrepo.CategoryRepository
}

func NewBudgetCommandService(db storage.DBTX) *BudgetCommandService {
	return &BudgetCommandService{
		budgets:    repository.NewBudgetRepository(db),
		categories: categoryrepo.NewCategoryRepository(db),
	}
}

// SetBudget creates or replaces the budget of one expense category for one
// month.
func (s *BudgetCommandService) SetBudget(ctx context.Context, cmd cqrs.SetBudgetCommand) (*models.Budget, error) {
	if !cmd.Amount.IsPositive() || !utils.ValidAmount(cmd.Amount) {
		return nil, fmt.Errorf("%w: budget must be positive with at most 2 decimal places and at most %s", cqrs.ErrInvalidAmount, utils.MaxAmount)
	}
	category, err := s.categories.GetByID(ctx, cmd.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.UserID != cmd.UserID {
		return nil, cqrs.ErrForbidden
	}
	if category.Kind != models.CategoryExpense {
		return nil, cqrs.ErrCategoryMismatch
	}

	now := time.Now().UTC()
	b := &models.Budget{
		ID:         utils.GenerateID(),
		UserID:     cmd.UserID,
		CategoryID: cmd.CategoryID,
		Month:      utils.MonthStart(cmd.Month),
		Amount:     cmd.Amount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.budgets.Upsert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BudgetCommandService) DeleteBudget(ctx context.Context, cmd cqrs.DeleteBudgetCommand) error {
	b, err := s.budgets.GetByID(ctx, cmd.BudgetID)
	if err != nil {
		return err
	}
	if b.UserID != cmd.RequestingUserID {
		return cqrs.ErrForbidden
	}
	return s.budgets.Delete(ctx, b.ID)
}
