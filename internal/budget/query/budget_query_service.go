package query

import (
	"context"

	"github.com/monli/monli/internal/budget/repository"
	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

type BudgetQueryService struct {
	budgets *repository.BudgetRepository
}

func NewBudgetQueryService(db storage.DBTX) *BudgetQueryService {
	return &BudgetQueryService{budgets: repository.NewBudgetRepository(db)}
}

// ListBudgets returns the user's budgets for q.Month with spending progress.
func (s *BudgetQueryService) ListBudgets(ctx context.Context, q cqrs.ListBudgetsQuery) ([]models.BudgetView, error) {
	rows, err := s.budgets.ListWithSpent(ctx, q.UserID, utils.MonthStart(q.Month))
	if err != nil {
		return nil, err
	}
	views := make([]models.BudgetView, len(rows))
	for i, r := range rows {
		views[i] = Progress(r)
	}
	return views, nil
}

// Progress derives the view of one budget. Remaining goes negative once the
// budget is overspent.
func Progress(p repository.BudgetProgress) models.BudgetView {
	return models.BudgetView{
		Budget:       p.Budget,
		CategoryName: p.CategoryName,
		Spent:        p.Spent,
		Remaining:    p.Amount.Sub(p.Spent),
	}
}
