package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

const budgetColumns = `b.id, b.user_id, b.category_id, b.month, b.amount, b.created_at, b.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner, extra ...any) (*models.Budget, error) {
	var b models.Budget
	dest := append([]any{&b.ID, &b.UserID, &b.CategoryID, &b.Month, &b.Amount, &b.CreatedAt, &b.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	b.Month = b.Month.UTC()
	return &b, nil
}

// BudgetProgress is a budget joined with its category name and the live
// expense total of that category in the budget's month.
type BudgetProgress struct {
	models.Budget
	CategoryName string
	Spent        decimal.Decimal
}

type BudgetRepository struct {
	db storage.DBTX
}

func NewBudgetRepository(db storage.DBTX) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// Upsert creates the budget for (user, category, month) or replaces the
// amount of the live one. b.ID and b.CreatedAt are set to the stored row's.
func (r *BudgetRepository) Upsert(ctx context.Context, b *models.Budget) error {
	query := `
		INSERT INTO budgets (id, user_id, category_id, month, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, category_id, month) WHERE deleted_at IS NULL
		DO UPDATE SET amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		b.ID, b.UserID, b.CategoryID, b.Month, b.Amount, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	return nil
}

func (r *BudgetRepository) GetByID(ctx context.Context, id string) (*models.Budget, error) {
	if !utils.ValidateID(id) {
		return nil, cqrs.ErrBudgetNotFound
	}
	query := `SELECT ` + budgetColumns + ` FROM budgets b WHERE b.id = $1 AND b.deleted_at IS NULL`
	b, err := scanBudget(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cqrs.ErrBudgetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	return b, nil
}

// ListWithSpent returns the user's budgets for month, ordered by category
// name, each with the month's live expenses in its category.
func (r *BudgetRepository) ListWithSpent(ctx context.Context, userID string, month time.Time) ([]BudgetProgress, error) {
	query := `
		SELECT ` + budgetColumns + `, c.name, COALESCE(SUM(t.amount), 0)
		FROM budgets b
		JOIN categories c ON c.id = b.category_id
		LEFT JOIN transactions t
		       ON t.user_id = b.user_id
		      AND t.category_id = b.category_id
		      AND t.type = 'expense'
		      AND t.deleted_at IS NULL
		      AND t.occurred_on >= b.month
		      AND t.occurred_on < b.month + INTERVAL '1 month'
		WHERE b.user_id = $1 AND b.month = $2 AND b.deleted_at IS NULL
		GROUP BY b.id, c.name
		ORDER BY c.name, b.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	out := []BudgetProgress{}
	for rows.Next() {
		var p BudgetProgress
		b, err := scanBudget(rows, &p.CategoryName, &p.Spent)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		p.Budget = *b
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *BudgetRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE budgets SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return cqrs.ErrBudgetNotFound
	}
	return nil
}
