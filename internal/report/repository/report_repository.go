package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/models"
)

// UncategorizedName labels totals of transactions without a category.
const UncategorizedName = "Uncategorized"

type ReportRepository struct {
	db storage.DBTX
}

func NewReportRepository(db storage.DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// MonthSummaries totals live income and expense per calendar month for
// occurred_on in [from, to). Months without activity are not returned.
func (r *ReportRepository) MonthSummaries(ctx context.Context, userID string, from, to time.Time) ([]models.MonthSummary, error) {
	query := `
		SELECT to_char(date_trunc('month', occurred_on), 'YYYY-MM') AS month,
		       COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)
		FROM transactions
		WHERE user_id = $1
		  AND deleted_at IS NULL
		  AND type IN ('income', 'expense')
		  AND occurred_on >= $2 AND occurred_on < $3
		GROUP BY 1
		ORDER BY 1
	`
	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize months: %w", err)
	}
	defer rows.Close()

	out := []models.MonthSummary{}
	for rows.Next() {
		var s models.MonthSummary
		if err := rows.Scan(&s.Month, &s.Income, &s.Expense); err != nil {
			return nil, fmt.Errorf("failed to scan month summary: %w", err)
		}
		s.Net = s.Income.Sub(s.Expense)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CategoryTotals sums live transactions of kind per category for occurred_on
// in [from, to), largest first.
func (r *ReportRepository) CategoryTotals(ctx context.Context, userID, kind string, from, to time.Time) ([]models.CategoryTotal, error) {
	query := `
		SELECT t.category_id, c.name, SUM(t.amount) AS total
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
		  AND t.deleted_at IS NULL
		  AND t.type = $2
		  AND t.occurred_on >= $3 AND t.occurred_on < $4
		GROUP BY t.category_id, c.name
		ORDER BY total DESC, c.name
	`
	rows, err := r.db.QueryContext(ctx, query, userID, kind, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to total categories: %w", err)
	}
	defer rows.Close()

	out := []models.CategoryTotal{}
	for rows.Next() {
		var id, name sql.NullString
		var total decimal.Decimal
		if err := rows.Scan(&id, &name, &total); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		ct := models.CategoryTotal{CategoryID: id.String, CategoryName: name.String, Total: total}
		if !id.Valid {
			ct.CategoryName = UncategorizedName
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}
