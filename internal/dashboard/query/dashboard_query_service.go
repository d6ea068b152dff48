package query

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	accountquery "github.com/monli/monli/internal/account/query"
	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

// RecentLimit is the number of transactions shown on the dashboard.
const RecentLimit = 5

type AccountLister interface {
	ListByUserID(ctx context.Context, userID string, includeArchived bool) ([]models.Account, error)
}

type MonthSummarizer interface {
	MonthSummaries(ctx context.Context, userID string, from, to time.Time) ([]models.MonthSummary, error)
}

type BudgetLister interface {
	ListBudgets(ctx context.Context, q cqrs.ListBudgetsQuery) ([]models.BudgetView, error)
}

type TransactionLister interface {
	List(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.Transaction, error)
}

type Dashboard struct {
	TotalBalance       decimal.Decimal      `json:"totalBalance"`
	Accounts           []models.AccountView `json:"accounts"`
	Month              models.MonthSummary  `json:"month"`
	Budgets            []models.BudgetView  `json:"budgets"`
	RecentTransactions []models.Transaction `json:"recentTransactions"`
}

type DashboardQueryService struct {
	accounts     AccountLister
	balances     ledger.BalanceComputer
	summaries    MonthSummarizer
	budgets      BudgetLister
	transactions TransactionLister
}

func NewDashboardQueryService(
	accounts AccountLister,
	balances ledger.BalanceComputer,
	summaries MonthSummarizer,
	budgets BudgetLister,
	transactions TransactionLister,
) *DashboardQueryService {
	return &DashboardQueryService{
		accounts:     accounts,
		balances:     balances,
		summaries:    summaries,
		budgets:      budgets,
		transactions: transactions,
	}
}

// GetDashboard assembles the overview for q.Month. The four sections are
// read concurrently; the first failure cancels the rest.
func (s *DashboardQueryService) GetDashboard(ctx context.Context, q cqrs.DashboardQuery) (*Dashboard, error) {
	month := utils.MonthStart(q.Month)
	d := &Dashboard{Month: models.MonthSummary{
		Month:   utils.MonthKey(month),
		Income:  decimal.Zero,
		Expense: decimal.Zero,
		Net:     decimal.Zero,
	}}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := s.accounts.ListByUserID(ctx, q.UserID, false)
		if err != nil {
			return err
		}
		views, err := accountquery.WithBalances(ctx, s.balances, q.UserID, accounts)
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, v := range views {
			if v.CurrentBalance != nil {
				total = total.Add(*v.CurrentBalance)
			}
		}
		d.Accounts, d.TotalBalance = views, total
		return nil
	})
	g.Go(func() error {
		rows, err := s.summaries.MonthSummaries(ctx, q.UserID, month, month.AddDate(0, 1, 0))
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			d.Month = rows[0]
		}
		return nil
	})
	g.Go(func() error {
		budgets, err := s.budgets.ListBudgets(ctx, cqrs.ListBudgetsQuery{UserID: q.UserID, Month: month})
		if err != nil {
			return err
		}
		d.Budgets = budgets
		return nil
	})
	g.Go(func() error {
		recent, err := s.transactions.List(ctx, cqrs.ListTransactionsQuery{UserID: q.UserID, Limit: RecentLimit})
		if err != nil {
			return err
		}
		d.RecentTransactions = recent
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
