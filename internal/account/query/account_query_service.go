package query

import (
	"context"
	"fmt"

	"github.com/monli/monli/internal/account/repository"
	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
)

type AccountQueryService struct {
	accounts *repository.AccountRepository
	balances ledger.BalanceComputer
}

func NewAccountQueryService(db storage.DBTX, balances ledger.BalanceComputer) *AccountQueryService {
	return &AccountQueryService{
		accounts: repository.NewAccountRepository(db),
		balances: balances,
	}
}

// GetAccount fetches a single account with its current balance and enforces ownership.
func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	account, err := s.accounts.GetByID(ctx, q.AccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != q.RequestingUserID {
		return nil, cqrs.ErrForbidden
	}
	balances, err := s.balances.ComputeBalances(ctx, q.RequestingUserID, []string{account.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to compute balance: %w", err)
	}
	view := models.NewAccountView(*account, balances)
	return &view, nil
}

// ListAccounts returns the user's accounts, all balances from one ledger call.
func (s *AccountQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	accounts, err := s.accounts.ListByUserID(ctx, q.UserID, q.IncludeArchived)
	if err != nil {
		return nil, err
	}
	return WithBalances(ctx, s.balances, q.UserID, accounts)
}

// WithBalances merges current balances into accounts.
func WithBalances(ctx context.Context, balances ledger.BalanceComputer, userID string, accounts []models.Account) ([]models.AccountView, error) {
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	current, err := balances.ComputeBalances(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to compute balances: %w", err)
	}
	views := make([]models.AccountView, len(accounts))
	for i, a := range accounts {
		views[i] = models.NewAccountView(a, current)
	}
	return views, nil
}
