// Package ledger derives account balances from the transaction log.
//
// Balances are never stored. Every read replays
//
//	opening + income - expense - transfers out + transfers in
//
// through grouped sums restricted to the requested accounts.
package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

// BalanceComputer is implemented by Aggregator and CachedAggregator.
type BalanceComputer interface {
	ComputeBalances(ctx context.Context, userID string, accountIDs []string) (map[string]decimal.Decimal, error)
}

// Aggregator computes current balances. It holds no state and performs no
// writes; it is safe for concurrent use.
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// ComputeBalances returns the current balance of each requested account
// owned by userID. Accounts that are not visible to userID are omitted; a
// missing key means unknown, not zero.
func (a *Aggregator) ComputeBalances(ctx context.Context, userID string, accountIDs []string) (map[string]decimal.Decimal, error) {
	ids := utils.Unique(accountIDs)
	balances := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return balances, nil
	}

	opening, err := a.store.OpeningBalances(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load opening balances: %w", err)
	}
	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	for id, b := range opening {
		if _, ok := requested[id]; ok {
			balances[id] = b
		}
	}
	if len(balances) == 0 {
		return balances, nil
	}

	visible := make([]string, 0, len(balances))
	for id := range balances {
		visible = append(visible, id)
	}
	sort.Strings(visible)

	for _, leg := range Legs {
		sums, err := a.store.SumAmounts(ctx, userID, visible, leg)
		if err != nil {
			return nil, fmt.Errorf("failed to sum %s by %s: %w", leg.Type, leg.Key, err)
		}
		for id, sum := range sums {
			b, ok := balances[id]
			if !ok {
				continue
			}
			if leg.Credit {
				balances[id] = b.Add(sum)
			} else {
				balances[id] = b.Sub(sum)
			}
		}
	}
	return balances, nil
}

// Effect is the signed change one transaction makes to one account's
// balance. It agrees with the grouped sums used by ComputeBalances.
func Effect(t *models.Transaction, accountID string) decimal.Decimal {
	if t == nil || accountID == "" {
		return decimal.Zero
	}
	switch t.Type {
	case models.TransactionIncome:
		if t.AccountID == accountID {
			return t.Amount
		}
	case models.TransactionExpense:
		if t.AccountID == accountID {
			return t.Amount.Neg()
		}
	case models.TransactionTransfer:
		effect := decimal.Zero
		if t.FromAccountID == accountID {
			effect = effect.Sub(t.Amount)
		}
		if t.ToAccountID == accountID {
			effect = effect.Add(t.Amount)
		}
		return effect
	}
	return decimal.Zero
}
