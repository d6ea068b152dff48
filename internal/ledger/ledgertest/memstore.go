// Package ledgertest provides an in-memory ledger.Store for tests.
package ledgertest

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/shared/models"
)

type account struct {
	userID  string
	opening decimal.Decimal
	deleted bool
}

type entry struct {
	txn     models.Transaction
	deleted bool
}

// MemStore mirrors the SQL semantics of ledger.PostgresStore over maps.
// Ids are not required to be UUIDs; an unknown id is omitted either way.
type MemStore struct {
	mu       sync.RWMutex
	accounts map[string]*account
	entries  map[string]*entry
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts: make(map[string]*account),
		entries:  make(map[string]*entry),
	}
}

func (s *MemStore) AddAccount(userID, accountID string, opening decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountID] = &account{userID: userID, opening: opening}
}

func (s *MemStore) DeleteAccount(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[accountID]; ok {
		a.deleted = true
	}
}

// Put inserts or replaces a transaction.
func (s *MemStore) Put(t models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[t.ID] = &entry{txn: t}
}

func (s *MemStore) DeleteTransaction(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.deleted = true
	}
}

func (s *MemStore) OpeningBalances(_ context.Context, userID string, accountIDs []string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal)
	for _, id := range accountIDs {
		a, ok := s.accounts[id]
		if !ok || a.deleted || a.userID != userID {
			continue
		}
		out[id] = a.opening
	}
	return out, nil
}

func (s *MemStore) SumAmounts(_ context.Context, userID string, accountIDs []string, leg ledger.Leg) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = struct{}{}
	}

	out := make(map[string]decimal.Decimal)
	for _, e := range s.entries {
		t := e.txn
		if e.deleted || t.UserID != userID || t.Type != leg.Type {
			continue
		}
		var key string
		switch leg.Key {
		case ledger.ByAccount:
			key = t.AccountID
		case ledger.ByFromAccount:
			key = t.FromAccountID
		case ledger.ByToAccount:
			key = t.ToAccountID
		}
		if _, ok := wanted[key]; !ok {
			continue
		}
		out[key] = out[key].Add(t.Amount)
	}
	return out, nil
}
