package command

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/internal/ledger/ledgertest"
	"github.com/monli/monli/internal/transaction/repository"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
)

// memStore is a repository.Store whose row locks behave like
// SELECT ... FOR UPDATE: a lock is held until the unit of work ends, and
// writes become visible to others only on commit.
type memStore struct {
	mu         sync.Mutex
	ledger     *ledgertest.MemStore
	accounts   map[string]models.Account
	categories map[string]models.Category
	txns       map[string]models.Transaction
	rowLocks   map[string]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		ledger:     ledgertest.NewMemStore(),
		accounts:   map[string]models.Account{},
		categories: map[string]models.Category{},
		txns:       map[string]models.Transaction{},
		rowLocks:   map[string]*sync.Mutex{},
	}
}

func (s *memStore) addAccount(a models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	s.ledger.AddAccount(a.UserID, a.ID, a.OpeningBalance)
}

func (s *memStore) addCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

func (s *memStore) addTransaction(t models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[t.ID] = t
	s.ledger.Put(t)
}

func (s *memStore) balance(userID, accountID string) decimal.Decimal {
	got, err := ledger.NewAggregator(s.ledger).ComputeBalances(context.Background(), userID, []string{accountID})
	if err != nil {
		panic(err)
	}
	return got[accountID]
}

func (s *memStore) rowLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[key] = l
	}
	return l
}

func (s *memStore) Atomic(_ context.Context, fn func(repository.UnitOfWork) error) error {
	u := &memUnit{store: s}
	defer u.release()
	if err := fn(u); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range u.writes {
		w()
	}
	return nil
}

type memUnit struct {
	store  *memStore
	held   []*sync.Mutex
	writes []func()
}

func (u *memUnit) release() {
	for i := len(u.held) - 1; i >= 0; i-- {
		u.held[i].Unlock()
	}
}

func (u *memUnit) lock(key string) {
	l := u.store.rowLock(key)
	l.Lock()
	u.held = append(u.held, l)
}

func (u *memUnit) LockAccounts(_ context.Context, ids []string) (map[string]models.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	out := map[string]models.Account{}
	seen := map[string]bool{}
	for _, id := range sorted {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		u.lock("account:" + id)
		u.store.mu.Lock()
		a, ok := u.store.accounts[id]
		u.store.mu.Unlock()
		if ok {
			out[id] = a
		}
	}
	return out, nil
}

func (u *memUnit) GetCategory(_ context.Context, id string) (*models.Category, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	c, ok := u.store.categories[id]
	if !ok {
		return nil, cqrs.ErrCategoryNotFound
	}
	return &c, nil
}

func (u *memUnit) GetTransactionForUpdate(_ context.Context, id string) (*models.Transaction, error) {
	u.lock("transaction:" + id)
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	t, ok := u.store.txns[id]
	if !ok {
		return nil, cqrs.ErrTransactionNotFound
	}
	return &t, nil
}

func (u *memUnit) Insert(_ context.Context, t *models.Transaction) error {
	u.store.mu.Lock()
	_, exists := u.store.txns[t.ID]
	u.store.mu.Unlock()
	if exists {
		return cqrs.ErrTransactionExists
	}
	row := *t
	u.writes = append(u.writes, func() {
		u.store.txns[row.ID] = row
		u.store.ledger.Put(row)
	})
	return nil
}

func (u *memUnit) Update(_ context.Context, t *models.Transaction) error {
	row := *t
	u.writes = append(u.writes, func() {
		u.store.txns[row.ID] = row
		u.store.ledger.Put(row)
	})
	return nil
}

func (u *memUnit) Delete(_ context.Context, id string) error {
	u.writes = append(u.writes, func() {
		delete(u.store.txns, id)
		u.store.ledger.DeleteTransaction(id)
	})
	return nil
}

func (u *memUnit) Ledger() ledger.Store {
	return u.store.ledger
}

type publishedEvent struct {
	stream    string
	eventType string
	data      any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, stream, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{stream: stream, eventType: eventType, data: data})
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type recordingBalances struct {
	ledger.BalanceComputer
	mu          sync.Mutex
	invalidated []string
}

func (b *recordingBalances) Invalidate(_ context.Context, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invalidated = append(b.invalidated, userID)
}

var errBoom = errors.New("boom")
