package repository

import (
	"context"
	"database/sql"

	accountrepo "github.com/monli/monli/internal/account/repository"
	categoryrepo "github.com/monli/monli/internal/category/repository"
	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/models"
)

// UnitOfWork is everything a transaction mutation reads and writes inside
// one database transaction. Row locks taken through it are held until the
// enclosing Atomic call returns.
type UnitOfWork interface {
	// LockAccounts locks the live accounts among ids in id order.
	LockAccounts(ctx context.Context, ids []string) (map[string]models.Account, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	// GetTransactionForUpdate locks the transaction row.
	GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	Insert(ctx context.Context, t *models.Transaction) error
	Update(ctx context.Context, t *models.Transaction) error
	Delete(ctx context.Context, id string) error
	// Ledger reads balances as seen by this unit of work.
	Ledger() ledger.Store
}

// Store opens units of work.
type Store interface {
	Atomic(ctx context.Context, fn func(UnitOfWork) error) error
}

// PostgresStore runs each unit of work in a READ COMMITTED transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Atomic(ctx context.Context, fn func(UnitOfWork) error) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&pgUnit{
			accounts:     accountrepo.NewAccountRepository(tx),
			categories:   categoryrepo.NewCategoryRepository(tx),
			transactions: NewTransactionRepository(tx),
			ledger:       ledger.NewPostgresStore(tx),
		})
	})
}

type pgUnit struct {
	accounts     *accountrepo.AccountRepository
	categories   *categoryrepo.CategoryRepository
	transactions *TransactionRepository
	ledger       *ledger.PostgresStore
}

func (u *pgUnit) LockAccounts(ctx context.Context, ids []string) (map[string]models.Account, error) {
	return u.accounts.LockByIDs(ctx, ids)
}

func (u *pgUnit) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return u.categories.GetByID(ctx, id)
}

func (u *pgUnit) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return u.transactions.GetForUpdate(ctx, id)
}

func (u *pgUnit) Insert(ctx context.Context, t *models.Transaction) error {
	return u.transactions.Create(ctx, t)
}

func (u *pgUnit) Update(ctx context.Context, t *models.Transaction) error {
	return u.transactions.Update(ctx, t)
}

func (u *pgUnit) Delete(ctx context.Context, id string) error {
	return u.transactions.Delete(ctx, id)
}

func (u *pgUnit) Ledger() ledger.Store {
	return u.ledger
}
