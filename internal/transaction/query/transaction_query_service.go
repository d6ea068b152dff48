package query

import (
	"context"

	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/internal/transaction/repository"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
)

type TransactionQueryService struct {
	transactions *repository.TransactionRepository
}

func NewTransactionQueryService(db storage.DBTX) *TransactionQueryService {
	return &TransactionQueryService{transactions: repository.NewTransactionRepository(db)}
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.Transaction, error) {
	txn, err := s.transactions.GetByID(ctx, q.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != q.RequestingUserID {
		return nil, cqrs.ErrForbidden
	}
	return txn, nil
}

// ListTransactions returns one page of the user's transactions, newest first.
func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.Transaction, error) {
	return s.transactions.List(ctx, q)
}
