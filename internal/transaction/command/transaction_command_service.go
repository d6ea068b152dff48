package command

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/internal/transaction/repository"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/events"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

// TransactionCommandService records, edits and deletes transactions.
//
// Each mutation locks the accounts it touches before it validates them or
// checks funds, so the negative balance guard sees every competing write
// that committed before it.
type TransactionCommandService struct {
	store                  repository.Store
	balances               ledger.Balances
	publisher              events.Publisher
	blockNegativeTransfers bool
	logger                 *zap.Logger
}

func NewTransactionCommandService(
	store repository.Store,
	balances ledger.Balances,
	publisher events.Publisher,
	blockNegativeTransfers bool,
	logger *zap.Logger,
) *TransactionCommandService {
	return &TransactionCommandService{
		store:                  store,
		balances:               balances,
		publisher:              publisher,
		blockNegativeTransfers: blockNegativeTransfers,
		logger:                 logger,
	}
}

func (s *TransactionCommandService) CreateTransaction(ctx context.Context, cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
	now := time.Now().UTC()
	txn := fromFields(cmd.TransactionFields)
	txn.ID = cmd.TransactionID
	if txn.ID == "" {
		txn.ID = utils.GenerateID()
	} else if !utils.ValidateID(txn.ID) {
		return nil, cqrs.ErrInvalidTransaction
	}
	txn.UserID = cmd.UserID
	txn.CreatedAt = now
	txn.UpdatedAt = now
	if err := ValidateShape(txn); err != nil {
		return nil, err
	}

	err := s.store.Atomic(ctx, func(uow repository.UnitOfWork) error {
		if err := s.checkReferences(ctx, uow, txn, txn.AccountIDs()); err != nil {
			return err
		}
		if err := s.checkFunds(ctx, uow, nil, txn); err != nil {
			return err
		}
		return uow.Insert(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.TransactionCreated, nil, txn)
	return txn, nil
}

// UpdateTransaction replaces every mutable field of a transaction.
func (s *TransactionCommandService) UpdateTransaction(ctx context.Context, cmd cqrs.UpdateTransactionCommand) (*models.Transaction, error) {
	next := fromFields(cmd.TransactionFields)
	next.ID = cmd.TransactionID
	next.UserID = cmd.RequestingUserID
	next.UpdatedAt = time.Now().UTC()
	if err := ValidateShape(next); err != nil {
		return nil, err
	}

	var prev *models.Transaction
	err := s.store.Atomic(ctx, func(uow repository.UnitOfWork) error {
		old, err := uow.GetTransactionForUpdate(ctx, cmd.TransactionID)
		if err != nil {
			return err
		}
		if old.UserID != cmd.RequestingUserID {
			return cqrs.ErrForbidden
		}
		next.CreatedAt = old.CreatedAt

		touched := append(old.AccountIDs(), next.AccountIDs()...)
		if err := s.checkReferences(ctx, uow, next, touched); err != nil {
			return err
		}
		if err := s.checkFunds(ctx, uow, old, next); err != nil {
			return err
		}
		prev = old
		return uow.Update(ctx, next)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.TransactionUpdated, prev, next)
	return next, nil
}

// DeleteTransaction soft-deletes a transaction. Deletes are never blocked by
// the funds check; archived accounts accept them too.
func (s *TransactionCommandService) DeleteTransaction(ctx context.Context, cmd cqrs.DeleteTransactionCommand) error {
	var deleted *models.Transaction
	err := s.store.Atomic(ctx, func(uow repository.UnitOfWork) error {
		old, err := uow.GetTransactionForUpdate(ctx, cmd.TransactionID)
		if err != nil {
			return err
		}
		if old.UserID != cmd.RequestingUserID {
			return cqrs.ErrForbidden
		}
		if _, err := uow.LockAccounts(ctx, old.AccountIDs()); err != nil {
			return err
		}
		deleted = old
		return uow.Delete(ctx, old.ID)
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, events.TransactionDeleted, deleted, nil)
	return nil
}

// checkReferences locks every account in lockIDs and validates the accounts
// and category txn points at. Accounts only in lockIDs (the previous version
// of an edited row) must exist but may be archived.
func (s *TransactionCommandService) checkReferences(ctx context.Context, uow repository.UnitOfWork, txn *models.Transaction, lockIDs []string) error {
	locked, err := uow.LockAccounts(ctx, lockIDs)
	if err != nil {
		return err
	}
	for _, id := range txn.AccountIDs() {
		account, ok := locked[id]
		if !ok {
			return cqrs.ErrAccountNotFound
		}
		if account.UserID != txn.UserID {
			return cqrs.ErrForbidden
		}
		if account.Archived {
			return cqrs.ErrAccountArchived
		}
	}

	if txn.CategoryID == "" {
		return nil
	}
	category, err := uow.GetCategory(ctx, txn.CategoryID)
	if err != nil {
		return err
	}
	if category.UserID != txn.UserID {
		return cqrs.ErrForbidden
	}
	if category.Kind != txn.Type {
		return cqrs.ErrCategoryMismatch
	}
	return nil
}

// checkFunds rejects a transfer that would leave its source account below
// zero. For an edit the previous version's effect is reversed first. A
// change that leaves an already negative balance no lower is allowed.
func (s *TransactionCommandService) checkFunds(ctx context.Context, uow repository.UnitOfWork, old, next *models.Transaction) error {
	if !s.blockNegativeTransfers || next.Type != models.TransactionTransfer {
		return nil
	}
	source := next.FromAccountID
	current, err := ledger.NewAggregator(uow.Ledger()).ComputeBalances(ctx, next.UserID, []string{source})
	if err != nil {
		return err
	}
	balance, ok := current[source]
	if !ok {
		return cqrs.ErrAccountNotFound
	}

	projected := balance.Sub(ledger.Effect(old, source)).Add(ledger.Effect(next, source))
	if projected.IsNegative() && projected.LessThan(balance) {
		s.logger.Info("Transfer rejected by funds check",
			zap.String("userId", next.UserID),
			zap.String("accountId", source),
			zap.String("balance", balance.String()),
			zap.String("projected", projected.String()))
		return cqrs.ErrInsufficientFunds
	}
	return nil
}

// afterCommit drops cached balances and announces the change. Neither step
// can fail the request.
func (s *TransactionCommandService) afterCommit(ctx context.Context, eventType string, old, next *models.Transaction) {
	subject := next
	if subject == nil {
		subject = old
	}
	s.balances.Invalidate(ctx, subject.UserID)

	var accountIDs, months []string
	for _, t := range []*models.Transaction{old, next} {
		if t == nil {
			continue
		}
		accountIDs = append(accountIDs, t.AccountIDs()...)
		months = append(months, utils.MonthKey(t.OccurredOn))
	}
	if err := s.publisher.Publish(ctx, events.TransactionEventsStream, eventType, events.TransactionEvent{
		TransactionID: subject.ID,
		UserID:        subject.UserID,
		Type:          subject.Type,
		Amount:        subject.Amount.String(),
		AccountIDs:    utils.Unique(accountIDs),
		Months:        utils.Unique(months),
	}); err != nil {
		s.logger.Warn("Failed to publish transaction event",
			zap.String("event", eventType),
			zap.String("transactionId", subject.ID),
			zap.Error(err))
	}
}

func fromFields(f cqrs.TransactionFields) *models.Transaction {
	occurredOn := f.OccurredOn
	if occurredOn.IsZero() {
		occurredOn = utils.Today()
	}
	return &models.Transaction{
		Type:          f.Type,
		Amount:        f.Amount,
		AccountID:     f.AccountID,
		FromAccountID: f.FromAccountID,
		ToAccountID:   f.ToAccountID,
		CategoryID:    f.CategoryID,
		OccurredOn:    occurredOn,
		Note:          f.Note,
	}
}
