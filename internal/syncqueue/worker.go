package syncqueue

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
)

// TransactionCommander is the write side the Worker replays through.
type TransactionCommander interface {
	CreateTransaction(context.Context, cqrs.CreateTransactionCommand) (*models.Transaction, error)
	UpdateTransaction(context.Context, cqrs.UpdateTransactionCommand) (*models.Transaction, error)
	DeleteTransaction(context.Context, cqrs.DeleteTransactionCommand) error
}

// Marker remembers applied mutation ids across redeliveries.
type Marker interface {
	MarkIfNew(ctx context.Context, id string) (bool, error)
	Unmark(ctx context.Context, id string) error
}

// domainErrors are outcomes a retry cannot change.
var domainErrors = []error{
	cqrs.ErrInvalidAmount,
	cqrs.ErrInvalidTransaction,
	cqrs.ErrAccountNotFound,
	cqrs.ErrAccountArchived,
	cqrs.ErrCategoryNotFound,
	cqrs.ErrCategoryMismatch,
	cqrs.ErrTransactionNotFound,
	cqrs.ErrForbidden,
	cqrs.ErrInsufficientFunds,
}

type Worker struct {
	queue    Queue
	commands TransactionCommander
	marker   Marker
	logger   *zap.Logger
}

func NewWorker(queue Queue, commands TransactionCommander, marker Marker, logger *zap.Logger) *Worker {
	return &Worker{queue: queue, commands: commands, marker: marker, logger: logger}
}

// Run consumes the queue until ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	return w.queue.Consume(ctx, w.Handle)
}

// Handle applies m at most once per ClientMutationID. Transient failures
// release the marker so the redelivery is applied.
func (w *Worker) Handle(ctx context.Context, m Mutation) error {
	isNew, err := w.marker.MarkIfNew(ctx, m.ClientMutationID)
	if err != nil {
		return err
	}
	if !isNew {
		w.logger.Debug("Skipping replayed sync mutation", zap.String("clientMutationId", m.ClientMutationID))
		return nil
	}

	err = w.apply(ctx, m)
	if err == nil {
		w.logger.Info("Applied sync mutation",
			zap.String("clientMutationId", m.ClientMutationID),
			zap.String("op", m.Op),
			zap.String("transactionId", m.TransactionID))
		return nil
	}
	if isDomainError(err) {
		return Permanent(err)
	}
	if uerr := w.marker.Unmark(ctx, m.ClientMutationID); uerr != nil {
		w.logger.Error("Failed to release sync marker",
			zap.String("clientMutationId", m.ClientMutationID),
			zap.Error(uerr))
	}
	return err
}

func (w *Worker) apply(ctx context.Context, m Mutation) error {
	switch m.Op {
	case OpCreate:
		_, err := w.commands.CreateTransaction(ctx, cqrs.CreateTransactionCommand{
			TransactionID:     m.TransactionID,
			UserID:            m.UserID,
			TransactionFields: m.Transaction.TransactionFields(),
		})
		// An earlier delivery already created the row.
		if errors.Is(err, cqrs.ErrTransactionExists) {
			return nil
		}
		return err
	case OpUpdate:
		_, err := w.commands.UpdateTransaction(ctx, cqrs.UpdateTransactionCommand{
			TransactionID:     m.TransactionID,
			RequestingUserID:  m.UserID,
			TransactionFields: m.Transaction.TransactionFields(),
		})
		return err
	case OpDelete:
		err := w.commands.DeleteTransaction(ctx, cqrs.DeleteTransactionCommand{
			TransactionID:    m.TransactionID,
			RequestingUserID: m.UserID,
		})
		if errors.Is(err, cqrs.ErrTransactionNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: unknown op %q", cqrs.ErrInvalidTransaction, m.Op)
	}
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
