// Package syncqueue replays transaction mutations recorded by offline
// clients. Mutations are accepted over HTTP, queued, and applied by a
// Worker through the transaction command service.
package syncqueue

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/monli/monli/shared/cqrs"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Mutation is one queued change. TransactionID is chosen by the client so
// that every replay of the same mutation targets the same row.
type Mutation struct {
	ClientMutationID string    `json:"clientMutationId"`
	UserID           string    `json:"userId"`
	Op               string    `json:"op"`
	TransactionID    string    `json:"transactionId"`
	Transaction      *Fields   `json:"transaction,omitempty"`
	EnqueuedAt       time.Time `json:"enqueuedAt"`
}

// Fields is the wire form of cqrs.TransactionFields.
type Fields struct {
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	AccountID     string          `json:"accountId,omitempty"`
	FromAccountID string          `json:"fromAccountId,omitempty"`
	ToAccountID   string          `json:"toAccountId,omitempty"`
	CategoryID    string          `json:"categoryId,omitempty"`
	OccurredOn    time.Time       `json:"occurredOn"`
	Note          string          `json:"note,omitempty"`
}

func FieldsFrom(f cqrs.TransactionFields) *Fields {
	return &Fields{
		Type:          f.Type,
		Amount:        f.Amount,
		AccountID:     f.AccountID,
		FromAccountID: f.FromAccountID,
		ToAccountID:   f.ToAccountID,
		CategoryID:    f.CategoryID,
		OccurredOn:    f.OccurredOn,
		Note:          f.Note,
	}
}

func (f *Fields) TransactionFields() cqrs.TransactionFields {
	if f == nil {
		return cqrs.TransactionFields{}
	}
	return cqrs.TransactionFields{
		Type:          f.Type,
		Amount:        f.Amount,
		AccountID:     f.AccountID,
		FromAccountID: f.FromAccountID,
		ToAccountID:   f.ToAccountID,
		CategoryID:    f.CategoryID,
		OccurredOn:    f.OccurredOn,
		Note:          f.Note,
	}
}

// Handler applies one mutation. An error wrapped with Permanent is never
// retried; any other error causes redelivery.
type Handler func(ctx context.Context, m Mutation) error

// Queue carries mutations from the HTTP API to the Worker.
type Queue interface {
	Enqueue(ctx context.Context, m Mutation) error
	// Consume delivers mutations to handler until ctx ends or the queue is
	// closed.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// retryDelay spaces out redeliveries of a mutation that failed transiently.
var retryDelay = time.Second

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
