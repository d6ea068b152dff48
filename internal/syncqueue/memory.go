package syncqueue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrQueueClosed = errors.New("queue closed")

// MemoryQueue is an in-process Queue backed by a buffered channel. Queued
// mutations are lost on restart.
type MemoryQueue struct {
	ch     chan Mutation
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func NewMemoryQueue(capacity int, logger *zap.Logger) *MemoryQueue {
	return &MemoryQueue{
		ch:     make(chan Mutation, capacity),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, m Mutation) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- m:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume applies mutations in order. A mutation that fails transiently is
// retried in place until it succeeds, fails permanently, or ctx ends.
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return nil
		case m := <-q.ch:
			for {
				err := handler(ctx, m)
				if err == nil {
					break
				}
				if IsPermanent(err) {
					q.logger.Warn("Dropping sync mutation",
						zap.String("clientMutationId", m.ClientMutationID),
						zap.Error(err))
					break
				}
				q.logger.Warn("Retrying sync mutation",
					zap.String("clientMutationId", m.ClientMutationID),
					zap.Error(err))
				sleepCtx(ctx, retryDelay)
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
