package syncqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
)

type fakeCommander struct {
	mu        sync.Mutex
	createErr error
	updateErr error
	deleteErr error
	creates   []cqrs.CreateTransactionCommand
	updates   []cqrs.UpdateTransactionCommand
	deletes   []cqrs.DeleteTransactionCommand
}

func (f *fakeCommander) CreateTransaction(_ context.Context, cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, cmd)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Transaction{ID: cmd.TransactionID, UserID: cmd.UserID}, nil
}

func (f *fakeCommander) UpdateTransaction(_ context.Context, cmd cqrs.UpdateTransactionCommand) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, cmd)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &models.Transaction{ID: cmd.TransactionID, UserID: cmd.RequestingUserID}, nil
}

func (f *fakeCommander) DeleteTransaction(_ context.Context, cmd cqrs.DeleteTransactionCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, cmd)
	return f.deleteErr
}

func (f *fakeCommander) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.updates) + len(f.deletes)
}

type mapMarker struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newMapMarker() *mapMarker {
	return &mapMarker{seen: map[string]bool{}}
}

func (m *mapMarker) MarkIfNew(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *mapMarker) Unmark(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
	return nil
}

func (m *mapMarker) marked(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[id]
}

const (
	mutationID = "0d9b5f3e-2c59-4b53-9d0e-7f7a1c0e9a11"
	txnID      = "a3c1f0b2-8d7e-4f6a-9b5c-1e2d3f4a5b6c"
	walletID   = "5b3f7c2a-1d4e-4a6b-8c9d-0e1f2a3b4c5d"
)

func createMutation() Mutation {
	return Mutation{
		ClientMutationID: mutationID,
		UserID:           "usr-001",
		Op:               OpCreate,
		TransactionID:    txnID,
		Transaction: &Fields{
			Type:       models.TransactionExpense,
			Amount:     decimal.RequireFromString("12.50"),
			AccountID:  walletID,
			OccurredOn: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestWorkerHandle_AppliesCreate(t *testing.T) {
	commands := &fakeCommander{}
	marker := newMapMarker()
	w := NewWorker(nil, commands, marker, zap.NewNop())

	require.NoError(t, w.Handle(context.Background(), createMutation()))

	require.Len(t, commands.creates, 1)
	got := commands.creates[0]
	assert.Equal(t, txnID, got.TransactionID)
	assert.Equal(t, "usr-001", got.UserID)
	assert.Equal(t, models.TransactionExpense, got.Type)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, walletID, got.AccountID)
	assert.True(t, marker.marked(mutationID))
}

func TestWorkerHandle_SkipsReplayedMutation(t *testing.T) {
	commands := &fakeCommander{}
	w := NewWorker(nil, commands, newMapMarker(), zap.NewNop())

	require.NoError(t, w.Handle(context.Background(), createMutation()))
	require.NoError(t, w.Handle(context.Background(), createMutation()))

	assert.Equal(t, 1, commands.calls())
}

func TestWorkerHandle_Outcomes(t *testing.T) {
	tests := []struct {
		name          string
		mutation      func() Mutation
		commands      *fakeCommander
		wantErr       error
		wantPermanent bool
		wantMarked    bool
	}{
		{
			name:       "create that already exists is applied",
			mutation:   createMutation,
			commands:   &fakeCommander{createErr: cqrs.ErrTransactionExists},
			wantMarked: true,
		},
		{
			name: "delete of a missing transaction is applied",
			mutation: func() Mutation {
				return Mutation{ClientMutationID: mutationID, UserID: "usr-001", Op: OpDelete, TransactionID: txnID}
			},
			commands:   &fakeCommander{deleteErr: cqrs.ErrTransactionNotFound},
			wantMarked: true,
		},
		{
			name:          "insufficient funds is permanent",
			mutation:      createMutation,
			commands:      &fakeCommander{createErr: cqrs.ErrInsufficientFunds},
			wantErr:       cqrs.ErrInsufficientFunds,
			wantPermanent: true,
			wantMarked:    true,
		},
		{
			name: "update of a missing transaction is permanent",
			mutation: func() Mutation {
				m := createMutation()
				m.Op = OpUpdate
				return m
			},
			commands:      &fakeCommander{updateErr: cqrs.ErrTransactionNotFound},
			wantErr:       cqrs.ErrTransactionNotFound,
			wantPermanent: true,
			wantMarked:    true,
		},
		{
			name: "unknown op is permanent",
			mutation: func() Mutation {
				m := createMutation()
				m.Op = "upsert"
				return m
			},
			commands:      &fakeCommander{},
			wantErr:       cqrs.ErrInvalidTransaction,
			wantPermanent: true,
			wantMarked:    true,
		},
		{
			name:       "database failure is retried",
			mutation:   createMutation,
			commands:   &fakeCommander{createErr: errors.New("connection reset")},
			wantErr:    errors.New("connection reset"),
			wantMarked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker := newMapMarker()
			w := NewWorker(nil, tt.commands, marker, zap.NewNop())

			err := w.Handle(context.Background(), tt.mutation())

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				if isDomainError(tt.wantErr) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.EqualError(t, err, tt.wantErr.Error())
				}
			}
			assert.Equal(t, tt.wantPermanent, IsPermanent(err))
			assert.Equal(t, tt.wantMarked, marker.marked(mutationID))
		})
	}
}

func TestWorkerHandle_MarkerFailure(t *testing.T) {
	commands := &fakeCommander{}
	marker := newMapMarker()
	marker.err = errors.New("redis down")
	w := NewWorker(nil, commands, marker, zap.NewNop())

	err := w.Handle(context.Background(), createMutation())

	assert.EqualError(t, err, "redis down")
	assert.False(t, IsPermanent(err))
	assert.Zero(t, commands.calls())
}

func TestWorkerHandle_UpdateCarriesRequester(t *testing.T) {
	commands := &fakeCommander{}
	w := NewWorker(nil, commands, newMapMarker(), zap.NewNop())
	m := createMutation()
	m.Op = OpUpdate

	require.NoError(t, w.Handle(context.Background(), m))

	require.Len(t, commands.updates, 1)
	assert.Equal(t, "usr-001", commands.updates[0].RequestingUserID)
	assert.Equal(t, txnID, commands.updates[0].TransactionID)
	assert.Equal(t, walletID, commands.updates[0].AccountID)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	err := Permanent(cqrs.ErrForbidden)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, cqrs.ErrForbidden)
	assert.Equal(t, cqrs.ErrForbidden.Error(), err.Error())

	assert.False(t, IsPermanent(cqrs.ErrForbidden))
}

func TestFieldsRoundTrip(t *testing.T) {
	var nilFields *Fields
	assert.Equal(t, cqrs.TransactionFields{}, nilFields.TransactionFields())

	in := cqrs.TransactionFields{
		Type:          models.TransactionTransfer,
		Amount:        decimal.RequireFromString("100"),
		FromAccountID: walletID,
		ToAccountID:   txnID,
		Note:          "rent share",
	}
	assert.Equal(t, in, FieldsFrom(in).TransactionFields())
}
