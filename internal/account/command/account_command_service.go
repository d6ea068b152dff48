package command

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/monli/monli/internal/account/repository"
	"github.com/monli/monli/internal/ledger"
	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/events"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

// AccountCommandService writes account state and keeps derived balances in sync.
type AccountCommandService struct {
	db        *sql.DB
	accounts  *repository.AccountRepository
	balances  ledger.Balances
	publisher events.Publisher
	logger    *zap.Logger
}

func NewAccountCommandService(
	db *sql.DB,
	balances ledger.Balances,
	publisher events.Publisher,
	logger *zap.Logger,
) *AccountCommandService {
	return &AccountCommandService{
		db:        db,
		accounts:  repository.NewAccountRepository(db),
		balances:  balances,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.AccountView, error) {
	if !utils.ValidAmount(cmd.OpeningBalance) {
		return nil, cqrs.ErrInvalidAmount
	}
	currency := strings.ToUpper(cmd.Currency)
	if currency == "" {
		currency = models.DefaultCurrency
	}
	now := time.Now().UTC()
	account := &models.Account{
		ID:             utils.GenerateID(),
		UserID:         cmd.UserID,
		Name:           cmd.Name,
		Type:           cmd.Type,
		Currency:       currency,
		OpeningBalance: cmd.OpeningBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	s.balances.Invalidate(ctx, account.UserID)
	s.publish(ctx, events.AccountCreated, account)
	return s.view(ctx, account)
}

func (s *AccountCommandService) UpdateAccount(ctx context.Context, cmd cqrs.UpdateAccountCommand) (*models.AccountView, error) {
	account, err := s.accounts.GetByID(ctx, cmd.AccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != cmd.RequestingUserID {
		return nil, cqrs.ErrForbidden
	}
	if cmd.Name != nil {
		account.Name = *cmd.Name
	}
	if cmd.Type != nil {
		account.Type = *cmd.Type
	}
	if cmd.Currency != nil {
		account.Currency = strings.ToUpper(*cmd.Currency)
	}
	if cmd.OpeningBalance != nil {
		if !utils.ValidAmount(*cmd.OpeningBalance) {
			return nil, cqrs.ErrInvalidAmount
		}
		account.OpeningBalance = *cmd.OpeningBalance
	}
	if cmd.Archived != nil {
		account.Archived = *cmd.Archived
	}
	account.UpdatedAt = time.Now().UTC()

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	s.balances.Invalidate(ctx, account.UserID)
	s.publish(ctx, events.AccountUpdated, account)
	return s.view(ctx, account)
}

// DeleteAccount soft-deletes an account with no live transactions. The row
// lock keeps a concurrent transaction from landing on the account between
// the activity check and the delete.
func (s *AccountCommandService) DeleteAccount(ctx context.Context, cmd cqrs.DeleteAccountCommand) error {
	var deleted models.Account
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := repository.NewAccountRepository(tx)
		locked, err := repo.LockByIDs(ctx, []string{cmd.AccountID})
		if err != nil {
			return err
		}
		account, ok := locked[cmd.AccountID]
		if !ok {
			return cqrs.ErrAccountNotFound
		}
		if account.UserID != cmd.RequestingUserID {
			return cqrs.ErrForbidden
		}
		busy, err := repo.HasTransactions(ctx, account.ID)
		if err != nil {
			return err
		}
		if busy {
			return cqrs.ErrAccountHasActivity
		}
		deleted = account
		return repo.Delete(ctx, account.ID)
	})
	if err != nil {
		return err
	}
	s.balances.Invalidate(ctx, deleted.UserID)
	s.publish(ctx, events.AccountDeleted, &deleted)
	return nil
}

func (s *AccountCommandService) view(ctx context.Context, account *models.Account) (*models.AccountView, error) {
	balances, err := s.balances.ComputeBalances(ctx, account.UserID, []string{account.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to compute balance: %w", err)
	}
	view := models.NewAccountView(*account, balances)
	return &view, nil
}

func (s *AccountCommandService) publish(ctx context.Context, eventType string, account *models.Account) {
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, eventType, events.AccountEvent{
		AccountID: account.ID,
		UserID:    account.UserID,
		Name:      account.Name,
		Type:      account.Type,
	}); err != nil {
		s.logger.Warn("Failed to publish account event",
			zap.String("event", eventType),
			zap.String("accountId", account.ID),
			zap.Error(err))
	}
}
