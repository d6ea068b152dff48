package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

const accountColumns = `id, user_id, name, type, currency, opening_balance, archived, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.Type, &a.Currency,
		&a.OpeningBalance, &a.Archived, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// AccountRepository reads and writes account rows. Bound to a *sql.Tx it
// takes part in the caller's transaction.
type AccountRepository struct {
	db storage.DBTX
}

func NewAccountRepository(db storage.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.UserID, account.Name, account.Type, account.Currency,
		account.OpeningBalance, account.Archived, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID fetches a live account including UserID for ownership checks.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if !utils.ValidateID(id) {
		return nil, cqrs.ErrAccountNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND deleted_at IS NULL`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cqrs.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID string, includeArchived bool) ([]models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND deleted_at IS NULL AND ($2 OR NOT archived)
		ORDER BY archived, created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// LockByIDs takes row locks on the live accounts among ids, in id order,
// and returns them keyed by id. Missing ids are absent from the result.
func (r *AccountRepository) LockByIDs(ctx context.Context, ids []string) (map[string]models.Account, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range utils.Unique(ids) {
		if utils.ValidateID(id) {
			valid = append(valid, id)
		}
	}
	locked := make(map[string]models.Account, len(valid))
	if len(valid) == 0 {
		return locked, nil
	}

	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = ANY($1::uuid[]) AND deleted_at IS NULL
		ORDER BY id
		FOR UPDATE
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		locked[a.ID] = *a
	}
	return locked, rows.Err()
}

func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, type = $3, currency = $4, opening_balance = $5, archived = $6, updated_at = $7
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		account.ID, account.Name, account.Type, account.Currency,
		account.OpeningBalance, account.Archived, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return expectOneRow(result)
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE accounts SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return expectOneRow(result)
}

// HasTransactions reports whether any live transaction references the
// account on any leg.
func (r *AccountRepository) HasTransactions(ctx context.Context, id string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE deleted_at IS NULL
			  AND (account_id = $1 OR from_account_id = $1 OR to_account_id = $1)
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account activity: %w", err)
	}
	return exists, nil
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return cqrs.ErrAccountNotFound
	}
	return nil
}
