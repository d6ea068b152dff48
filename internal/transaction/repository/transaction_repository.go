package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

const transactionColumns = `id, user_id, type, amount, account_id, from_account_id, to_account_id, category_id, occurred_on, note, created_at, updated_at`

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var account, from, to, category, note sql.NullString
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount,
		&account, &from, &to, &category,
		&t.OccurredOn, &note, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.AccountID = account.String
	t.FromAccountID = from.String
	t.ToAccountID = to.String
	t.CategoryID = category.String
	t.Note = note.String
	t.OccurredOn = t.OccurredOn.UTC()
	return &t, nil
}

type TransactionRepository struct {
	db storage.DBTX
}

func NewTransactionRepository(db storage.DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.Type, t.Amount,
		storage.NullString(t.AccountID), storage.NullString(t.FromAccountID),
		storage.NullString(t.ToAccountID), storage.NullString(t.CategoryID),
		t.OccurredOn, storage.NullString(t.Note), t.CreatedAt, t.UpdatedAt,
	)
	if storage.IsUniqueViolation(err) {
		return cqrs.ErrTransactionExists
	}
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate fetches a live transaction and locks its row until the
// surrounding transaction ends.
func (r *TransactionRepository) GetForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *TransactionRepository) get(ctx context.Context, id, suffix string) (*models.Transaction, error) {
	if !utils.ValidateID(id) {
		return nil, cqrs.ErrTransactionNotFound
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND deleted_at IS NULL` + suffix
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cqrs.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *models.Transaction) error {
	query := `
		UPDATE transactions
		SET type = $2, amount = $3, account_id = $4, from_account_id = $5, to_account_id = $6,
		    category_id = $7, occurred_on = $8, note = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		t.ID, t.Type, t.Amount,
		storage.NullString(t.AccountID), storage.NullString(t.FromAccountID),
		storage.NullString(t.ToAccountID), storage.NullString(t.CategoryID),
		t.OccurredOn, storage.NullString(t.Note), t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return expectOneRow(result)
}

func (r *TransactionRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE transactions SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectOneRow(result)
}

// List returns the user's transactions matching q, newest first.
func (r *TransactionRepository) List(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.Transaction, error) {
	where := []string{"user_id = $1", "deleted_at IS NULL"}
	args := []any{q.UserID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.AccountID != "" {
		p := arg(q.AccountID)
		where = append(where, fmt.Sprintf("(account_id = %[1]s OR from_account_id = %[1]s OR to_account_id = %[1]s)", p))
	}
	if q.CategoryID != "" {
		where = append(where, "category_id = "+arg(q.CategoryID))
	}
	if q.Type != "" {
		where = append(where, "type = "+arg(q.Type))
	}
	if !q.From.IsZero() {
		where = append(where, "occurred_on >= "+arg(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "occurred_on <= "+arg(q.To))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY occurred_on DESC, created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return cqrs.ErrTransactionNotFound
	}
	return nil
}
