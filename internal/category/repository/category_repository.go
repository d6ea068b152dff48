package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

const categoryColumns = `id, user_id, name, kind, color, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var c models.Category
	var color sql.NullString
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Kind, &color, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Color = color.String
	return &c, nil
}

type CategoryRepository struct {
	db storage.DBTX
}

func NewCategoryRepository(db storage.DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.Name, c.Kind, storage.NullString(c.Color), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	if !utils.ValidateID(id) {
		return nil, cqrs.ErrCategoryNotFound
	}
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 AND deleted_at IS NULL`
	c, err := scanCategory(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cqrs.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// ListByUserID returns the user's categories, optionally of one kind.
func (r *CategoryRepository) ListByUserID(ctx context.Context, userID, kind string) ([]models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE user_id = $1 AND deleted_at IS NULL AND ($2 = '' OR kind = $2)
		ORDER BY kind, name
	`
	rows, err := r.db.QueryContext(ctx, query, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) error {
	query := `
		UPDATE categories
		SET name = $2, color = $3, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, c.ID, c.Name, storage.NullString(c.Color), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return expectOneRow(result)
}

// Delete soft-deletes a category. Transactions that reference it keep the
// reference; reports label them by the deleted category's name.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE categories SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return cqrs.ErrCategoryNotFound
	}
	return nil
}
