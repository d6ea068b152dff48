package command

import (
	"context"
	"time"

	"github.com/monli/monli/internal/category/repository"
	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

type CategoryCommandService struct {
	categories *repository.CategoryRepository
}

func NewCategoryCommandService(db storage.DBTX) *CategoryCommandService {
	return &CategoryCommandService{categories: repository.NewCategoryRepository(db)}
}

func (s *CategoryCommandService) CreateCategory(ctx context.Context, cmd cqrs.CreateCategoryCommand) (*models.Category, error) {
	now := time.Now().UTC()
	c := &models.Category{
		ID:        utils.GenerateID(),
		UserID:    cmd.UserID,
		Name:      cmd.Name,
		Kind:      cmd.Kind,
		Color:     cmd.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCategory renames or recolours a category. Kind is immutable because
// existing transactions were validated against it.
func (s *CategoryCommandService) UpdateCategory(ctx context.Context, cmd cqrs.UpdateCategoryCommand) (*models.Category, error) {
	c, err := s.categories.GetByID(ctx, cmd.CategoryID)
	if err != nil {
		return nil, err
	}
	if c.UserID != cmd.RequestingUserID {
		return nil, cqrs.ErrForbidden
	}
	if cmd.Name != nil {
		c.Name = *cmd.Name
	}
	if cmd.Color != nil {
		c.Color = *cmd.Color
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryCommandService) DeleteCategory(ctx context.Context, cmd cqrs.DeleteCategoryCommand) error {
	c, err := s.categories.GetByID(ctx, cmd.CategoryID)
	if err != nil {
		return err
	}
	if c.UserID != cmd.RequestingUserID {
		return cqrs.ErrForbidden
	}
	return s.categories.Delete(ctx, c.ID)
}
