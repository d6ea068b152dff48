package query

import (
	"context"

	"github.com/monli/monli/internal/category/repository"
	"github.com/monli/monli/internal/storage"
	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
)

type CategoryQueryService struct {
	categories *repository.CategoryRepository
}

func NewCategoryQueryService(db storage.DBTX) *CategoryQueryService {
	return &CategoryQueryService{categories: repository.NewCategoryRepository(db)}
}

func (s *CategoryQueryService) GetCategory(ctx context.Context, q cqrs.GetCategoryQuery) (*models.Category, error) {
	c, err := s.categories.GetByID(ctx, q.CategoryID)
	if err != nil {
		return nil, err
	}
	if c.UserID != q.RequestingUserID {
		return nil, cqrs.ErrForbidden
	}
	return c, nil
}

func (s *CategoryQueryService) ListCategories(ctx context.Context, q cqrs.ListCategoriesQuery) ([]models.Category, error) {
	return s.categories.ListByUserID(ctx, q.UserID, q.Kind)
}
