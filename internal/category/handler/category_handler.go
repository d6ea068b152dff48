package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/middleware"
	"github.com/monli/monli/shared/models"
)

type CategoryCommander interface {
	CreateCategory(context.Context, cqrs.CreateCategoryCommand) (*models.Category, error)
	UpdateCategory(context.Context, cqrs.UpdateCategoryCommand) (*models.Category, error)
	DeleteCategory(context.Context, cqrs.DeleteCategoryCommand) error
}

type CategoryQuerier interface {
	GetCategory(context.Context, cqrs.GetCategoryQuery) (*models.Category, error)
	ListCategories(context.Context, cqrs.ListCategoriesQuery) ([]models.Category, error)
}

type CategoryHandler struct {
	commands CategoryCommander
	queries  CategoryQuerier
}

type CreateCategoryRequest struct {
	Name  string `json:"name" validate:"required,max=60"`
	Kind  string `json:"kind" validate:"required,oneof=income expense"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

type UpdateCategoryRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=60"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

type ListCategoriesResponse struct {
	Categories []models.Category `json:"categories"`
}

func NewCategoryHandler(commands CategoryCommander, queries CategoryQuerier) *CategoryHandler {
	return &CategoryHandler{commands: commands, queries: queries}
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	category, err := h.commands.CreateCategory(c.Request.Context(), cqrs.CreateCategoryCommand{
		UserID: userID,
		Name:   req.Name,
		Kind:   req.Kind,
		Color:  req.Color,
	})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create category")
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *CategoryHandler) ListCategories(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	kind := c.Query("kind")
	if kind != "" && kind != models.CategoryIncome && kind != models.CategoryExpense {
		middleware.RespondWithError(c, http.StatusBadRequest, "kind must be income or expense")
		return
	}

	categories, err := h.queries.ListCategories(c.Request.Context(), cqrs.ListCategoriesQuery{UserID: userID, Kind: kind})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	c.JSON(http.StatusOK, ListCategoriesResponse{Categories: categories})
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	category, err := h.queries.GetCategory(c.Request.Context(), cqrs.GetCategoryQuery{
		CategoryID:       c.Param("categoryId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondCategoryError(c, err, "Failed to fetch category")
		return
	}

	c.JSON(http.StatusOK, category)
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	category, err := h.commands.UpdateCategory(c.Request.Context(), cqrs.UpdateCategoryCommand{
		CategoryID:       c.Param("categoryId"),
		RequestingUserID: userID,
		Name:             req.Name,
		Color:            req.Color,
	})
	if err != nil {
		respondCategoryError(c, err, "Failed to update category")
		return
	}

	c.JSON(http.StatusOK, category)
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	err := h.commands.DeleteCategory(c.Request.Context(), cqrs.DeleteCategoryCommand{
		CategoryID:       c.Param("categoryId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondCategoryError(c, err, "Failed to delete category")
		return
	}

	c.Status(http.StatusNoContent)
}

func respondCategoryError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, cqrs.ErrCategoryNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Category not found")
	case errors.Is(err, cqrs.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, "You can only access your own categories")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
