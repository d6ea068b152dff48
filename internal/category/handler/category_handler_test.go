package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/models"
)

type mockCategoryCommander struct {
	createFn func(cqrs.CreateCategoryCommand) (*models.Category, error)
	updateFn func(cqrs.UpdateCategoryCommand) (*models.Category, error)
	deleteFn func(cqrs.DeleteCategoryCommand) error
}

func (m *mockCategoryCommander) CreateCategory(_ context.Context, cmd cqrs.CreateCategoryCommand) (*models.Category, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockCategoryCommander) UpdateCategory(_ context.Context, cmd cqrs.UpdateCategoryCommand) (*models.Category, error) {
	if m.updateFn != nil {
		return m.updateFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockCategoryCommander) DeleteCategory(_ context.Context, cmd cqrs.DeleteCategoryCommand) error {
	if m.deleteFn != nil {
		return m.deleteFn(cmd)
	}
	return fmt.Errorf("not configured")
}

type mockCategoryQuerier struct {
	getFn  func(cqrs.GetCategoryQuery) (*models.Category, error)
	listFn func(cqrs.ListCategoriesQuery) ([]models.Category, error)
}

func (m *mockCategoryQuerier) GetCategory(_ context.Context, q cqrs.GetCategoryQuery) (*models.Category, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockCategoryQuerier) ListCategories(_ context.Context, q cqrs.ListCategoriesQuery) ([]models.Category, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

func newCategoryTestRouter(cmds CategoryCommander, qrys CategoryQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "usr-001")
		c.Next()
	})
	h := NewCategoryHandler(cmds, qrys)
	v1 := r.Group("/v1/categories")
	v1.POST("", h.CreateCategory)
	v1.GET("", h.ListCategories)
	v1.GET("/:categoryId", h.GetCategory)
	v1.PATCH("/:categoryId", h.UpdateCategory)
	v1.DELETE("/:categoryId", h.DeleteCategory)
	return r
}

func catDoRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var aTestCategory = &models.Category{ID: "cat-001", UserID: "usr-001", Name: "Food", Kind: "expense", Color: "#ff8800"}

func TestCreateCategory(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"success - expense category", map[string]interface{}{"name": "Food", "kind": "expense", "color": "#ff8800"}, http.StatusCreated},
		{"success - income category without color", map[string]interface{}{"name": "Salary", "kind": "income"}, http.StatusCreated},
		{"bad request - unknown kind", map[string]interface{}{"name": "Gift", "kind": "transfer"}, http.StatusBadRequest},
		{"bad request - invalid color", map[string]interface{}{"name": "Gift", "kind": "income", "color": "orange"}, http.StatusBadRequest},
		{"bad request - missing name", map[string]interface{}{"kind": "income"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockCategoryCommander{createFn: func(cmd cqrs.CreateCategoryCommand) (*models.Category, error) {
				return &models.Category{ID: "cat-new", UserID: cmd.UserID, Name: cmd.Name, Kind: cmd.Kind}, nil
			}}
			w := catDoRequest(newCategoryTestRouter(cmds, &mockCategoryQuerier{}), http.MethodPost, "/v1/categories", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListCategories(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		wantKind       string
		expectedStatus int
	}{
		{"all kinds", "/v1/categories", "", http.StatusOK},
		{"filter by kind", "/v1/categories?kind=income", "income", http.StatusOK},
		{"bad kind", "/v1/categories?kind=transfer", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qrys := &mockCategoryQuerier{listFn: func(q cqrs.ListCategoriesQuery) ([]models.Category, error) {
				if q.Kind != tt.wantKind {
					return nil, fmt.Errorf("kind = %q", q.Kind)
				}
				return []models.Category{*aTestCategory}, nil
			}}
			w := catDoRequest(newCategoryTestRouter(&mockCategoryCommander{}, qrys), http.MethodGet, tt.url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"success", nil, http.StatusOK},
		{"forbidden", cqrs.ErrForbidden, http.StatusForbidden},
		{"not found", cqrs.ErrCategoryNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qrys := &mockCategoryQuerier{getFn: func(q cqrs.GetCategoryQuery) (*models.Category, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return aTestCategory, nil
			}}
			w := catDoRequest(newCategoryTestRouter(&mockCategoryCommander{}, qrys), http.MethodGet, "/v1/categories/cat-001", nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestUpdateAndDeleteCategory(t *testing.T) {
	cmds := &mockCategoryCommander{
		updateFn: func(cmd cqrs.UpdateCategoryCommand) (*models.Category, error) {
			if cmd.CategoryID != "cat-001" || cmd.Name == nil || *cmd.Name != "Groceries" {
				return nil, fmt.Errorf("unexpected command %+v", cmd)
			}
			return aTestCategory, nil
		},
		deleteFn: func(cmd cqrs.DeleteCategoryCommand) error {
			if cmd.CategoryID == "cat-404" {
				return cqrs.ErrCategoryNotFound
			}
			return nil
		},
	}
	router := newCategoryTestRouter(cmds, &mockCategoryQuerier{})

	if w := catDoRequest(router, http.MethodPatch, "/v1/categories/cat-001", map[string]interface{}{"name": "Groceries"}); w.Code != http.StatusOK {
		t.Errorf("update: expected 200 got %d; body: %s", w.Code, w.Body.String())
	}
	if w := catDoRequest(router, http.MethodDelete, "/v1/categories/cat-001", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204 got %d", w.Code)
	}
	if w := catDoRequest(router, http.MethodDelete, "/v1/categories/cat-404", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete missing: expected 404 got %d", w.Code)
	}
}
