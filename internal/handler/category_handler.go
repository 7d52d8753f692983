package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DevAnupShourya/snap-stash/internal/category"
	"github.com/DevAnupShourya/snap-stash/internal/middleware"
	"github.com/DevAnupShourya/snap-stash/internal/model"
	"github.com/DevAnupShourya/snap-stash/internal/query"
)

// CategoryHandler はカテゴリエンドポイントのハンドラー。
type CategoryHandler struct {
	service *category.Service
}

// NewCategoryHandler はCategoryHandlerを生成する。
func NewCategoryHandler(service *category.Service) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// categoryResponse はカテゴリのレスポンス表現。
type categoryResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Color       string   `json:"color"`
	TaskIDs     []string `json:"taskIds"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

// categoryListResponse はカテゴリ一覧のpayload。
type categoryListResponse struct {
	Categories []categoryResponse `json:"categories"`
	Pagination query.Pagination   `json:"pagination"`
}

// categoryStatsResponse はカテゴリ統計のpayload。
type categoryStatsResponse struct {
	TotalTasks     int     `json:"totalTasks"`
	CompletedTasks int     `json:"completedTasks"`
	PendingTasks   int     `json:"pendingTasks"`
	CompletionRate float64 `json:"completionRate"`
}

// createCategoryRequest はカテゴリ作成リクエストのボディ。
type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

// updateCategoryRequest はカテゴリ部分更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
}

func toCategoryResponse(c *model.Category) categoryResponse {
	taskIDs := c.TaskIDs
	if taskIDs == nil {
		taskIDs = []string{}
	}
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Color:       string(c.Color),
		TaskIDs:     taskIDs,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
}

// Create はPOST /categoryを処理する。
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("body", "invalid JSON body"))
		return
	}

	created, err := h.service.Create(r.Context(), category.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusCreated, "Category created successfully", toCategoryResponse(created))
}

// Get はGET /category/{category-id}を処理する。
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "category-id")

	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Category retrieved successfully", toCategoryResponse(c))
}

// Stats はGET /category/{category-id}/statsを処理する。
func (h *CategoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "category-id")

	stats, err := h.service.Stats(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Category stats retrieved successfully", categoryStatsResponse{
		TotalTasks:     stats.TotalTasks,
		CompletedTasks: stats.CompletedTasks,
		PendingTasks:   stats.PendingTasks,
		CompletionRate: stats.CompletionRate,
	})
}

// List はGET /categoryを処理する。page・limit・search・sortBy・sortOrderを受け付ける。
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	categories := make([]categoryResponse, 0, len(result.Categories))
	for _, c := range result.Categories {
		categories = append(categories, toCategoryResponse(c))
	}

	middleware.WriteSuccess(w, http.StatusOK, "Categories retrieved successfully", categoryListResponse{
		Categories: categories,
		Pagination: result.Pagination,
	})
}

// Update はPUT /category/{category-id}を処理する。
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "category-id")

	var req updateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("body", "invalid JSON body"))
		return
	}

	updated, err := h.service.Update(r.Context(), id, category.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Category updated successfully", toCategoryResponse(updated))
}

// Delete はDELETE /category/{category-id}を処理する。
// このカテゴリだけに属するタスクも連鎖削除される。
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "category-id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Category deleted successfully", nil)
}
