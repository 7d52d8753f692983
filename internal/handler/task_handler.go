package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DevAnupShourya/snap-stash/internal/middleware"
	"github.com/DevAnupShourya/snap-stash/internal/model"
	"github.com/DevAnupShourya/snap-stash/internal/query"
	"github.com/DevAnupShourya/snap-stash/internal/task"
)

// TaskHandler はタスクエンドポイントのハンドラー。
type TaskHandler struct {
	service *task.Service
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service *task.Service) *TaskHandler {
	return &TaskHandler{service: service}
}

// taskResponse はタスクのレスポンス表現。
type taskResponse struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Done        bool     `json:"done"`
	CategoryIDs []string `json:"categoryIds"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

// taskListResponse はタスク一覧のpayload。
type taskListResponse struct {
	Tasks      []taskResponse   `json:"tasks"`
	Pagination query.Pagination `json:"pagination"`
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Content     string   `json:"content"`
	Done        bool     `json:"done"`
	CategoryIDs []string `json:"categoryIds"`
}

// updateTaskRequest はタスク部分更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateTaskRequest struct {
	Content     *string  `json:"content"`
	Done        *bool    `json:"done"`
	CategoryIDs []string `json:"categoryIds"`
}

// bulkUpdateTaskRequest はタスク一括更新リクエストのボディ。
type bulkUpdateTaskRequest struct {
	TaskIDs     []string `json:"taskIds"`
	Done        *bool    `json:"done"`
	CategoryIDs []string `json:"categoryIds"`
}

func toTaskResponse(t *model.Task) taskResponse {
	categoryIDs := t.CategoryIDs
	if categoryIDs == nil {
		categoryIDs = []string{}
	}
	return taskResponse{
		ID:          t.ID,
		Content:     t.Content,
		Done:        t.Done,
		CategoryIDs: categoryIDs,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

// Create はPOST /taskを処理する。参照する全カテゴリへの追加も同時に行われる。
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("body", "invalid JSON body"))
		return
	}

	created, err := h.service.Create(r.Context(), task.CreateInput{
		Content:     req.Content,
		Done:        req.Done,
		CategoryIDs: req.CategoryIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusCreated, "Task created successfully", toTaskResponse(created))
}

// Get はGET /task/{task-id}を処理する。
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task-id")

	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Task retrieved successfully", toTaskResponse(t))
}

// List はGET /taskを処理する。
// page・limit・search・sortBy・sortOrderに加え、done・categoryフィルタを受け付ける。
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	tasks := make([]taskResponse, 0, len(result.Tasks))
	for _, t := range result.Tasks {
		tasks = append(tasks, toTaskResponse(t))
	}

	middleware.WriteSuccess(w, http.StatusOK, "Tasks retrieved successfully", taskListResponse{
		Tasks:      tasks,
		Pagination: result.Pagination,
	})
}

// Update はPUT /task/{task-id}を処理する。
// カテゴリ集合が変わる場合は外れたカテゴリからの削除も反映される。
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task-id")

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("body", "invalid JSON body"))
		return
	}

	updated, err := h.service.Update(r.Context(), id, task.UpdateInput{
		Content:     req.Content,
		Done:        req.Done,
		CategoryIDs: req.CategoryIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Task updated successfully", toTaskResponse(updated))
}

// Toggle はPATCH /task/{task-id}/toggleを処理する。
// 完了フラグを反転し、更新後のタスクを返す。
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task-id")

	t, err := h.service.Toggle(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Task toggled successfully", toTaskResponse(t))
}

// BulkUpdate はPATCH /task/bulkを処理する。
// 1件でも無効なIDが含まれる場合は全タスクが変更されない。
func (h *TaskHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("body", "invalid JSON body"))
		return
	}

	err := h.service.BulkUpdate(r.Context(), task.BulkUpdateInput{
		TaskIDs:     req.TaskIDs,
		Done:        req.Done,
		CategoryIDs: req.CategoryIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Tasks updated successfully", nil)
}

// Delete はDELETE /task/{task-id}を処理する。
// 全所属カテゴリのタスク集合からも取り除かれる。
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task-id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Task deleted successfully", nil)
}
