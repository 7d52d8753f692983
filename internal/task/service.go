// Package task はタスク管理のドメインロジックを提供する。
package task

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/DevAnupShourya/snap-stash/internal/model"
	"github.com/DevAnupShourya/snap-stash/internal/query"
	"github.com/DevAnupShourya/snap-stash/internal/repository"
)

// listOptions はタスク一覧のクエリ解析設定。
var listOptions = query.Options{
	SortFields: map[string]string{
		"content":   "content",
		"done":      "done",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	DefaultSort:   "createdAt",
	DefaultOrder:  "desc",
	SearchColumns: []string{"content"},
}

// CreateInput はタスク作成の入力。タスクは1つ以上のカテゴリに属する必要がある。
type CreateInput struct {
	Content     string
	Done        bool
	CategoryIDs []string
}

// UpdateInput はタスク部分更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Content     *string
	Done        *bool
	CategoryIDs []string // nilなら参照は変更しない
}

// BulkUpdateInput はタスク一括更新の入力。
type BulkUpdateInput struct {
	TaskIDs     []string
	Done        *bool
	CategoryIDs []string // nilなら参照は変更しない
}

// ListResult はタスク一覧とページネーションメタデータ。
type ListResult struct {
	Tasks      []*model.Task
	Pagination query.Pagination
}

// Service はタスク管理のサービス層。
// カテゴリとの双方向関係の原子性はリポジトリのトランザクションに委ねる。
type Service struct {
	repo      repository.TaskRepository
	sanitizer *bluemonday.Policy
}

// NewService はServiceを生成する。
func NewService(repo repository.TaskRepository) *Service {
	return &Service{
		repo:      repo,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Create は新規タスクを作成し、参照する全カテゴリのタスク集合へ追加する。
// 存在しないカテゴリが含まれる場合は何も作成せずに失敗する。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Task, error) {
	content, err := s.validateContent(in.Content)
	if err != nil {
		return nil, err
	}

	categoryIDs, err := normalizeCategoryIDs(in.CategoryIDs)
	if err != nil {
		return nil, err
	}
	if len(categoryIDs) == 0 {
		return nil, model.NewValidationError("categoryId", "at least one category is required")
	}

	now := time.Now()
	task := &model.Task{
		ID:          uuid.New().String(),
		Content:     content,
		Done:        in.Done,
		CategoryIDs: categoryIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateWithCategories(ctx, task); err != nil {
		return nil, err
	}

	slog.Info("task created",
		slog.String("task_id", task.ID),
		slog.Int("categories", len(task.CategoryIDs)),
	)
	return task, nil
}

// Get は指定IDのタスクを返す。存在しない場合はTASK_NOT_FOUND。
func (s *Service) Get(ctx context.Context, id string) (*model.Task, error) {
	if err := validateTaskID(id); err != nil {
		return nil, err
	}

	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(id)
	}
	return task, nil
}

// List はページネーション・検索・ソート・フィルタ付きのタスク一覧を返す。
// doneは完了フラグの等値フィルタ、categoryは所属カテゴリの等値フィルタ。
func (s *Service) List(ctx context.Context, params url.Values) (*ListResult, error) {
	spec, err := query.Parse(params, listOptions)
	if err != nil {
		return nil, err
	}

	if doneStr := params.Get("done"); doneStr != "" {
		switch doneStr {
		case "true":
			spec.WithFilter("done", true)
		case "false":
			spec.WithFilter("done", false)
		default:
			return nil, model.NewValidationError("done", "done must be true or false")
		}
	}

	if categoryID := params.Get("category"); categoryID != "" {
		if _, err := uuid.Parse(categoryID); err != nil {
			return nil, model.NewValidationError("category", "invalid category ID format")
		}
		spec.WithCondition(fmt.Sprintf(
			`EXISTS (SELECT 1 FROM category_tasks ct
			 WHERE ct.task_id = tasks.id AND ct.category_id = $%d)`, spec.NextArg()),
			categoryID,
		)
	}

	tasks, total, err := s.repo.List(ctx, spec)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}

	return &ListResult{
		Tasks:      tasks,
		Pagination: query.NewPagination(total, spec.Page(), spec.Limit()),
	}, nil
}

// Update はタスクを部分更新する。カテゴリ集合が変わる場合は
// 旧集合との差分が双方向に反映される（外れたカテゴリからは取り除かれる）。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Content != nil {
		content, err := s.validateContent(*in.Content)
		if err != nil {
			return nil, err
		}
		task.Content = content
	}

	if in.Done != nil {
		task.Done = *in.Done
	}

	var newCategoryIDs []string
	if in.CategoryIDs != nil {
		newCategoryIDs, err = normalizeCategoryIDs(in.CategoryIDs)
		if err != nil {
			return nil, err
		}
		if len(newCategoryIDs) == 0 {
			return nil, model.NewValidationError("categoryId", "at least one category is required")
		}
	}

	task.UpdatedAt = time.Now()

	if err := s.repo.UpdateWithCategories(ctx, task, newCategoryIDs); err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Toggle はタスクの完了フラグを反転し、更新後のタスクを返す。
// カテゴリ集合は変更しない。
func (s *Service) Toggle(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	task.Done = !task.Done
	task.UpdatedAt = time.Now()

	if err := s.repo.UpdateWithCategories(ctx, task, nil); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete はタスクを削除する。全所属カテゴリのタスク集合からも取り除かれる。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateTaskID(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("task deleted", slog.String("task_id", id))
	return nil
}

// BulkUpdate は複数タスクを一括更新する。
// 1件でも無効なタスクID・カテゴリIDが含まれる場合、全タスクが変更されずに失敗する。
func (s *Service) BulkUpdate(ctx context.Context, in BulkUpdateInput) error {
	if len(in.TaskIDs) == 0 {
		return model.NewValidationError("taskIds", "at least one task ID is required")
	}
	taskIDs := make([]string, 0, len(in.TaskIDs))
	seen := make(map[string]bool, len(in.TaskIDs))
	for _, id := range in.TaskIDs {
		if _, err := uuid.Parse(id); err != nil {
			return model.NewValidationError("taskIds", "invalid task ID format")
		}
		if !seen[id] {
			seen[id] = true
			taskIDs = append(taskIDs, id)
		}
	}

	if in.Done == nil && in.CategoryIDs == nil {
		return model.NewValidationError("updates", "at least one field to update is required")
	}

	var categoryIDs []string
	if in.CategoryIDs != nil {
		var err error
		categoryIDs, err = normalizeCategoryIDs(in.CategoryIDs)
		if err != nil {
			return err
		}
		if len(categoryIDs) == 0 {
			return model.NewValidationError("categoryId", "at least one category is required")
		}
	}

	if err := s.repo.BulkUpdate(ctx, taskIDs, in.Done, categoryIDs); err != nil {
		return err
	}

	slog.Info("tasks bulk updated", slog.Int("count", len(taskIDs)))
	return nil
}

// validateContent はタスク内容をサニタイズして長さ制約を検証する。
func (s *Service) validateContent(content string) (string, error) {
	cleaned := strings.TrimSpace(s.sanitizer.Sanitize(content))
	if cleaned == "" {
		return "", model.NewValidationError("content", "content is required")
	}
	if len([]rune(cleaned)) > model.TaskContentMaxLen {
		return "", model.NewValidationError("content",
			fmt.Sprintf("content must be %d characters or less", model.TaskContentMaxLen))
	}
	return cleaned, nil
}

// normalizeCategoryIDs はカテゴリID群のUUID形式を検証し、重複を取り除く。
func normalizeCategoryIDs(ids []string) ([]string, error) {
	if ids == nil {
		return nil, nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return nil, model.NewValidationError("categoryId", "invalid category ID format")
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// validateTaskID はタスクIDのUUID形式を検証する。
func validateTaskID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewValidationError("task-id", "invalid task ID format")
	}
	return nil
}
