// Package category はカテゴリ管理のドメインロジックを提供する。
package category

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

// nameMaxLen はカテゴリ名の最大文字数。
const nameMaxLen = 64

// listOptions はカテゴリ一覧のクエリ解析設定。
// ソート列は許可リスト外を受け付けない。
var listOptions = query.Options{
	SortFields: map[string]string{
		"name":      "name",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	DefaultSort:   "createdAt",
	DefaultOrder:  "desc",
	SearchColumns: []string{"name", "description"},
}

// CreateInput はカテゴリ作成の入力。
type CreateInput struct {
	Name        string
	Description string
	Icon        string
	Color       string
}

// UpdateInput はカテゴリ部分更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
}

// ListResult はカテゴリ一覧とページネーションメタデータ。
type ListResult struct {
	Categories []*model.Category
	Pagination query.Pagination
}

// Service はカテゴリ管理のサービス層。
type Service struct {
	repo      repository.CategoryRepository
	sanitizer *bluemonday.Policy
}

// NewService はServiceを生成する。
// ユーザー入力テキストはStrictPolicyで全タグを除去して保存する。
func NewService(repo repository.CategoryRepository) *Service {
	return &Service{
		repo:      repo,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Create は新規カテゴリを作成する。
// 名前の一意性は大文字小文字を区別せずに検査する。重複時はDUPLICATE_CATEGORY。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Category, error) {
	name := strings.TrimSpace(s.sanitizer.Sanitize(in.Name))
	if name == "" {
		return nil, model.NewValidationError("name", "name is required")
	}
	if len(name) > nameMaxLen {
		return nil, model.NewValidationError("name", fmt.Sprintf("name must be %d characters or less", nameMaxLen))
	}

	icon := strings.TrimSpace(in.Icon)
	if icon == "" {
		return nil, model.NewValidationError("icon", "icon is required")
	}

	color := model.CategoryColor(in.Color)
	if in.Color == "" {
		color = model.ColorDefault
	}
	if !color.Valid() {
		return nil, model.NewValidationError("color", "color must be one of: default, primary, secondary, warning, danger")
	}

	// 事前検査で分かりやすい409を返す。レースはlower(name)の一意インデックスが塞ぐ。
	existing, err := s.repo.FindByNameFold(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewDuplicateCategoryError(name)
	}

	now := time.Now()
	category := &model.Category{
		ID:          uuid.New().String(),
		Name:        name,
		Description: s.sanitizer.Sanitize(in.Description),
		Icon:        icon,
		Color:       color,
		TaskIDs:     []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}

	slog.Info("category created",
		slog.String("category_id", category.ID),
		slog.String("name", category.Name),
	)
	return category, nil
}

// Get は指定IDのカテゴリを返す。存在しない場合はCATEGORY_NOT_FOUND。
func (s *Service) Get(ctx context.Context, id string) (*model.Category, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, model.NewCategoryNotFoundError(id)
	}
	return category, nil
}

// Stats は指定カテゴリ配下タスクの件数集計を返す。
// 存在しない場合はCATEGORY_NOT_FOUND。
func (s *Service) Stats(ctx context.Context, id string) (*model.CategoryStats, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	stats, err := s.repo.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, model.NewCategoryNotFoundError(id)
	}
	return stats, nil
}

// List はページネーション・検索・ソート付きのカテゴリ一覧を返す。
func (s *Service) List(ctx context.Context, params url.Values) (*ListResult, error) {
	spec, err := query.Parse(params, listOptions)
	if err != nil {
		return nil, err
	}

	categories, total, err := s.repo.List(ctx, spec)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []*model.Category{}
	}

	return &ListResult{
		Categories: categories,
		Pagination: query.NewPagination(total, spec.Page(), spec.Limit()),
	}, nil
}

// Update はカテゴリを部分更新する。nilのフィールドは既存値を維持する。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Category, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(s.sanitizer.Sanitize(*in.Name))
		if name == "" {
			return nil, model.NewValidationError("name", "name is required")
		}
		if len(name) > nameMaxLen {
			return nil, model.NewValidationError("name", fmt.Sprintf("name must be %d characters or less", nameMaxLen))
		}
		if !strings.EqualFold(name, category.Name) {
			existing, err := s.repo.FindByNameFold(ctx, name)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != id {
				return nil, model.NewDuplicateCategoryError(name)
			}
		}
		category.Name = name
	}

	if in.Description != nil {
		category.Description = s.sanitizer.Sanitize(*in.Description)
	}

	if in.Icon != nil {
		icon := strings.TrimSpace(*in.Icon)
		if icon == "" {
			return nil, model.NewValidationError("icon", "icon is required")
		}
		category.Icon = icon
	}

	if in.Color != nil {
		color := model.CategoryColor(*in.Color)
		if !color.Valid() {
			return nil, model.NewValidationError("color", "color must be one of: default, primary, secondary, warning, danger")
		}
		category.Color = color
	}

	category.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Delete はカテゴリを削除する。このカテゴリだけに属するタスクは連鎖削除され、
// 完了後にこのカテゴリを参照するタスクは存在しなくなる。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	deletedTasks, err := s.repo.DeleteCascade(ctx, id)
	if err != nil {
		return err
	}

	slog.Info("category deleted",
		slog.String("category_id", id),
		slog.Int("cascaded_tasks", deletedTasks),
	)
	return nil
}

// validateID はカテゴリIDのUUID形式を検証する。
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewValidationError("category-id", "invalid category ID format")
	}
	return nil
}
