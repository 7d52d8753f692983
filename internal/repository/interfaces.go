// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/DevAnupShourya/snap-stash/internal/model"
	"github.com/DevAnupShourya/snap-stash/internal/query"
)

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	// FindByID は指定IDのカテゴリを所属タスクID付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Category, error)

	// FindByNameFold は大文字小文字を区別せずに名前でカテゴリを検索する。
	// 見つからない場合はnilを返す。
	FindByNameFold(ctx context.Context, name string) (*model.Category, error)

	// List は検証済みクエリ記述子に従ってカテゴリ一覧と総件数を返す。
	// 総件数は一覧と同一のWHERE句で数える。
	List(ctx context.Context, spec *query.Spec) ([]*model.Category, int, error)

	// Create はカテゴリを作成する。名前が重複する場合はDUPLICATE_CATEGORYを返す。
	Create(ctx context.Context, category *model.Category) error

	// Update はカテゴリの属性を上書き更新する。
	// 対象が存在しない場合はCATEGORY_NOT_FOUND、名前重複はDUPLICATE_CATEGORYを返す。
	Update(ctx context.Context, category *model.Category) error

	// DeleteCascade はカテゴリを削除し、このカテゴリだけに属するタスクを
	// 同一トランザクションで連鎖削除する。他カテゴリと共有されているタスクは
	// 参照のみ取り除かれる。削除したタスク数を返す。
	DeleteCascade(ctx context.Context, id string) (int, error)

	// Stats はカテゴリ配下タスクの件数集計を返す。
	// カテゴリが存在しない場合はnilを返す。
	Stats(ctx context.Context, id string) (*model.CategoryStats, error)
}

// TaskRepository はタスクデータの永続化インターフェース。
// カテゴリとの双方向関係はすべて単一トランザクション内で維持される。
type TaskRepository interface {
	// FindByID は指定IDのタスクを所属カテゴリID付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// List は検証済みクエリ記述子に従ってタスク一覧と総件数を返す。
	List(ctx context.Context, spec *query.Spec) ([]*model.Task, int, error)

	// CreateWithCategories はタスクと全カテゴリ参照を単一トランザクションで作成する。
	// 存在しないカテゴリが1つでも含まれる場合はINVALID_REFERENCEを返し、
	// タスクは作成されない（全有か全無）。
	CreateWithCategories(ctx context.Context, task *model.Task) error

	// UpdateWithCategories はタスクの属性更新とカテゴリ集合の差分反映を
	// 単一トランザクションで行う。newCategoryIDsがnilの場合は参照を変更しない。
	// 変化のない参照には触れない（冪等な集合更新）。
	UpdateWithCategories(ctx context.Context, task *model.Task, newCategoryIDs []string) error

	// Delete はタスクを削除する。カテゴリ参照はCASCADEで取り除かれる。
	// 対象が存在しない場合はTASK_NOT_FOUNDを返す。
	Delete(ctx context.Context, id string) error

	// BulkUpdate は複数タスクの完了フラグとカテゴリ集合を一括更新する。
	// 全タスクIDと全カテゴリIDの存在を変更前に検証し、いずれかが無効な場合は
	// INVALID_REFERENCEを返して何も変更しない（全有か全無）。
	BulkUpdate(ctx context.Context, taskIDs []string, done *bool, categoryIDs []string) error
}
