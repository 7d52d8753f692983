package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/DevAnupShourya/snap-stash/internal/model"
	"github.com/DevAnupShourya/snap-stash/internal/query"
)

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// FindByID は指定IDのカテゴリを所属タスクID付きで取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	category := &model.Category{}
	var taskIDs pq.StringArray

	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.description, c.icon, c.color, c.created_at, c.updated_at,
		        COALESCE(array_agg(ct.task_id::text) FILTER (WHERE ct.task_id IS NOT NULL), '{}')
		 FROM categories c
		 LEFT JOIN category_tasks ct ON ct.category_id = c.id
		 WHERE c.id = $1
		 GROUP BY c.id`,
		id,
	).Scan(
		&category.ID, &category.Name, &category.Description, &category.Icon,
		&category.Color, &category.CreatedAt, &category.UpdatedAt, &taskIDs,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}

	category.TaskIDs = taskIDs
	return category, nil
}

// FindByNameFold は大文字小文字を区別せずに名前でカテゴリを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByNameFold(ctx context.Context, name string) (*model.Category, error) {
	category := &model.Category{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, icon, color, created_at, updated_at
		 FROM categories
		 WHERE lower(name) = lower($1)`,
		name,
	).Scan(
		&category.ID, &category.Name, &category.Description, &category.Icon,
		&category.Color, &category.CreatedAt, &category.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カテゴリ名による検索に失敗しました: %w", err)
	}

	return category, nil
}

// List は検証済みクエリ記述子に従ってカテゴリ一覧と総件数を返す。
// 総件数は一覧と同一のWHERE句・引数で数え、件数とページの不整合を避ける。
func (r *PostgresCategoryRepo) List(ctx context.Context, spec *query.Spec) ([]*model.Category, int, error) {
	where, args := spec.WhereClause()

	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) FROM categories %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("カテゴリ件数の取得に失敗しました: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT id, name, description, icon, color, created_at, updated_at
		 FROM categories %s %s %s`,
		where, spec.OrderClause(), spec.LimitOffsetClause(),
	)
	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	var ids []string
	for rows.Next() {
		category := &model.Category{TaskIDs: []string{}}
		if err := rows.Scan(
			&category.ID, &category.Name, &category.Description, &category.Icon,
			&category.Color, &category.CreatedAt, &category.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("カテゴリ行の読み取りに失敗しました: %w", err)
		}
		categories = append(categories, category)
		ids = append(ids, category.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("カテゴリ一覧の走査に失敗しました: %w", err)
	}

	if err := r.attachTaskIDs(ctx, categories, ids); err != nil {
		return nil, 0, err
	}

	return categories, total, nil
}

// attachTaskIDs はページ内カテゴリの所属タスクIDをまとめて取得して割り当てる。
func (r *PostgresCategoryRepo) attachTaskIDs(ctx context.Context, categories []*model.Category, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, task_id FROM category_tasks WHERE category_id = ANY($1::uuid[])`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("タスク参照の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	byCategory := make(map[string][]string, len(ids))
	for rows.Next() {
		var categoryID, taskID string
		if err := rows.Scan(&categoryID, &taskID); err != nil {
			return fmt.Errorf("タスク参照行の読み取りに失敗しました: %w", err)
		}
		byCategory[categoryID] = append(byCategory[categoryID], taskID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("タスク参照の走査に失敗しました: %w", err)
	}

	for _, category := range categories {
		if taskIDs, ok := byCategory[category.ID]; ok {
			category.TaskIDs = taskIDs
		}
	}
	return nil
}

// Create はカテゴリを作成する。
// lower(name)の一意インデックス違反はDUPLICATE_CATEGORYに変換する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, category *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description, icon, color, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		category.ID, category.Name, category.Description, category.Icon,
		category.Color, category.CreatedAt, category.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewDuplicateCategoryError(category.Name)
		}
		return fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はカテゴリの属性を上書き更新する。
func (r *PostgresCategoryRepo) Update(ctx context.Context, category *model.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories
		 SET name = $2, description = $3, icon = $4, color = $5, updated_at = $6
		 WHERE id = $1`,
		category.ID, category.Name, category.Description, category.Icon,
		category.Color, category.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewDuplicateCategoryError(category.Name)
		}
		return fmt.Errorf("カテゴリの更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return model.NewCategoryNotFoundError(category.ID)
	}
	return nil
}

// DeleteCascade はカテゴリを削除し、このカテゴリだけに属するタスクを連鎖削除する。
// 他カテゴリと共有されているタスクは参照行のみCASCADEで取り除かれる。
// 全処理は単一トランザクションで行い、部分的な削除を残さない。
func (r *PostgresCategoryRepo) DeleteCascade(ctx context.Context, id string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// このカテゴリにのみ属するタスクを削除する
	result, err := tx.ExecContext(ctx,
		`DELETE FROM tasks
		 WHERE id IN (
		     SELECT ct.task_id FROM category_tasks ct
		     WHERE ct.category_id = $1
		       AND NOT EXISTS (
		           SELECT 1 FROM category_tasks other
		           WHERE other.task_id = ct.task_id AND other.category_id <> $1
		       )
		 )`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("所属タスクの連鎖削除に失敗しました: %w", err)
	}
	deletedTasks, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	// カテゴリ本体を削除。共有タスクの参照行はON DELETE CASCADEで消える。
	result, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return 0, model.NewCategoryNotFoundError(id)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return int(deletedTasks), nil
}

// Stats はカテゴリ配下タスクの件数集計を返す。カテゴリが存在しない場合はnilを返す。
// 総数と完了数は結合テーブル経由の単一クエリで数える。
func (r *PostgresCategoryRepo) Stats(ctx context.Context, id string) (*model.CategoryStats, error) {
	var total, completed int

	err := r.db.QueryRowContext(ctx,
		`SELECT count(t.id), count(t.id) FILTER (WHERE t.done)
		 FROM categories c
		 LEFT JOIN category_tasks ct ON ct.category_id = c.id
		 LEFT JOIN tasks t ON t.id = ct.task_id
		 WHERE c.id = $1
		 GROUP BY c.id`,
		id,
	).Scan(&total, &completed)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カテゴリ統計の取得に失敗しました: %w", err)
	}

	return model.NewCategoryStats(total, completed), nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
