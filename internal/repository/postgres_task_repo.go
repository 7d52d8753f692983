package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/DevAnupShourya/snap-stash/internal/model"
	"github.com/DevAnupShourya/snap-stash/internal/query"
)

// PostgreSQLエラーコード
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// カテゴリとの双方向関係の維持はすべて単一トランザクション内で行う。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// FindByID は指定IDのタスクを所属カテゴリID付きで取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	task := &model.Task{}
	var categoryIDs pq.StringArray

	err := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.content, t.done, t.created_at, t.updated_at,
		        COALESCE(array_agg(ct.category_id::text) FILTER (WHERE ct.category_id IS NOT NULL), '{}')
		 FROM tasks t
		 LEFT JOIN category_tasks ct ON ct.task_id = t.id
		 WHERE t.id = $1
		 GROUP BY t.id`,
		id,
	).Scan(&task.ID, &task.Content, &task.Done, &task.CreatedAt, &task.UpdatedAt, &categoryIDs)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}

	task.CategoryIDs = categoryIDs
	return task, nil
}

// List は検証済みクエリ記述子に従ってタスク一覧と総件数を返す。
// 総件数は一覧と同一のWHERE句・引数で数え、件数とページの不整合を避ける。
func (r *PostgresTaskRepo) List(ctx context.Context, spec *query.Spec) ([]*model.Task, int, error) {
	where, args := spec.WhereClause()

	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) FROM tasks %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("タスク件数の取得に失敗しました: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT id, content, done, created_at, updated_at
		 FROM tasks %s %s %s`,
		where, spec.OrderClause(), spec.LimitOffsetClause(),
	)
	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	var ids []string
	for rows.Next() {
		task := &model.Task{CategoryIDs: []string{}}
		if err := rows.Scan(&task.ID, &task.Content, &task.Done, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("タスク行の読み取りに失敗しました: %w", err)
		}
		tasks = append(tasks, task)
		ids = append(ids, task.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("タスク一覧の走査に失敗しました: %w", err)
	}

	if err := r.attachCategoryIDs(ctx, tasks, ids); err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// attachCategoryIDs はページ内タスクの所属カテゴリIDをまとめて取得して割り当てる。
func (r *PostgresTaskRepo) attachCategoryIDs(ctx context.Context, tasks []*model.Task, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, category_id FROM category_tasks WHERE task_id = ANY($1::uuid[])`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("カテゴリ参照の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	byTask := make(map[string][]string, len(ids))
	for rows.Next() {
		var taskID, categoryID string
		if err := rows.Scan(&taskID, &categoryID); err != nil {
			return fmt.Errorf("カテゴリ参照行の読み取りに失敗しました: %w", err)
		}
		byTask[taskID] = append(byTask[taskID], categoryID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("カテゴリ参照の走査に失敗しました: %w", err)
	}

	for _, task := range tasks {
		if categoryIDs, ok := byTask[task.ID]; ok {
			task.CategoryIDs = categoryIDs
		}
	}
	return nil
}

// CreateWithCategories はタスクと全カテゴリ参照を単一トランザクションで作成する。
// 参照先カテゴリの存在を書き込み前に検証し、1つでも欠けていれば
// INVALID_REFERENCEで全体を中断する（タスクは作成されない）。
func (r *PostgresTaskRepo) CreateWithCategories(ctx context.Context, task *model.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if err := validateCategoryRefs(ctx, tx, task.CategoryIDs); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (id, content, done, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		task.ID, task.Content, task.Done, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	if err := insertCategoryRefs(ctx, tx, task.ID, task.CategoryIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// UpdateWithCategories はタスクの属性更新とカテゴリ集合の差分反映を
// 単一トランザクションで行う。newCategoryIDsがnilの場合は参照を変更しない。
// 集合の差分はDELETE（除外分）とINSERT ... ON CONFLICT DO NOTHING（追加分）で
// 反映し、変化のない参照行には触れない。
func (r *PostgresTaskRepo) UpdateWithCategories(ctx context.Context, task *model.Task, newCategoryIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if newCategoryIDs != nil {
		if err := validateCategoryRefs(ctx, tx, newCategoryIDs); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET content = $2, done = $3, updated_at = $4 WHERE id = $1`,
		task.ID, task.Content, task.Done, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return model.NewTaskNotFoundError(task.ID)
	}

	if newCategoryIDs != nil {
		// 新集合に含まれない参照を取り除く
		_, err = tx.ExecContext(ctx,
			`DELETE FROM category_tasks
			 WHERE task_id = $1 AND category_id <> ALL($2::uuid[])`,
			task.ID, pq.Array(newCategoryIDs),
		)
		if err != nil {
			return fmt.Errorf("カテゴリ参照の削除に失敗しました: %w", err)
		}

		if err := insertCategoryRefs(ctx, tx, task.ID, newCategoryIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Delete はタスクを削除する。カテゴリ側の参照行はON DELETE CASCADEで取り除かれる。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return model.NewTaskNotFoundError(id)
	}
	return nil
}

// BulkUpdate は複数タスクの完了フラグとカテゴリ集合を一括更新する。
// 全タスクIDと全カテゴリID（指定時）の存在を変更前に検証し、
// いずれかが無効な場合はINVALID_REFERENCEでロールバックして
// 何も変更しない（全有か全無）。
func (r *PostgresTaskRepo) BulkUpdate(ctx context.Context, taskIDs []string, done *bool, categoryIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 1. 全タスクの存在検証
	missingTask, err := findMissingID(ctx, tx,
		`SELECT id::text FROM tasks WHERE id = ANY($1::uuid[])`, taskIDs)
	if err != nil {
		return fmt.Errorf("タスク存在検証に失敗しました: %w", err)
	}
	if missingTask != "" {
		return model.NewInvalidTaskReferenceError(missingTask)
	}

	// 2. 全カテゴリの存在検証（指定時のみ）
	if categoryIDs != nil {
		if err := validateCategoryRefs(ctx, tx, categoryIDs); err != nil {
			return err
		}
	}

	// 3. 完了フラグの一括更新
	if done != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET done = $2, updated_at = now() WHERE id = ANY($1::uuid[])`,
			pq.Array(taskIDs), *done,
		)
		if err != nil {
			return fmt.Errorf("完了フラグの一括更新に失敗しました: %w", err)
		}
	}

	// 4. カテゴリ集合の一括差し替え
	if categoryIDs != nil {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM category_tasks
			 WHERE task_id = ANY($1::uuid[]) AND category_id <> ALL($2::uuid[])`,
			pq.Array(taskIDs), pq.Array(categoryIDs),
		)
		if err != nil {
			return fmt.Errorf("カテゴリ参照の一括削除に失敗しました: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO category_tasks (category_id, task_id)
			 SELECT c, t FROM unnest($1::uuid[]) AS c CROSS JOIN unnest($2::uuid[]) AS t
			 ON CONFLICT DO NOTHING`,
			pq.Array(categoryIDs), pq.Array(taskIDs),
		)
		if err != nil {
			return translateRefError(err, "カテゴリ参照の一括追加に失敗しました")
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET updated_at = now() WHERE id = ANY($1::uuid[])`,
			pq.Array(taskIDs),
		)
		if err != nil {
			return fmt.Errorf("更新時刻の反映に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// --- 共通ヘルパー ---

// validateCategoryRefs は参照先カテゴリが全て存在することを検証する。
// 欠けているIDがあれば最初の1件を含むINVALID_REFERENCEを返す。
func validateCategoryRefs(ctx context.Context, tx *sql.Tx, categoryIDs []string) error {
	missing, err := findMissingID(ctx, tx,
		`SELECT id::text FROM categories WHERE id = ANY($1::uuid[])`, categoryIDs)
	if err != nil {
		return fmt.Errorf("カテゴリ存在検証に失敗しました: %w", err)
	}
	if missing != "" {
		return model.NewInvalidReferenceError(missing)
	}
	return nil
}

// findMissingID はクエリで見つかったIDと要求IDを突き合わせ、
// 見つからなかった最初のIDを返す。全て存在する場合は空文字列を返す。
func findMissingID(ctx context.Context, tx *sql.Tx, sqlQuery string, ids []string) (string, error) {
	rows, err := tx.QueryContext(ctx, sqlQuery, pq.Array(ids))
	if err != nil {
		return "", err
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	for _, id := range ids {
		if !found[id] {
			return id, nil
		}
	}
	return "", nil
}

// insertCategoryRefs はタスクとカテゴリの参照行を集合セマンティクスで追加する。
// 既存の参照行はON CONFLICT DO NOTHINGでそのまま残す（冪等）。
func insertCategoryRefs(ctx context.Context, tx *sql.Tx, taskID string, categoryIDs []string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO category_tasks (category_id, task_id)
		 SELECT c, $2::uuid FROM unnest($1::uuid[]) AS c
		 ON CONFLICT DO NOTHING`,
		pq.Array(categoryIDs), taskID,
	)
	if err != nil {
		return translateRefError(err, "カテゴリ参照の追加に失敗しました")
	}
	return nil
}

// translateRefError は外部キー違反をINVALID_REFERENCEに変換する。
// 存在検証との間に他トランザクションがカテゴリを消した場合の最終防壁。
func translateRefError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
		return model.NewInvalidReferenceError("")
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// isUniqueViolation は一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
