// Package model はドメインモデルを定義する。
package model

import "time"

// Task は単一のタスクを表す。
// CategoryIDsは所属カテゴリIDの集合。タスクは常に1つ以上のカテゴリに属する。
// カテゴリとの双方向関係はcategory_tasks結合テーブルで維持される。
type Task struct {
	ID          string
	Content     string
	Done        bool
	CategoryIDs []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskContentMaxLen はタスク内容の最大文字数。
const TaskContentMaxLen = 1000
