// Package model はドメインモデルを定義する。
package model

import (
	"math"
	"time"
)

// Category はタスクをまとめるカテゴリを表す。
// TaskIDsはcategory_tasks結合テーブルから集約した所属タスクIDの集合。
type Category struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Color       CategoryColor
	TaskIDs     []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CategoryStats はカテゴリ配下タスクの件数集計を表す。
// CompletionRateは完了タスクの割合（百分率）。
type CategoryStats struct {
	TotalTasks     int
	CompletedTasks int
	PendingTasks   int
	CompletionRate float64
}

// NewCategoryStats は件数からカテゴリ統計を組み立てる。
// 完了率は小数第2位までに丸め、タスクが無い場合は0とする。
func NewCategoryStats(total, completed int) *CategoryStats {
	stats := &CategoryStats{
		TotalTasks:     total,
		CompletedTasks: completed,
		PendingTasks:   total - completed,
	}
	if total > 0 {
		stats.CompletionRate = math.Round(float64(completed)/float64(total)*10000) / 100
	}
	return stats
}

// CategoryColor はカテゴリの表示カラーを表す。
type CategoryColor string

const (
	// ColorDefault は標準カラー。
	ColorDefault CategoryColor = "default"
	// ColorPrimary はプライマリカラー。
	ColorPrimary CategoryColor = "primary"
	// ColorSecondary はセカンダリカラー。
	ColorSecondary CategoryColor = "secondary"
	// ColorWarning は警告カラー。
	ColorWarning CategoryColor = "warning"
	// ColorDanger は危険カラー。
	ColorDanger CategoryColor = "danger"
)

// Valid はカラー値が定義済みのいずれかであるかを返す。
func (c CategoryColor) Valid() bool {
	switch c {
	case ColorDefault, ColorPrimary, ColorSecondary, ColorWarning, ColorDanger:
		return true
	}
	return false
}
