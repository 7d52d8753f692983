// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError はAPIの統一エラーフォーマットを表す。
// Fieldはバリデーションエラー時に問題のフィールド名を保持する。
type APIError struct {
	Code    string // エラーコード
	Message string // クライアント向けメッセージ
	Field   string // 問題のフィールド名（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeInvalidPIN        = "INVALID_PIN"
	ErrCodeAuthRequired      = "AUTH_REQUIRED"
	ErrCodeSessionExpired    = "SESSION_EXPIRED"
	ErrCodeCategoryNotFound  = "CATEGORY_NOT_FOUND"
	ErrCodeTaskNotFound      = "TASK_NOT_FOUND"
	ErrCodeInvalidReference  = "INVALID_REFERENCE"
	ErrCodeDuplicateCategory = "DUPLICATE_CATEGORY"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewValidationError は入力バリデーションエラーを生成する。
// messageには問題のフィールド名を含めること。
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
	}
}

// NewInvalidPINError はPIN不一致エラーを生成する。
// 総当たり対策としてメッセージからは入力のどこが誤っているかを読み取れない。
func NewInvalidPINError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidPIN,
		Message: "Invalid PIN",
	}
}

// NewAuthRequiredError はセッション未提示エラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:    ErrCodeAuthRequired,
		Message: "Authentication required",
	}
}

// NewSessionExpiredError はセッション期限切れエラーを生成する。
// クライアントはキャッシュ済みセッションを破棄して再認証する必要がある。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:    ErrCodeSessionExpired,
		Message: "Session expired",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(categoryID string) *APIError {
	return &APIError{
		Code:    ErrCodeCategoryNotFound,
		Message: fmt.Sprintf("Category not found: %s", categoryID),
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:    ErrCodeTaskNotFound,
		Message: fmt.Sprintf("Task not found: %s", taskID),
	}
}

// NewInvalidReferenceError は存在しないカテゴリ参照を含む書き込みのエラーを生成する。
// 参照整合性違反は書き込み前に検出され、操作全体が中断される。
func NewInvalidReferenceError(categoryID string) *APIError {
	message := "Referenced category does not exist"
	if categoryID != "" {
		message = fmt.Sprintf("%s: %s", message, categoryID)
	}
	return &APIError{
		Code:    ErrCodeInvalidReference,
		Message: message,
		Field:   "categoryId",
	}
}

// NewInvalidTaskReferenceError は存在しないタスクIDを参照する一括更新のエラーを生成する。
// 対象の取得失敗（404）ではなくリクエスト本文の不正（400）として扱う。
func NewInvalidTaskReferenceError(taskID string) *APIError {
	message := "Referenced task does not exist"
	if taskID != "" {
		message = fmt.Sprintf("%s: %s", message, taskID)
	}
	return &APIError{
		Code:    ErrCodeInvalidReference,
		Message: message,
		Field:   "taskIds",
	}
}

// NewDuplicateCategoryError はカテゴリ名の重複エラーを生成する。
// 名前の一意性は大文字小文字を区別せずに判定される。
func NewDuplicateCategoryError(name string) *APIError {
	return &APIError{
		Code:    ErrCodeDuplicateCategory,
		Message: fmt.Sprintf("Category name already exists: %s", name),
		Field:   "name",
	}
}
