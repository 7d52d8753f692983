package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/DevAnupShourya/snap-stash/internal/model"
)

// PostgresCategoryRepoはCategoryRepositoryインターフェースを満たすことを検証
func TestPostgresCategoryRepo_ImplementsInterface(t *testing.T) {
	var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
}

// PostgresTaskRepoはTaskRepositoryインターフェースを満たすことを検証
func TestPostgresTaskRepo_ImplementsInterface(t *testing.T) {
	var _ TaskRepository = (*PostgresTaskRepo)(nil)
}

func TestNewPostgresCategoryRepo_Initializes(t *testing.T) {
	repo := NewPostgresCategoryRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresTaskRepo_Initializes(t *testing.T) {
	repo := NewPostgresTaskRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// 一意制約違反の判定を検証
func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: pgUniqueViolation}) {
		t.Error("unique violation should be detected")
	}
	if isUniqueViolation(&pq.Error{Code: pgForeignKeyViolation}) {
		t.Error("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Error("plain errors are not unique violations")
	}
	// ラップされていても検出できること
	wrapped := fmt.Errorf("カテゴリの作成に失敗しました: %w", &pq.Error{Code: pgUniqueViolation})
	if !isUniqueViolation(wrapped) {
		t.Error("wrapped unique violation should be detected")
	}
}

// 外部キー違反がINVALID_REFERENCEに変換されることを検証
func TestTranslateRefError(t *testing.T) {
	err := translateRefError(&pq.Error{Code: pgForeignKeyViolation}, "failed")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeInvalidReference {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidReference)
	}

	// 外部キー違反以外はラップして返す
	plain := errors.New("connection reset")
	got := translateRefError(plain, "failed")
	if errors.As(got, &apiErr) {
		t.Error("non-FK errors should not become APIError")
	}
	if !errors.Is(got, plain) {
		t.Error("original error should be wrapped")
	}
}
