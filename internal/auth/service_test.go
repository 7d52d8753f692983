package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/DevAnupShourya/snap-stash/internal/model"
	"github.com/DevAnupShourya/snap-stash/internal/session"
)

// --- モック定義 ---

type mockMetrics struct {
	authSuccess    int
	authFailure    int
	activeSessions int
}

func (m *mockMetrics) RecordAuthSuccess()      { m.authSuccess++ }
func (m *mockMetrics) RecordAuthFailure()      { m.authFailure++ }
func (m *mockMetrics) SetActiveSessions(n int) { m.activeSessions = n }

var _ MetricsRecorder = (*mockMetrics)(nil)

// --- テスト ---

func TestAuthenticate_CorrectPIN_IssuesSession(t *testing.T) {
	store := session.NewStore(24 * time.Hour)
	metrics := &mockMetrics{}
	svc := NewService(store, "123456", metrics)

	sess, err := svc.Authenticate("123456")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID == "" {
		t.Error("expected non-empty session ID")
	}

	// 発行されたセッションはストアに登録されていること
	if store.Get(sess.ID) == nil {
		t.Error("issued session should be stored")
	}
	if metrics.authSuccess != 1 {
		t.Errorf("authSuccess = %d, want 1", metrics.authSuccess)
	}
}

func TestAuthenticate_WrongPIN_ReturnsInvalidPIN(t *testing.T) {
	store := session.NewStore(24 * time.Hour)
	metrics := &mockMetrics{}
	svc := NewService(store, "123456", metrics)

	tests := []string{"654321", "12345", "1234567", "", "12345a"}
	for _, pin := range tests {
		sess, err := svc.Authenticate(pin)
		if sess != nil {
			t.Errorf("Authenticate(%q) returned session, want nil", pin)
		}

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Authenticate(%q) error = %T, want APIError", pin, err)
		}
		if apiErr.Code != model.ErrCodeInvalidPIN {
			t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidPIN)
		}
		// どの桁が誤っているかを漏らさない固定メッセージ
		if apiErr.Message != "Invalid PIN" {
			t.Errorf("Message = %q, want %q", apiErr.Message, "Invalid PIN")
		}
	}

	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (no session on failure)", store.Len())
	}
	if metrics.authFailure != len(tests) {
		t.Errorf("authFailure = %d, want %d", metrics.authFailure, len(tests))
	}
}

func TestAuthenticate_SweepsExpiredSessionsFirst(t *testing.T) {
	// 負のTTLで作成したセッションは即座に期限切れになる
	store := session.NewStore(-time.Second)
	svc := NewService(store, "123456", nil)

	if _, err := store.Create(); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}

	// PIN不一致でも認証試行のたびに期限切れは掃除される
	if _, err := svc.Authenticate("000000"); err == nil {
		t.Fatal("expected error for wrong PIN")
	}

	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after sweep", store.Len())
	}
}

func TestAuthorize_UnknownSession_ReturnsAuthRequired(t *testing.T) {
	store := session.NewStore(24 * time.Hour)
	svc := NewService(store, "123456", nil)

	sess, err := svc.Authorize("unknown-session-id")
	if sess != nil {
		t.Errorf("Authorize() = %v, want nil", sess)
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeAuthRequired {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeAuthRequired)
	}
	if apiErr.Message != "Authentication required" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "Authentication required")
	}
}

func TestAuthorize_ExpiredSession_ReturnsSessionExpiredAndRevokes(t *testing.T) {
	store := session.NewStore(-time.Second)
	svc := NewService(store, "123456", nil)

	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Authorize(sess.ID)
	if got != nil {
		t.Errorf("Authorize() = %v, want nil", got)
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeSessionExpired {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeSessionExpired)
	}
	if apiErr.Message != "Session expired" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "Session expired")
	}

	// 期限切れ検出時にレコードは破棄されること
	if store.Get(sess.ID) != nil {
		t.Error("expired session should be revoked on detection")
	}

	// 破棄後の再検証はAUTH_REQUIREDに変わる
	_, err = svc.Authorize(sess.ID)
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthRequired {
		t.Errorf("second Authorize() error = %v, want AUTH_REQUIRED", err)
	}
}

func TestAuthorize_ValidSession_ExtendsExpiry(t *testing.T) {
	store := session.NewStore(24 * time.Hour)
	svc := NewService(store, "123456", nil)

	sess, err := svc.Authenticate("123456")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	originalExpiry := sess.ExpiresAt

	time.Sleep(10 * time.Millisecond)

	got, err := svc.Authorize(sess.ID)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}

	// スライディング有効期限: 検証のたびに期限が先へ延びる
	if !got.ExpiresAt.After(originalExpiry) {
		t.Errorf("ExpiresAt = %v, want after %v", got.ExpiresAt, originalExpiry)
	}
}

func TestLogout_RemovesSession(t *testing.T) {
	store := session.NewStore(24 * time.Hour)
	metrics := &mockMetrics{}
	svc := NewService(store, "123456", metrics)

	sess, err := svc.Authenticate("123456")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	svc.Logout(sess.ID)

	var apiErr *model.APIError
	_, err = svc.Authorize(sess.ID)
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthRequired {
		t.Errorf("Authorize() after Logout error = %v, want AUTH_REQUIRED", err)
	}
	if metrics.activeSessions != 0 {
		t.Errorf("activeSessions = %d, want 0", metrics.activeSessions)
	}
}

func TestLogout_UnknownSession_Idempotent(t *testing.T) {
	store := session.NewStore(24 * time.Hour)
	svc := NewService(store, "123456", nil)

	// panicせず正常に完了すること
	svc.Logout("unknown-session-id")
	svc.Logout("unknown-session-id")
}

func TestAuthenticate_MultipleSessionsCoexist(t *testing.T) {
	store := session.NewStore(24 * time.Hour)
	svc := NewService(store, "123456", nil)

	first, err := svc.Authenticate("123456")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	second, err := svc.Authenticate("123456")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	if first.ID == second.ID {
		t.Fatal("each authentication should issue a distinct session")
	}

	// 片方をログアウトしてももう片方は有効なまま
	svc.Logout(first.ID)
	if _, err := svc.Authorize(second.ID); err != nil {
		t.Errorf("Authorize(second) error = %v, want nil", err)
	}
}
