// Package auth はPIN認証とセッションライフサイクル管理を提供する。
package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/DevAnupShourya/snap-stash/internal/model"
	"github.com/DevAnupShourya/snap-stash/internal/session"
)

// MetricsRecorder は認証まわりのメトリクス収集インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordAuthSuccess()
	RecordAuthFailure()
	SetActiveSessions(n int)
}

// Service は認証ゲートのビジネスロジックを提供する。
// リクエストごとの状態遷移: Unauthenticated → Authenticating → Authorized | Rejected。
// 認証失敗はリクエスト単位の最終結果であり、サーバー側でリトライしない。
type Service struct {
	store   *session.Store
	pin     string
	metrics MetricsRecorder
}

// NewService はServiceを生成する。pinは設定済みの6桁PIN。
// metricsはnil可（テスト用）。
func NewService(store *session.Store, pin string, metrics MetricsRecorder) *Service {
	return &Service{
		store:   store,
		pin:     pin,
		metrics: metrics,
	}
}

// Authenticate は送信されたPINを検証し、一致すれば新規セッションを発行する。
// 検証前に期限切れセッションを掃除する。
// 不一致の場合はどの桁が誤っているかを漏らさないエラーを返す。
func (s *Service) Authenticate(pin string) (*model.Session, error) {
	// 認証試行のたびに期限切れセッションを遅延掃除する
	if removed := s.store.Sweep(); removed > 0 {
		slog.Info("swept expired sessions", slog.Int("removed", removed))
	}

	if subtle.ConstantTimeCompare([]byte(pin), []byte(s.pin)) != 1 {
		if s.metrics != nil {
			s.metrics.RecordAuthFailure()
		}
		return nil, model.NewInvalidPINError()
	}

	sess, err := s.store.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordAuthSuccess()
		s.metrics.SetActiveSessions(s.store.Len())
	}

	slog.Info("session issued",
		slog.Int("active_sessions", s.store.Len()),
	)

	return sess, nil
}

// Authorize はセッションIDの有効性を検証する。
// 未登録IDはAUTH_REQUIRED、期限切れはSESSION_EXPIREDとして区別して返す。
// 有効な場合は有効期限を延長（スライディング有効期限）したうえで返す。
func (s *Service) Authorize(sessionID string) (*model.Session, error) {
	sess := s.store.Get(sessionID)
	if sess == nil {
		return nil, model.NewAuthRequiredError()
	}

	if sess.Expired(s.store.Now()) {
		s.store.Revoke(sess.ID)
		if s.metrics != nil {
			s.metrics.SetActiveSessions(s.store.Len())
		}
		return nil, model.NewSessionExpiredError()
	}

	s.store.Touch(sess.ID)
	return s.store.Get(sess.ID), nil
}

// Logout はセッションを無条件に破棄する。未知のIDでもエラーにしない（冪等）。
func (s *Service) Logout(sessionID string) {
	s.store.Revoke(sessionID)
	if s.metrics != nil {
		s.metrics.SetActiveSessions(s.store.Len())
	}
	slog.Info("session revoked", slog.Int("active_sessions", s.store.Len()))
}
