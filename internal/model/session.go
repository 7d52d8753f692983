// Package model はドメインモデルを定義する。
package model

import "time"

// Session は認証済みクライアントのログインセッションを表す。
// セッションはプロセス内メモリにのみ保持され、再起動で失われる。
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
