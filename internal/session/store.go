// Package session はプロセス内セッションストアを提供する。
// セッションは永続化されず、プロセス再起動で全て失われる。
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/DevAnupShourya/snap-stash/internal/model"
)

// Store はセッションIDからセッションレコードへのマッピングを保持する。
// 起動時に1つ生成してハンドラーへ注入する。レコードの変更はStoreだけが行う。
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	ttl      time.Duration

	// now はテストから時刻を差し替えるためのフック。
	now func() time.Time
}

// NewStore は指定TTLのStoreを生成する。
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*model.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create は暗号的に安全な新規セッションを生成して保存する。
// 有効期限は now + TTL。
func (s *Store) Create() (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	sess := &model.Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	copied := *sess
	return &copied, nil
}

// Get は指定IDのセッションのコピーを返す。見つからない場合はnilを返す。
// 期限切れでもレコードが残っていればそのまま返す。期限判定は呼び出し側が行う。
func (s *Store) Get(id string) *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}

	copied := *sess
	return &copied
}

// Touch はセッションの有効期限を now + TTL に延長する（スライディング有効期限）。
// セッションが存在しない場合は何もしない。
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.ExpiresAt = s.now().Add(s.ttl)
}

// Revoke は指定IDのセッションを削除する。存在しないIDでもエラーにしない（冪等）。
func (s *Store) Revoke(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep は期限切れセッションを全て削除し、削除件数を返す。
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len は現在保持しているセッション数を返す（期限切れ含む）。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// TTL はセッションの有効期間を返す。
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Now はストアの時計で現在時刻を返す。期限判定はこの時計を基準に行う。
func (s *Store) Now() time.Time {
	return s.now()
}

// generateSessionID は暗号的に安全な256ビットのセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
