// Package sweep は期限切れセッションを定期的に破棄するバックグラウンドジョブを提供する。
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/DevAnupShourya/snap-stash/internal/session"
)

// MetricsRecorder はセッション掃除のメトリクス収集インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	SetActiveSessions(n int)
	RecordSweptSessions(n int)
}

// Job は期限切れセッションの定期掃除ジョブ。
// 認証時の遅延掃除を補完し、アクセスの無い期間でもメモリを解放する。
type Job struct {
	store    *session.Store
	interval time.Duration
	metrics  MetricsRecorder
}

// NewJob はJobを生成する。metricsはnil可（テスト用）。
func NewJob(store *session.Store, interval time.Duration, metrics MetricsRecorder) *Job {
	return &Job{
		store:    store,
		interval: interval,
		metrics:  metrics,
	}
}

// Run は定期掃除ループを開始する。コンテキストのキャンセルで停止する。
// ブロックするため専用のゴルーチンで呼び出すこと。
func (j *Job) Run(ctx context.Context) {
	slog.Info("session sweep job started",
		slog.Duration("interval", j.interval),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-ctx.Done():
			slog.Info("session sweep job stopped")
			return
		}
	}
}

// sweep は1回分の掃除を実行する。
func (j *Job) sweep() {
	removed := j.store.Sweep()
	if removed > 0 {
		slog.Info("swept expired sessions",
			slog.Int("removed", removed),
			slog.Int("active_sessions", j.store.Len()),
		)
	}

	if j.metrics != nil {
		j.metrics.SetActiveSessions(j.store.Len())
		if removed > 0 {
			j.metrics.RecordSweptSessions(removed)
		}
	}
}
