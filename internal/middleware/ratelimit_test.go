package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/DevAnupShourya/snap-stash/internal/model"
)

func newTestRateLimiter(authBurst, generalBurst int) *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // テスト中に補充されない低レート
		GeneralBurst:    generalBurst,
		AuthRate:        rate.Limit(0.001),
		AuthBurst:       authBurst,
		CleanupInterval: time.Hour,
	})
}

func TestAuthMiddleware_WithinLimit_PassesThrough(t *testing.T) {
	rl := newTestRateLimiter(3, 10)
	defer rl.Stop()

	called := 0
	handler := rl.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	if called != 3 {
		t.Errorf("handler called %d times, want 3", called)
	}
}

func TestAuthMiddleware_ExceedsLimit_Returns429(t *testing.T) {
	rl := newTestRateLimiter(2, 10)
	defer rl.Stop()

	handler := rl.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var lastRec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		lastRec = httptest.NewRecorder()
		handler.ServeHTTP(lastRec, req)
	}

	if lastRec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", lastRec.Code, http.StatusTooManyRequests)
	}
	if lastRec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	_, payload := decodeEnvelope(t, lastRec)
	if payload["code"] != model.ErrCodeRateLimited {
		t.Errorf("code = %v, want %q", payload["code"], model.ErrCodeRateLimited)
	}
}

func TestAuthMiddleware_LimitsPerIP(t *testing.T) {
	rl := newTestRateLimiter(1, 10)
	defer rl.Stop()

	handler := rl.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 1つ目のIPの上限消費
	req := httptest.NewRequest(http.MethodPost, "/auth", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first IP: status = %d, want %d", rec.Code, http.StatusOK)
	}

	// 別IPからのリクエストは影響を受けない
	req = httptest.NewRequest(http.MethodPost, "/auth", nil)
	req.RemoteAddr = "10.0.0.2:12345"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second IP: status = %d, want %d", rec.Code, http.StatusOK)
	}

	if rl.AuthLimiterCount() != 2 {
		t.Errorf("AuthLimiterCount() = %d, want 2", rl.AuthLimiterCount())
	}
}

func TestGeneralMiddleware_NoSessionInContext_Returns401(t *testing.T) {
	rl := newTestRateLimiter(10, 10)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/category", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGeneralMiddleware_LimitsPerSession(t *testing.T) {
	rl := newTestRateLimiter(10, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(sessionID string) int {
		req := httptest.NewRequest(http.MethodGet, "/category", nil)
		req = req.WithContext(ContextWithSessionID(req.Context(), sessionID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("session-a"); code != http.StatusOK {
		t.Fatalf("session-a first request: status = %d, want %d", code, http.StatusOK)
	}
	if code := send("session-a"); code != http.StatusTooManyRequests {
		t.Errorf("session-a second request: status = %d, want %d", code, http.StatusTooManyRequests)
	}
	// 別セッションは別バケットなので影響を受けない
	if code := send("session-b"); code != http.StatusOK {
		t.Errorf("session-b: status = %d, want %d", code, http.StatusOK)
	}
}

func TestCleanup_RemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    1,
		AuthRate:        rate.Limit(1),
		AuthBurst:       1,
		CleanupInterval: time.Nanosecond,
	})
	defer rl.Stop()

	rl.getOrCreate(&rl.authMu, rl.authLimiters, "10.0.0.1", rate.Limit(1), 1)
	if rl.AuthLimiterCount() != 1 {
		t.Fatalf("AuthLimiterCount() = %d, want 1", rl.AuthLimiterCount())
	}

	// TTL（CleanupInterval * 2）経過後のcleanupでエントリが消えること
	time.Sleep(time.Millisecond)
	rl.cleanup()

	if rl.AuthLimiterCount() != 0 {
		t.Errorf("AuthLimiterCount() = %d, want 0 after cleanup", rl.AuthLimiterCount())
	}
}
