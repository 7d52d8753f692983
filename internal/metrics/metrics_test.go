package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_RegistersMetrics はCollectorの全メトリクスが登録されることを検証する。
func TestNewCollector_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	if c == nil {
		t.Fatal("expected non-nil collector")
	}

	// 同じレジストリへの二重登録はpanicする
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

// TestHandler_ServesRecordedMetrics は記録したメトリクスがスクレイプ出力に現れることを検証する。
func TestHandler_ServesRecordedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)
	c.RecordRequestLatency(12 * time.Millisecond)
	c.RecordAuthSuccess()
	c.RecordAuthFailure()
	c.SetActiveSessions(3)
	c.RecordSweptSessions(5)

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	expectations := []string{
		`snapstash_http_status_total{status_code="200"} 2`,
		`snapstash_http_status_total{status_code="404"} 1`,
		`snapstash_auth_success_total 1`,
		`snapstash_auth_failure_total 1`,
		`snapstash_active_sessions 3`,
		`snapstash_swept_sessions_total 5`,
		`snapstash_request_latency_seconds_count 1`,
	}
	for _, want := range expectations {
		if !strings.Contains(output, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

// TestSetActiveSessions_Overwrites はゲージが最新値で上書きされることを検証する。
func TestSetActiveSessions_Overwrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetActiveSessions(10)
	c.SetActiveSessions(2)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "snapstash_active_sessions 2") {
		t.Error("gauge should hold the latest value")
	}
}
