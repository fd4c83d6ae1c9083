package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kaiwa/internal/logger"
	"github.com/hitoshi/kaiwa/internal/metrics"
)

// TestLoggingMiddleware_EmitsStructuredLog はリクエストログの内容を検証する。
func TestLoggingMiddleware_EmitsStructuredLog(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Setup(&buf)
	collector := metrics.NewCollector(prometheus.NewRegistry())

	handler := NewLoggingMiddleware(log, collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v\nlog: %s", err, buf.String())
	}

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != "POST" {
		t.Errorf("method = %v, want POST", entry["method"])
	}
	if entry["path"] != "/api/messages" {
		t.Errorf("path = %v, want /api/messages", entry["path"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want 201", entry["status"])
	}
	if entry["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", entry["user_id"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected duration_ms in log entry")
	}
}

// TestLoggingMiddleware_ErrorLevelFor5xx は5xxレスポンスがERRORレベルで記録されることを検証する。
func TestLoggingMiddleware_ErrorLevelFor5xx(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Setup(&buf)
	collector := metrics.NewCollector(prometheus.NewRegistry())

	handler := NewLoggingMiddleware(log, collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
}

// TestLoggingMiddleware_RecordsHTTPStatusMetric はステータスコードメトリクスの記録を検証する。
func TestLoggingMiddleware_RecordsHTTPStatusMetric(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Setup(&buf)
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	handler := NewLoggingMiddleware(log, collector)(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "kaiwa_http_status_total" {
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 labeled series, got %d", len(mf.GetMetric()))
			}
			return
		}
	}
	t.Error("kaiwa_http_status_total metric not found")
}
