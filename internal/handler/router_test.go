package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kaiwa/internal/auth"
	"github.com/hitoshi/kaiwa/internal/logger"
	"github.com/hitoshi/kaiwa/internal/metrics"
	"github.com/hitoshi/kaiwa/internal/middleware"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.TokenIssuer) {
	t.Helper()

	issuer := auth.NewTokenIssuer("router-test-secret", time.Hour)
	reg := prometheus.NewRegistry()
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(120, 60))
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		TokenVerifier:       issuer,
		CORSAllowedOrigin:   "http://localhost:5173",
		RateLimiter:         rl,
		Logger:              logger.Setup(io.Discard),
		Metrics:             metrics.NewCollector(reg),
		Gatherer:            reg,
		AuthService:         &mockAuthService{},
		UserFinder:          &mockUserFinder{},
		ConversationService: &mockConversationService{},
		MessageService:      &mockMessageService{},
	}
	return NewRouter(deps), issuer
}

// TestRouter_PublicRoutes は認証不要ルートがトークンなしで到達できることを検証する。
func TestRouter_PublicRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		method string
		target string
		body   string
		want   int
	}{
		{http.MethodPost, "/api/auth/register", `{"username":"a","email":"a@example.com","password":"pw"}`, http.StatusCreated},
		{http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"pw"}`, http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			var req *http.Request
			if tc.body == "" {
				req = httptest.NewRequest(tc.method, tc.target, nil)
			} else {
				req = httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

// TestRouter_ProtectedRoutesRequireToken は保護ルートがトークンなしで401になることを検証する。
func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)

	targets := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/users/email/bob@example.com"},
		{http.MethodPost, "/api/conversations"},
		{http.MethodGet, "/api/conversations"},
		{http.MethodPost, "/api/messages"},
		{http.MethodGet, "/api/messages/conv-1"},
		{http.MethodDelete, "/api/messages/conv-1"},
	}

	for _, tc := range targets {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

// TestRouter_ProtectedRouteWithToken は有効なトークンで保護ルートに到達できることを検証する。
func TestRouter_ProtectedRouteWithToken(t *testing.T) {
	router, issuer := newTestRouter(t)

	token, err := issuer.Issue("u1")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// TestRouter_SendMessageEndToEnd は認証付きメッセージ送信が201になることを検証する。
func TestRouter_SendMessageEndToEnd(t *testing.T) {
	router, issuer := newTestRouter(t)

	token, err := issuer.Issue("u1")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	body := `{"conversation_id":"conv-1","text":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

// TestRouter_CORSHeadersApplied は全ルートにCORSヘッダーが付与されることを検証する。
func TestRouter_CORSHeadersApplied(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q, want configured origin", got)
	}
}
