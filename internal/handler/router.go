package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kaiwa/internal/metrics"
	"github.com/hitoshi/kaiwa/internal/middleware"
)

// HealthChecker はヘルスチェックで依存先の死活確認を行うインターフェース。
// *sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// サービス
	AuthService         AuthServiceInterface
	UserFinder          UserFinder
	ConversationService ConversationServiceInterface
	MessageService      MessageServiceInterface

	// リアルタイム配信（HTTP送信経路からのファンアウト用）
	Broadcaster   MessageBroadcaster
	EncodeMessage MessageEventEncoder

	// WebSocketエンドポイント
	WSHandler http.Handler

	// ヘルスチェック
	HealthChecker HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → [認証ルートのみ: Auth → RateLimit(General)]
//
// 登録・ログイン、/health、/metrics、/ws は認証ミドルウェアの外に配置する
// （/wsはクエリパラメータで独自に認証する）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserFinder)
	conversationHandler := NewConversationHandler(deps.ConversationService)
	messageHandler := NewMessageHandler(deps.MessageService, deps.Broadcaster, deps.EncodeMessage)

	// --- 認証不要のルート ---

	r.Post("/api/auth/register", authHandler.Register)
	r.Post("/api/auth/login", authHandler.Login)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// WebSocket接続（?token=で認証）
	if deps.WSHandler != nil {
		r.Handle("/ws", deps.WSHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/me", authHandler.Me)

		// ユーザーディレクトリ
		r.Get("/api/users/email/{email}", userHandler.FindByEmail)

		// 会話管理
		r.Route("/api/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.FindOrCreate)
			r.Get("/", conversationHandler.List)
		})

		// メッセージ管理
		r.Route("/api/messages", func(r chi.Router) {
			// POST /api/messages - 送信（送信専用レート制限を追加）
			r.With(deps.RateLimiter.MessageSendMiddleware()).Post("/", messageHandler.Send)

			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", messageHandler.List)
				r.Delete("/", messageHandler.Clear)
			})
		})
	})

	return r
}

// NewHealthHandler はヘルスチェックのHTTPハンドラーを返す。
// DBへの疎通が取れない場合は503を返す。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
