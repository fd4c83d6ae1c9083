package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/kaiwa/internal/auth"
	"github.com/hitoshi/kaiwa/internal/metrics"
)

// SendLimiter はメッセージ送信のレート制限判定を行う。
// middleware.RateLimiterが実装する。
type SendLimiter interface {
	AllowSend(userID string) bool
}

// WSHandler はWebSocket接続の受け入れとイベントループを担う。
//
// ブラウザのWebSocket APIはAuthorizationヘッダーを設定できないため、
// 認証トークンはクエリパラメータ（?token=...）で受け取る。
// トークン検証はアップグレード前に行い、無効な場合は401を返す。
type WSHandler struct {
	issuer        *auth.TokenIssuer
	registry      *Registry
	broker        *Broker
	limiter       SendLimiter
	collector     metrics.MetricsCollector
	sessionConfig SessionConfig
	maxFrameLen   int64
	upgrader      websocket.Upgrader
}

// NewWSHandler はWSHandlerの新しいインスタンスを生成する。
// allowedOriginはブラウザクライアントのオリジン。同一オリジンの接続は常に許可する。
func NewWSHandler(
	issuer *auth.TokenIssuer,
	registry *Registry,
	broker *Broker,
	limiter SendLimiter,
	collector metrics.MetricsCollector,
	sessionConfig SessionConfig,
	maxFrameLen int64,
	allowedOrigin string,
) *WSHandler {
	return &WSHandler{
		issuer:        issuer,
		registry:      registry,
		broker:        broker,
		limiter:       limiter,
		collector:     collector,
		sessionConfig: sessionConfig,
		maxFrameLen:   maxFrameLen,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// ServeHTTP はGET /wsを処理する。
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.issuer.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeが失敗した場合はエラーレスポンス送信済み。
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sess := NewSession(claims.UserID, ws, h.sessionConfig)
	h.registry.Register(sess)
	sess.Start()
	h.collector.RecordWSConnect()

	slog.Info("websocket connected",
		slog.String("session_id", sess.ID()),
		slog.String("user_id", sess.UserID()),
	)

	h.readLoop(r, ws, sess)

	// 切断時: 参加中の全ルームから暗黙的に退室する。
	h.registry.Unregister(sess)
	sess.Close(websocket.CloseNormalClosure, "")
	h.collector.RecordWSDisconnect()

	slog.Info("websocket disconnected",
		slog.String("session_id", sess.ID()),
		slog.String("user_id", sess.UserID()),
	)
}

// readLoop はクライアントイベントを逐次処理する。
// セッションごとに単一のgoroutineで読み取るため、
// 同一クライアントのイベントは送信順に処理される。
func (h *WSHandler) readLoop(r *http.Request, ws *websocket.Conn, sess *Session) {
	pongWait := h.sessionConfig.PingPeriod + h.sessionConfig.WriteWait

	ws.SetReadLimit(h.maxFrameLen)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read error",
					slog.String("session_id", sess.ID()),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var event ClientEvent
		if err := json.Unmarshal(data, &event); err != nil {
			h.sendProtocolError(sess, "イベントのJSONを解釈できません。")
			continue
		}

		switch event.Type {
		case EventTypeJoin:
			h.broker.HandleJoin(r.Context(), sess, event.ConversationID)
		case EventTypeLeave:
			h.broker.HandleLeave(sess, event.ConversationID)
		case EventTypeSend:
			if !h.limiter.AllowSend(sess.UserID()) {
				h.sendRateLimitError(sess)
				continue
			}
			h.broker.HandleSend(r.Context(), sess, event.ConversationID, event.Text)
		default:
			h.sendProtocolError(sess, "未知のイベントタイプです: "+event.Type)
		}
	}
}

func (h *WSHandler) sendRateLimitError(sess *Session) {
	payload, err := json.Marshal(ServerEvent{
		Type: EventTypeError,
		Error: &ErrorPayload{
			Code:     "RATE_LIMIT_EXCEEDED",
			Message:  "メッセージの送信回数が上限を超えました。",
			Category: "system",
			Action:   "しばらく待ってから再送信してください。",
		},
	})
	if err != nil {
		return
	}
	_ = sess.Send(payload)
}

func (h *WSHandler) sendProtocolError(sess *Session, message string) {
	payload, err := json.Marshal(ServerEvent{
		Type: EventTypeError,
		Error: &ErrorPayload{
			Code:     "INVALID_EVENT",
			Message:  message,
			Category: "validation",
			Action:   "イベントの形式を確認してください。",
		},
	})
	if err != nil {
		return
	}
	_ = sess.Send(payload)
}
