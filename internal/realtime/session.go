// Package realtime はWebSocketによるメッセージのリアルタイム配信を提供する。
//
// 1接続 = 1セッション。セッションはルーム（会話ID）への参加状態を持ち、
// 書き込みは専用のバッファ付きチャネルとwrite loopを通して直列化される。
// 受信はセッションごとに単一のread loopで逐次処理されるため、
// 同一送信者のイベント順序が保たれる。
package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrSessionClosed はクローズ済みセッションへの送信時に返される。
var ErrSessionClosed = errors.New("session closed")

// ClientSession は配信先セッションの抽象。
// RegistryとBrokerはこのインターフェースを通してセッションを扱う。
type ClientSession interface {
	// ID はセッションの一意識別子を返す。
	ID() string
	// UserID はこのセッションの認証済みユーザーIDを返す。
	UserID() string
	// Send はペイロードを配信キューに積む。
	// クローズ済み、またはバッファ超過の場合はエラーを返す。
	Send(payload []byte) error
	// Close はセッションを終了する。複数回呼び出しても安全。
	Close(code int, reason string)
}

// SessionConfig はセッションの動作パラメータ。
type SessionConfig struct {
	SendBuffer int           // 送信キューの容量
	PingPeriod time.Duration // pingフレームの送信間隔
	WriteWait  time.Duration // 書き込みタイムアウト
}

// Session はWebSocket接続をラップするClientSessionの実装。
// 書き込みはwrite loop経由でのみ行われるため並行使用に安全。
type Session struct {
	id     string
	userID string
	cfg    SessionConfig

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}
}

var _ ClientSession = (*Session)(nil)

// NewSession は指定ユーザーのSessionを生成する。
func NewSession(userID string, ws *websocket.Conn, cfg SessionConfig) *Session {
	return &Session{
		id:     uuid.New().String(),
		userID: userID,
		cfg:    cfg,
		ws:     ws,
		send:   make(chan []byte, cfg.SendBuffer),
		closed: make(chan struct{}),
	}
}

// ID はセッションの一意識別子を返す。
func (s *Session) ID() string {
	return s.id
}

// UserID はこのセッションの認証済みユーザーIDを返す。
func (s *Session) UserID() string {
	return s.userID
}

// Start はwrite loopを起動する。セッションごとに一度だけ呼び出すこと。
func (s *Session) Start() {
	go s.writeLoop()
}

// Send はペイロードを配信キューに積む。
// 受信側の消費が遅くバッファが溢れた場合は、バックプレッシャーを
// 有界に保つため接続をクローズしてエラーを返す。
func (s *Session) Send(payload []byte) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	case s.send <- payload:
		return nil
	default:
		s.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("send buffer exceeded")
	}
}

// Close はセッションを終了しwrite loopを停止する。
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		close(s.closed)
		deadline := time.Now().Add(s.cfg.WriteWait)
		_ = s.ws.SetWriteDeadline(deadline)
		_ = s.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = s.ws.Close()
	})
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case payload := <-s.send:
			if err := s.writeMessage(payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.writePing(); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeMessage(payload []byte) error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) writePing() error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.PingMessage, nil)
}
