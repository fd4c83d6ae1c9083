package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kaiwa/internal/middleware"
	"github.com/hitoshi/kaiwa/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	// Append はメッセージを検証して会話に永続化する。
	Append(ctx context.Context, senderID, conversationID, body string) (*model.Message, error)
	// ListOrdered は会話の全メッセージを送信時刻昇順で返す。
	ListOrdered(ctx context.Context, requesterID, conversationID string) ([]*model.Message, error)
	// ClearAll は会話の全メッセージを削除し、削除件数を返す。
	ClearAll(ctx context.Context, requesterID, conversationID string) (int64, error)
}

// MessageBroadcaster は永続化済みメッセージのリアルタイム配信インターフェース。
// realtime.Registryが実装する。HTTP経由の送信でもWSルームに配信するために使用する。
type MessageBroadcaster interface {
	Broadcast(conversationID string, payload []byte) int
}

// MessageEventEncoder はメッセージをWS配信ペイロードにエンコードする関数型。
type MessageEventEncoder func(msg *model.Message) ([]byte, error)

// MessageHandler はメッセージ管理のHTTPハンドラー。
type MessageHandler struct {
	service     MessageServiceInterface
	broadcaster MessageBroadcaster
	encode      MessageEventEncoder
}

// NewMessageHandler はMessageHandlerを生成する。
// broadcasterがnilの場合、HTTP送信時のリアルタイム配信は行わない。
func NewMessageHandler(service MessageServiceInterface, broadcaster MessageBroadcaster, encode MessageEventEncoder) *MessageHandler {
	return &MessageHandler{
		service:     service,
		broadcaster: broadcaster,
		encode:      encode,
	}
}

// sendMessageRequest はメッセージ送信リクエストのボディ。
type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// messageResponse はメッセージのAPIレスポンス。
type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	Seq            int64     `json:"seq"`
	CreatedAt      time.Time `json:"created_at"`
}

// clearResponse はメッセージ全削除のAPIレスポンス。
type clearResponse struct {
	Deleted int64 `json:"deleted"`
}

func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		Seq:            m.Seq,
		CreatedAt:      m.CreatedAt,
	}
}

// Send はメッセージを永続化し、WS接続中の会話メンバーへも配信する。
// POST /api/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.ConversationID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "会話IDが指定されていません。",
			Category: "validation",
			Action:   "conversation_idを指定してください。",
		})
		return
	}

	msg, err := h.service.Append(r.Context(), userID, req.ConversationID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 永続化成功後にのみ配信する
	if h.broadcaster != nil && h.encode != nil {
		if payload, encErr := h.encode(msg); encErr == nil {
			h.broadcaster.Broadcast(msg.ConversationID, payload)
		}
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

// List は会話の全メッセージを送信時刻昇順で返す。
// GET /api/messages/{conversationID}
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	messages, err := h.service.ListOrdered(r.Context(), userID, conversationID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, toMessageResponse(m))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Clear は会話の全メッセージを削除する。会話自体は残る。
// DELETE /api/messages/{conversationID}
func (h *MessageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	deleted, err := h.service.ClearAll(r.Context(), userID, conversationID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, clearResponse{Deleted: deleted})
}
