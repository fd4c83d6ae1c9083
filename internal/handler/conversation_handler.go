package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/kaiwa/internal/middleware"
	"github.com/hitoshi/kaiwa/internal/model"
)

// ConversationServiceInterface は会話ハンドラーが必要とするサービスインターフェース。
type ConversationServiceInterface interface {
	// FindOrCreate は相手との会話を取得し、存在しなければ作成する。
	// 新規作成した場合のみcreatedがtrueになる。
	FindOrCreate(ctx context.Context, requesterID, peerID string) (conv *model.Conversation, created bool, err error)
	// ListForMember は自分がメンバーである会話の一覧を返す。
	ListForMember(ctx context.Context, userID string) ([]model.ConversationSummary, error)
}

// ConversationHandler は会話管理のHTTPハンドラー。
type ConversationHandler struct {
	service ConversationServiceInterface
}

// NewConversationHandler はConversationHandlerを生成する。
func NewConversationHandler(service ConversationServiceInterface) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// findOrCreateRequest は会話作成リクエストのボディ。
type findOrCreateRequest struct {
	PeerID string `json:"peer_id"`
}

// conversationResponse は会話のAPIレスポンス。
type conversationResponse struct {
	ID        string    `json:"id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// peerResponse は会話相手の公開プロフィール。
type peerResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// lastMessageResponse は会話一覧に表示する最新メッセージの要約。
type lastMessageResponse struct {
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// conversationSummaryResponse は会話一覧のAPIレスポンス。
type conversationSummaryResponse struct {
	conversationResponse
	Peer        peerResponse         `json:"peer"`
	LastMessage *lastMessageResponse `json:"last_message,omitempty"`
}

func toConversationResponse(c *model.Conversation) conversationResponse {
	return conversationResponse{
		ID:        c.ID,
		Members:   []string{c.MemberLow, c.MemberHigh},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toConversationSummaryResponse(s model.ConversationSummary) conversationSummaryResponse {
	resp := conversationSummaryResponse{
		conversationResponse: toConversationResponse(&s.Conversation),
		Peer: peerResponse{
			ID:        s.Peer.ID,
			Username:  s.Peer.Username,
			Email:     s.Peer.Email,
			AvatarURL: s.Peer.AvatarURL,
		},
	}
	if s.LastMessage != nil {
		resp.LastMessage = &lastMessageResponse{
			SenderID:  s.LastMessage.SenderID,
			Body:      s.LastMessage.Body,
			CreatedAt: s.LastMessage.CreatedAt,
		}
	}
	return resp
}

// FindOrCreate は相手との会話を取得または作成する。
// 同一ペアに対して常に同じ会話を返す（冪等）。
// 既存の会話は200、新規作成した会話は201で返す。
// POST /api/conversations
func (h *ConversationHandler) FindOrCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req findOrCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.PeerID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "相手ユーザーIDが指定されていません。",
			Category: "validation",
			Action:   "peer_idを指定してください。",
		})
		return
	}

	conv, created, err := h.service.FindOrCreate(r.Context(), userID, req.PeerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toConversationResponse(conv))
}

// List は自分がメンバーである会話の一覧を返す。
// 最近アクティブな順に並び、会話がない場合は空配列を返す。
// GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	summaries, err := h.service.ListForMember(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]conversationSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, toConversationSummaryResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}
