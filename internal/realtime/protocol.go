package realtime

import (
	"encoding/json"
	"time"

	"github.com/hitoshi/kaiwa/internal/model"
)

// クライアントイベントのtype値。
const (
	EventTypeJoin  = "join"
	EventTypeLeave = "leave"
	EventTypeSend  = "send"
)

// サーバーイベントのtype値。
const (
	EventTypeMessage = "message"
	EventTypeError   = "error"
)

// ClientEvent はクライアントから受信するイベント。
// typeに応じてconversation_id（join/leave/send）とtext（sendのみ）を使用する。
type ClientEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text,omitempty"`
}

// MessagePayload は配信するメッセージ本体。
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	Seq            int64     `json:"seq"`
	CreatedAt      time.Time `json:"created_at"`
}

// ErrorPayload は送信者にのみ通知するエラー本体。
type ErrorPayload struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action,omitempty"`
}

// ServerEvent はサーバーからクライアントへ配信するイベント。
type ServerEvent struct {
	Type    string          `json:"type"`
	Message *MessagePayload `json:"message,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// EncodeMessageEvent は永続化済みメッセージをmessageイベントにエンコードする。
func EncodeMessageEvent(msg *model.Message) ([]byte, error) {
	return json.Marshal(ServerEvent{
		Type: EventTypeMessage,
		Message: &MessagePayload{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			Body:           msg.Body,
			Seq:            msg.Seq,
			CreatedAt:      msg.CreatedAt,
		},
	})
}

// EncodeErrorEvent はエラーをerrorイベントにエンコードする。
// APIErrorはコード・カテゴリをそのまま伝え、それ以外は内部エラーとして
// 詳細を伏せた汎用メッセージに変換する。
func EncodeErrorEvent(err error) []byte {
	payload := &ErrorPayload{
		Code:     "INTERNAL_ERROR",
		Message:  "サーバー内部でエラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再試行してください。",
	}
	if apiErr, ok := model.AsAPIError(err); ok {
		payload = &ErrorPayload{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		}
	}

	data, marshalErr := json.Marshal(ServerEvent{Type: EventTypeError, Error: payload})
	if marshalErr != nil {
		// ここに来るのはペイロードが不正な場合のみで、固定文字列なら必ず成功する。
		return []byte(`{"type":"error","error":{"code":"INTERNAL_ERROR","category":"system"}}`)
	}
	return data
}
