package realtime

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/kaiwa/internal/model"
)

func TestEncodeMessageEvent(t *testing.T) {
	sentAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	msg := &model.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "u1",
		Body:           "こんにちは",
		Seq:            42,
		CreatedAt:      sentAt,
	}

	data, err := EncodeMessageEvent(msg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var event ServerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.Type != EventTypeMessage {
		t.Errorf("type = %q, want %q", event.Type, EventTypeMessage)
	}
	if event.Message == nil {
		t.Fatal("expected message payload")
	}
	if event.Message.ID != "msg-1" || event.Message.Seq != 42 {
		t.Errorf("payload = %+v, want id=msg-1 seq=42", event.Message)
	}
	if !event.Message.CreatedAt.Equal(sentAt) {
		t.Errorf("created_at = %v, want %v", event.Message.CreatedAt, sentAt)
	}
	if event.Error != nil {
		t.Error("message event should not carry an error payload")
	}
}

func TestEncodeErrorEvent_APIError(t *testing.T) {
	data := EncodeErrorEvent(model.NewEmptyMessageError())

	var event ServerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.Type != EventTypeError {
		t.Errorf("type = %q, want %q", event.Type, EventTypeError)
	}
	if event.Error == nil {
		t.Fatal("expected error payload")
	}
	if event.Error.Code != model.ErrCodeEmptyMessage {
		t.Errorf("code = %q, want %q", event.Error.Code, model.ErrCodeEmptyMessage)
	}
	if event.Error.Category != "validation" {
		t.Errorf("category = %q, want validation", event.Error.Category)
	}
}

// TestEncodeErrorEvent_InternalErrorIsOpaque は内部エラーの詳細が
// クライアントに漏れないことを検証する。
func TestEncodeErrorEvent_InternalErrorIsOpaque(t *testing.T) {
	data := EncodeErrorEvent(errors.New("pq: connection refused at 10.0.0.5"))

	var event ServerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.Error == nil {
		t.Fatal("expected error payload")
	}
	if event.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", event.Error.Code)
	}
	if event.Error.Category != "system" {
		t.Errorf("category = %q, want system", event.Error.Category)
	}
	if event.Error.Message == "pq: connection refused at 10.0.0.5" {
		t.Error("internal error detail must not be exposed to the client")
	}
}

func TestEncodeErrorEvent_WrappedAPIError(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), model.NewNotConversationMemberError("conv-1"))

	data := EncodeErrorEvent(wrapped)

	var event ServerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.Error == nil {
		t.Fatal("expected error payload")
	}
	if event.Error.Code != model.ErrCodeNotConversationMember {
		t.Errorf("code = %q, want %q", event.Error.Code, model.ErrCodeNotConversationMember)
	}
}
