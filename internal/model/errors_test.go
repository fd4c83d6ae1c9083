package model

import (
	"errors"
	"strings"
	"testing"
)

// APIErrorがerrorインターフェースを満たすことを検証
func TestAPIError_ImplementsError(t *testing.T) {
	var err error = &APIError{Code: "TEST", Message: "テスト"}
	if !strings.Contains(err.Error(), "TEST") {
		t.Errorf("Error() = %q, want to contain %q", err.Error(), "TEST")
	}
}

// ラップされたAPIErrorがerrors.Asで取り出せることを検証
func TestAPIError_UnwrapsWithErrorsAs(t *testing.T) {
	inner := NewEmptyMessageError()
	wrapped := wrapf(inner)

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("expected errors.As to find APIError")
	}
	if apiErr.Code != ErrCodeEmptyMessage {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeEmptyMessage)
	}
}

func wrapf(err error) error {
	return errors.Join(errors.New("outer"), err)
}

func TestNewNotConversationMemberError_IncludesID(t *testing.T) {
	err := NewNotConversationMemberError("conv-1")
	if !strings.Contains(err.Message, "conv-1") {
		t.Errorf("Message = %q, want to contain conversation ID", err.Message)
	}
	if err.Category != "auth" {
		t.Errorf("Category = %q, want %q", err.Category, "auth")
	}
}

func TestNewMessageTooLongError_IncludesLimit(t *testing.T) {
	err := NewMessageTooLongError(4000)
	if !strings.Contains(err.Message, "4000") {
		t.Errorf("Message = %q, want to contain the limit", err.Message)
	}
}
