// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, chat, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
// APIErrorが含まれない場合はfalseを返す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// 定義済みエラーコード
const (
	ErrCodeSelfConversation      = "SELF_CONVERSATION"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeConversationNotFound  = "CONVERSATION_NOT_FOUND"
	ErrCodeNotConversationMember = "NOT_CONVERSATION_MEMBER"
	ErrCodeEmptyMessage          = "EMPTY_MESSAGE"
	ErrCodeMessageTooLong        = "MESSAGE_TOO_LONG"
	ErrCodeDuplicateUser         = "DUPLICATE_USER"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeConversationConflict  = "CONVERSATION_CONFLICT"
)

// NewSelfConversationError は自分自身との会話作成エラーを生成する。
func NewSelfConversationError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfConversation,
		Message:  "自分自身との会話は作成できません。",
		Category: "validation",
		Action:   "別のユーザーを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "chat",
		Action:   "ユーザーIDまたはメールアドレスを確認してください。",
	}
}

// NewConversationNotFoundError は会話が見つからない場合のエラーを生成する。
func NewConversationNotFoundError(conversationID string) *APIError {
	return &APIError{
		Code:     ErrCodeConversationNotFound,
		Message:  fmt.Sprintf("指定された会話が見つかりません: %s", conversationID),
		Category: "chat",
		Action:   "会話IDを確認してください。",
	}
}

// NewNotConversationMemberError は会話メンバーでないユーザーによる
// 操作を拒否するエラーを生成する。
func NewNotConversationMemberError(conversationID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotConversationMember,
		Message:  fmt.Sprintf("この会話のメンバーではありません: %s", conversationID),
		Category: "auth",
		Action:   "自分がメンバーである会話のみ操作できます。",
	}
}

// NewEmptyMessageError は空メッセージエラーを生成する。
func NewEmptyMessageError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyMessage,
		Message:  "メッセージ本文が空です。",
		Category: "validation",
		Action:   "本文を入力してから送信してください。",
	}
}

// NewMessageTooLongError はメッセージ長超過エラーを生成する。
func NewMessageTooLongError(maxLength int) *APIError {
	return &APIError{
		Code:     ErrCodeMessageTooLong,
		Message:  fmt.Sprintf("メッセージ本文が長すぎます（上限%d文字）。", maxLength),
		Category: "validation",
		Action:   "本文を短くしてから送信してください。",
	}
}

// NewDuplicateUserError はユーザー名またはメールアドレスの重複エラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "このユーザー名またはメールアドレスは既に使用されています。",
		Category: "validation",
		Action:   "別のユーザー名またはメールアドレスを指定してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// ユーザー不存在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewConversationConflictError は会話の同時作成競合が
// 再取得でも解消できなかった場合のエラーを生成する。
func NewConversationConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeConversationConflict,
		Message:  "会話の作成が競合しました。",
		Category: "chat",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
