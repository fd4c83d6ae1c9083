// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/kaiwa/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（小文字正規化済み）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// username/emailの一意制約違反はIsUniqueViolationで判定可能なエラーを返す。
	Create(ctx context.Context, user *model.User) error
}

// ConversationRepository は会話データの永続化インターフェース。
type ConversationRepository interface {
	// FindByID は指定IDの会話を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Conversation, error)

	// FindByMemberPair は正規化済みメンバーペアで会話を検索する。
	// 見つからない場合はnilを返す。
	FindByMemberPair(ctx context.Context, memberLow, memberHigh string) (*model.Conversation, error)

	// Create は会話を作成する。
	// 同一ペアの同時作成競合はIsUniqueViolationで判定可能なエラーを返す。
	Create(ctx context.Context, conversation *model.Conversation) error

	// ListByMemberWithDetails は指定ユーザーがメンバーである会話を
	// 相手プロフィールと最新メッセージ付きで取得する。
	// updated_at降順（最近アクティブな順）で返す。会話がない場合は空スライスを返す。
	ListByMemberWithDetails(ctx context.Context, userID string) ([]ConversationWithDetails, error)
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Append はメッセージを永続化し、同一トランザクションで
	// 会話のupdated_at（最終アクティビティ）を更新する。
	// created_atとseqはサーバー側で採番され、永続化後の値がmessageに書き戻される。
	Append(ctx context.Context, message *model.Message) error

	// ListByConversation は会話の全メッセージを(created_at, seq)昇順で返す。
	// メッセージがない場合および会話が存在しない場合は空スライスを返す
	// （両者を区別しない）。
	ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error)

	// DeleteByConversation は会話の全メッセージを削除し、削除件数を返す。
	// 冪等: 既に空の会話に対しては0を返して成功する。
	DeleteByConversation(ctx context.Context, conversationID string) (int64, error)
}

// ConversationWithDetails は会話と相手プロフィール、最新メッセージを結合した構造体。
type ConversationWithDetails struct {
	model.Conversation
	PeerID            string
	PeerUsername      string
	PeerEmail         string
	PeerAvatarURL     string
	LastSenderID      *string
	LastBody          *string
	LastMessageSentAt *time.Time
}
