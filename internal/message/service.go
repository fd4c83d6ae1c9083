// Package message はチャットメッセージのドメインロジックを提供する。
//
// メッセージは永続化されてから配信される（persist-before-broadcast）。
// このパッケージは永続化側を担い、配信はrealtimeパッケージが行う。
package message

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/kaiwa/internal/model"
	"github.com/hitoshi/kaiwa/internal/repository"
	"github.com/hitoshi/kaiwa/internal/security"
)

// Service はメッセージの永続化・取得・削除を提供する。
type Service struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	sanitizer        security.MessageSanitizerService
	maxLength        int
}

// NewService はServiceの新しいインスタンスを生成する。
// maxLengthはサニタイズ後の本文の最大文字数（rune数）。
func NewService(
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	sanitizer security.MessageSanitizerService,
	maxLength int,
) *Service {
	return &Service{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		sanitizer:        sanitizer,
		maxLength:        maxLength,
	}
}

// Append はメッセージをサニタイズ・検証して会話に永続化する。
// 永続化と同時に会話の最終アクティビティが更新される。
// 採番されたseqとcreated_atを含む永続化済みメッセージを返す。
//
// エラー:
//   - サニタイズ後の本文が空の場合はEMPTY_MESSAGE
//   - 本文がmaxLengthを超える場合はMESSAGE_TOO_LONG
//   - 会話が存在しない場合はCONVERSATION_NOT_FOUND
//   - 送信者が会話のメンバーでない場合はNOT_CONVERSATION_MEMBER
func (s *Service) Append(ctx context.Context, senderID, conversationID, body string) (*model.Message, error) {
	clean := s.sanitizer.Sanitize(body)
	if clean == "" {
		return nil, model.NewEmptyMessageError()
	}
	if utf8.RuneCountInString(clean) > s.maxLength {
		return nil, model.NewMessageTooLongError(s.maxLength)
	}

	if err := s.authorize(ctx, senderID, conversationID); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           clean,
	}

	if err := s.messageRepo.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("メッセージの保存に失敗しました: %w", err)
	}

	slog.Info("message persisted",
		slog.String("message_id", msg.ID),
		slog.String("conversation_id", conversationID),
		slog.Int64("seq", msg.Seq),
	)

	return msg, nil
}

// ListOrdered は会話の全メッセージを送信時刻昇順（同時刻はseq昇順）で返す。
// メッセージがない場合は空スライスを返す。
// 要求者が会話のメンバーでない場合はNOT_CONVERSATION_MEMBERを返す。
func (s *Service) ListOrdered(ctx context.Context, requesterID, conversationID string) ([]*model.Message, error) {
	if err := s.authorize(ctx, requesterID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	return messages, nil
}

// ClearAll は会話の全メッセージを削除し、削除件数を返す。
// 会話レコード自体は削除されない。冪等: 既に空の会話には0を返して成功する。
// 要求者が会話のメンバーでない場合はNOT_CONVERSATION_MEMBERを返す。
func (s *Service) ClearAll(ctx context.Context, requesterID, conversationID string) (int64, error) {
	if err := s.authorize(ctx, requesterID, conversationID); err != nil {
		return 0, err
	}

	count, err := s.messageRepo.DeleteByConversation(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("メッセージの削除に失敗しました: %w", err)
	}

	slog.Info("conversation cleared",
		slog.String("conversation_id", conversationID),
		slog.Int64("deleted", count),
	)

	return count, nil
}

// authorize は会話の存在と要求者のメンバーシップを検証する。
func (s *Service) authorize(ctx context.Context, userID, conversationID string) error {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("会話の取得に失敗しました: %w", err)
	}
	if conv == nil {
		return model.NewConversationNotFoundError(conversationID)
	}
	if !conv.HasMember(userID) {
		return model.NewNotConversationMemberError(conversationID)
	}
	return nil
}
