// Package conversation は2者間会話のドメインロジックを提供する。
//
// 会話はメンバーペアの正規化（辞書順）とDBのUNIQUE制約により、
// 同一ペアに対して高々1件しか存在しない。FindOrCreateは
// 同時作成の競合を制約違反として検出し、勝者の会話を再取得して返す。
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kaiwa/internal/model"
	"github.com/hitoshi/kaiwa/internal/repository"
)

// Service は会話の作成・検索・一覧取得を提供する。
type Service struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(conversationRepo repository.ConversationRepository, userRepo repository.UserRepository) *Service {
	return &Service{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
	}
}

// FindOrCreate は指定ユーザーと相手の会話を取得し、存在しなければ作成する。
// 同一ペアに対して常に同一の会話を返す（冪等）。戻り値のcreatedは
// この呼び出しで新規作成した場合のみtrueとなる。
// 既存会話を返す場合、タイムスタンプ等は一切変更しない。
//
// エラー:
//   - requesterID == peerID の場合はSELF_CONVERSATION
//   - 相手ユーザーが存在しない場合はUSER_NOT_FOUND
func (s *Service) FindOrCreate(ctx context.Context, requesterID, peerID string) (conv *model.Conversation, created bool, err error) {
	if requesterID == peerID {
		return nil, false, model.NewSelfConversationError()
	}

	peer, err := s.userRepo.FindByID(ctx, peerID)
	if err != nil {
		return nil, false, fmt.Errorf("相手ユーザーの検索に失敗しました: %w", err)
	}
	if peer == nil {
		return nil, false, model.NewUserNotFoundError()
	}

	low, high := model.NormalizeMemberPair(requesterID, peerID)

	existing, err := s.conversationRepo.FindByMemberPair(ctx, low, high)
	if err != nil {
		return nil, false, fmt.Errorf("会話の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now()
	conv = &model.Conversation{
		ID:         uuid.New().String(),
		MemberLow:  low,
		MemberHigh: high,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.conversationRepo.Create(ctx, conv); err != nil {
		// 同時作成の競合: UNIQUE制約違反は他方が先に作成したことを意味する。
		// 勝者の会話を再取得して返す。
		if repository.IsUniqueViolation(err) {
			winner, findErr := s.conversationRepo.FindByMemberPair(ctx, low, high)
			if findErr != nil {
				return nil, false, fmt.Errorf("競合後の会話再取得に失敗しました: %w", findErr)
			}
			if winner == nil {
				return nil, false, model.NewConversationConflictError()
			}
			slog.Info("conversation create race resolved",
				slog.String("conversation_id", winner.ID),
			)
			return winner, false, nil
		}
		return nil, false, fmt.Errorf("会話の作成に失敗しました: %w", err)
	}

	slog.Info("conversation created",
		slog.String("conversation_id", conv.ID),
		slog.String("member_low", conv.MemberLow),
		slog.String("member_high", conv.MemberHigh),
	)

	return conv, true, nil
}

// Get は指定IDの会話を取得する。
// 会話が存在しない場合はCONVERSATION_NOT_FOUND、
// 要求者がメンバーでない場合はNOT_CONVERSATION_MEMBERを返す。
func (s *Service) Get(ctx context.Context, requesterID, conversationID string) (*model.Conversation, error) {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("会話の取得に失敗しました: %w", err)
	}
	if conv == nil {
		return nil, model.NewConversationNotFoundError(conversationID)
	}
	if !conv.HasMember(requesterID) {
		return nil, model.NewNotConversationMemberError(conversationID)
	}
	return conv, nil
}

// ListForMember は指定ユーザーがメンバーである全会話を、
// 相手プロフィールと最新メッセージ付きで最近アクティブな順に返す。
// 会話がない場合は空スライスを返す（エラーにしない）。
func (s *Service) ListForMember(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	details, err := s.conversationRepo.ListByMemberWithDetails(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("会話一覧の取得に失敗しました: %w", err)
	}

	summaries := make([]model.ConversationSummary, 0, len(details))
	for _, d := range details {
		summary := model.ConversationSummary{
			Conversation: d.Conversation,
			Peer: model.PublicProfile{
				ID:        d.PeerID,
				Username:  d.PeerUsername,
				Email:     d.PeerEmail,
				AvatarURL: d.PeerAvatarURL,
			},
		}
		if d.LastSenderID != nil && d.LastBody != nil && d.LastMessageSentAt != nil {
			summary.LastMessage = &model.MessagePreview{
				SenderID:  *d.LastSenderID,
				Body:      *d.LastBody,
				CreatedAt: *d.LastMessageSentAt,
			}
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}
