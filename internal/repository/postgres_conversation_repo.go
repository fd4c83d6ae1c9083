package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kaiwa/internal/model"
)

// PostgresConversationRepo はPostgreSQLを使用した会話リポジトリ。
type PostgresConversationRepo struct {
	db *sql.DB
}

// NewPostgresConversationRepo はPostgresConversationRepoを生成する。
func NewPostgresConversationRepo(db *sql.DB) *PostgresConversationRepo {
	return &PostgresConversationRepo{db: db}
}

// FindByID は指定IDの会話を取得する。見つからない場合はnilを返す。
func (r *PostgresConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	conv := &model.Conversation{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, member_low, member_high, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&conv.ID, &conv.MemberLow, &conv.MemberHigh, &conv.CreatedAt, &conv.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation by ID: %w", err)
	}

	return conv, nil
}

// FindByMemberPair は正規化済みメンバーペアで会話を検索する。見つからない場合はnilを返す。
func (r *PostgresConversationRepo) FindByMemberPair(ctx context.Context, memberLow, memberHigh string) (*model.Conversation, error) {
	conv := &model.Conversation{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, member_low, member_high, created_at, updated_at
		 FROM conversations WHERE member_low = $1 AND member_high = $2`,
		memberLow, memberHigh,
	).Scan(&conv.ID, &conv.MemberLow, &conv.MemberHigh, &conv.CreatedAt, &conv.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation by member pair: %w", err)
	}

	return conv, nil
}

// Create は会話を作成する。
// 同一ペアの同時作成はUNIQUE制約で拒否され、IsUniqueViolationで判定できるエラーを返す。
func (r *PostgresConversationRepo) Create(ctx context.Context, conversation *model.Conversation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, member_low, member_high, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		conversation.ID, conversation.MemberLow, conversation.MemberHigh,
		conversation.CreatedAt, conversation.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("duplicate conversation pair: %w", err)
		}
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	return nil
}

// ListByMemberWithDetails は指定ユーザーがメンバーである会話を
// 相手プロフィールと最新メッセージ付きでupdated_at降順に取得する。
func (r *PostgresConversationRepo) ListByMemberWithDetails(ctx context.Context, userID string) ([]ConversationWithDetails, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT
		     c.id, c.member_low, c.member_high, c.created_at, c.updated_at,
		     u.id, u.username, u.email, u.avatar_url,
		     m.sender_id, m.body, m.created_at
		 FROM conversations c
		 JOIN users u
		     ON u.id = CASE WHEN c.member_low = $1 THEN c.member_high ELSE c.member_low END
		 LEFT JOIN LATERAL (
		     SELECT sender_id, body, created_at
		     FROM messages
		     WHERE conversation_id = c.id
		     ORDER BY created_at DESC, seq DESC
		     LIMIT 1
		 ) m ON true
		 WHERE c.member_low = $1 OR c.member_high = $1
		 ORDER BY c.updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	results := []ConversationWithDetails{}
	for rows.Next() {
		var d ConversationWithDetails
		if err := rows.Scan(
			&d.ID, &d.MemberLow, &d.MemberHigh, &d.CreatedAt, &d.UpdatedAt,
			&d.PeerID, &d.PeerUsername, &d.PeerEmail, &d.PeerAvatarURL,
			&d.LastSenderID, &d.LastBody, &d.LastMessageSentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}

	return results, nil
}

// compile-time interface check
var _ ConversationRepository = (*PostgresConversationRepo)(nil)
