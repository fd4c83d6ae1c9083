package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kaiwa/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Append はメッセージを永続化し、同一トランザクションで会話の
// updated_at（最終アクティビティ）をメッセージの作成時刻に更新する。
// created_atとseqはDB側で採番し、永続化後の値をmessageに書き戻す。
func (r *PostgresMessageRepo) Append(ctx context.Context, message *model.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, body)
		 VALUES ($1, $2, $3, $4)
		 RETURNING seq, created_at`,
		message.ID, message.ConversationID, message.SenderID, message.Body,
	).Scan(&message.Seq, &message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	// 会話の最終アクティビティを更新
	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
		message.CreatedAt, message.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump conversation activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByConversation は会話の全メッセージを(created_at, seq)昇順で返す。
// 会話が存在しない場合もエラーにせず空スライスを返す。
func (r *PostgresMessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_id, body, seq, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC, seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		msg := &model.Message{}
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.Seq, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	return messages, nil
}

// DeleteByConversation は会話の全メッセージを削除し、削除件数を返す。
// 物理削除であり復元はできない。冪等: 既に空の場合は0を返す。
func (r *PostgresMessageRepo) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = $1`,
		conversationID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
