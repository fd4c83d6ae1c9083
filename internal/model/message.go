// Package model はドメインモデルを定義する。
package model

import "time"

// Message は会話に属する1件のメッセージを表す。
// 作成後は不変であり、削除は会話単位の一括削除のみ可能。
// Seqは挿入順に採番される連番で、CreatedAtが同時刻の場合の
// 全順序を保証するタイブレークとして使用する。
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Body           string
	Seq            int64
	CreatedAt      time.Time
}
