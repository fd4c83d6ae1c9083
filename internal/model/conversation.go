// Package model はドメインモデルを定義する。
package model

import "time"

// Conversation は2者間の会話を表す。
// メンバーペアは正規化して保持する（MemberLow < MemberHigh）。
// 正規化ペアに対するUNIQUE制約により、同一ペアの会話は高々1件となる。
// メンバーは作成後に変更されない。会話レコード自体は削除されない。
type Conversation struct {
	ID         string
	MemberLow  string
	MemberHigh string
	CreatedAt  time.Time
	UpdatedAt  time.Time // 最終アクティビティ日時。メッセージ追加のたびに更新される。
}

// HasMember は指定ユーザーが会話のメンバーかどうかを返す。
func (c *Conversation) HasMember(userID string) bool {
	return userID != "" && (userID == c.MemberLow || userID == c.MemberHigh)
}

// OtherMember は指定ユーザーから見た相手メンバーのIDを返す。
// 指定ユーザーがメンバーでない場合は空文字列を返す。
func (c *Conversation) OtherMember(userID string) string {
	switch userID {
	case c.MemberLow:
		return c.MemberHigh
	case c.MemberHigh:
		return c.MemberLow
	default:
		return ""
	}
}

// NormalizeMemberPair はメンバーペアを辞書順に正規化する。
// (A,B)と(B,A)が同じ保存形式になることを保証する。
func NormalizeMemberPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}

// ConversationSummary は会話一覧用に相手プロフィールと
// 最新メッセージのプレビューを結合したモデル。
type ConversationSummary struct {
	Conversation
	Peer        PublicProfile
	LastMessage *MessagePreview
}

// MessagePreview は会話一覧に表示する最新メッセージの要約。
type MessagePreview struct {
	SenderID  string
	Body      string
	CreatedAt time.Time
}
