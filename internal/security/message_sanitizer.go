// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MessageSanitizerService はチャットメッセージ本文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// メッセージはプレーンテキストとして扱うため、bluemondayの
// StrictPolicyで全てのHTMLタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizerService はメッセージ本文のサニタイズ機能のインターフェースを定義する。
// メッセージの保存前に使用される。
type MessageSanitizerService interface {
	// Sanitize はメッセージ本文から全てのHTMLマークアップを除去し、
	// 前後の空白を取り除いたプレーンテキストを返す。
	// HTMLエンティティはデコードされるため、"<b>hi</b>" は "hi" になる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(body string) string
}

// messageSanitizer はMessageSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type messageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのタグと属性を除去し、テキストのみを残す。
func NewMessageSanitizer() *messageSanitizer {
	return &messageSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はメッセージ本文をサニタイズしてプレーンテキストを返す。
func (s *messageSanitizer) Sanitize(body string) string {
	stripped := s.policy.Sanitize(body)
	// StrictPolicyは残ったテキストをエスケープするため、
	// 保存・配信時のプレーンテキスト表現に戻す。
	return strings.TrimSpace(html.UnescapeString(stripped))
}
