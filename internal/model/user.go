// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはAPIレスポンスに含めてはならない。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicProfile はユーザーの公開プロフィールを表す。
// 会話一覧やディレクトリ検索のレスポンスで使用する。
type PublicProfile struct {
	ID        string
	Username  string
	Email     string
	AvatarURL string
}

// Public はUserから公開プロフィールを生成する。
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}
