// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証プロバイダーに登録されたアカウントを表す。
// PasswordHashはOAuthのみで作成されたユーザーでは空になる。
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EmailConfirmed はメールアドレスが確認済みかどうかを返す。
func (u *User) EmailConfirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// 認証プロバイダーが所有し、ゲート層はリクエスト単位の読み取り専用ビューとしてのみ保持する。
type Session struct {
	ID        string
	UserID    string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は指定時刻の時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// AuthTokenKind はメール経由で送付するワンタイムトークンの種別。
type AuthTokenKind string

const (
	// AuthTokenConfirmation はサインアップ時のメールアドレス確認用トークン。
	AuthTokenConfirmation AuthTokenKind = "confirmation"
	// AuthTokenRecovery はパスワード再設定用トークン。
	AuthTokenRecovery AuthTokenKind = "recovery"
)

// AuthToken はメール確認・パスワード再設定用のワンタイムトークンを表す。
// 平文トークンは保存せず、SHA-256ハッシュのみを保持する。
type AuthToken struct {
	ID        string
	UserID    string
	Kind      AuthTokenKind
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
