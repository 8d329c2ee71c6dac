// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Role はユーザーの役割を表す。ダッシュボードと権限の切り替えに使用する。
type Role string

const (
	// RoleClient は予約・レビューを行う一般ユーザー。
	RoleClient Role = "client"
	// RoleStylist はサロン・スタイリストとして掲載されるユーザー。
	RoleStylist Role = "stylist"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// ParseRole は文字列をRoleに変換する。未知の値の場合はokにfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleClient:
		return RoleClient, true
	case RoleStylist:
		return RoleStylist, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// ユーザーメタデータのキー。サインアップ時にIdPへ渡し、プロフィール自動作成時に参照する。
const (
	MetaRole         = "role"
	MetaFullName     = "full_name"
	MetaPhone        = "phone"
	MetaBusinessName = "business_name"
	MetaLocation     = "location"
	MetaContactEmail = "contact_email"
	MetaContactPhone = "contact_phone"
)

// AuthUser は外部IdPが管理する認証ユーザーを表す。
// アプリケーションからは読み取り専用として扱う。
type AuthUser struct {
	ID               string
	Email            string
	EmailConfirmedAt *time.Time
	Metadata         map[string]any
	// AppMetadata はサービスロールのみが書き込めるメタデータ。ユーザー自身は変更できない。
	AppMetadata map[string]any
	CreatedAt   time.Time
}

// Meta はメタデータの文字列値を返す。存在しない場合や文字列でない場合は空文字列を返す。
func (u *AuthUser) Meta(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	v, ok := u.Metadata[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// MetadataRole はメタデータ上の暫定ロールを返す。未設定・未知の値は空文字列。
// adminはapp_metadataで付与されている場合のみ返す。user_metadataのadminはclientとして扱う。
func (u *AuthUser) MetadataRole() Role {
	if u.GrantedRole() == RoleAdmin {
		return RoleAdmin
	}
	r, ok := ParseRole(u.Meta(MetaRole))
	if !ok {
		return ""
	}
	if r == RoleAdmin {
		return RoleClient
	}
	return r
}

// GrantedRole はapp_metadataで付与されたロールを返す。未設定・未知の値は空文字列。
func (u *AuthUser) GrantedRole() Role {
	if u == nil || u.AppMetadata == nil {
		return ""
	}
	v, _ := u.AppMetadata[MetaRole].(string)
	r, ok := ParseRole(v)
	if !ok {
		return ""
	}
	return r
}

// Session はIdPが発行したログインセッションを表す。
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	User         *AuthUser
}

// Expired はセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}

// UserProfile はアプリケーション側のユーザープロフィール（profilesテーブル）を表す。
// IDはAuthUserのIDと一致する。
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
