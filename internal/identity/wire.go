package identity

import (
	"time"

	"github.com/hitoshi/salonlink/internal/model"
)

// userJSON はGoTrueのユーザー表現。
type userJSON struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (u *userJSON) toModel() *model.AuthUser {
	if u == nil || u.ID == "" {
		return nil
	}
	return &model.AuthUser{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: u.EmailConfirmedAt,
		Metadata:         u.UserMetadata,
		AppMetadata:      u.AppMetadata,
		CreatedAt:        u.CreatedAt,
	}
}

func userFromModel(u *model.AuthUser) *userJSON {
	if u == nil {
		return nil
	}
	return &userJSON{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: u.EmailConfirmedAt,
		UserMetadata:     u.Metadata,
		AppMetadata:      u.AppMetadata,
		CreatedAt:        u.CreatedAt,
	}
}

// sessionJSON はトークンエンドポイントのレスポンスであり、セッション保存形式でもある。
type sessionJSON struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	ExpiresAt    int64     `json:"expires_at,omitempty"`
	RefreshToken string    `json:"refresh_token"`
	User         *userJSON `json:"user,omitempty"`
}

// toModel はセッションに変換する。expires_atがない場合はnowとexpires_inから算出する。
func (s *sessionJSON) toModel(now time.Time) *model.Session {
	if s == nil || s.AccessToken == "" {
		return nil
	}
	var expiresAt time.Time
	switch {
	case s.ExpiresAt > 0:
		expiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return &model.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresAt:    expiresAt,
		User:         s.User.toModel(),
	}
}

func sessionFromModel(s *model.Session) *sessionJSON {
	if s == nil {
		return nil
	}
	out := &sessionJSON{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		User:         userFromModel(s.User),
	}
	if !s.ExpiresAt.IsZero() {
		out.ExpiresAt = s.ExpiresAt.Unix()
	}
	return out
}
