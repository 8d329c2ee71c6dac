package model

// 認証状態変化イベント名。IdPクライアントが購読者へ通知する。
const (
	AuthEventInitialSession   = "INITIAL_SESSION"
	AuthEventSignedIn         = "SIGNED_IN"
	AuthEventTokenRefreshed   = "TOKEN_REFRESHED"
	AuthEventSignedOut        = "SIGNED_OUT"
	AuthEventUserUpdated      = "USER_UPDATED"
	AuthEventPasswordRecovery = "PASSWORD_RECOVERY"
)

// AuthEvent はIdPクライアントが発行する認証状態変化の通知。
// SIGNED_OUTの場合、Sessionには破棄されたセッションが入る（不明な場合はnil）。
type AuthEvent struct {
	Name    string
	Session *Session
}

// SignUpRequest はサインアップ入力を表す。Role以外の任意項目はIdPのユーザーメタデータとして保存される。
type SignUpRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6,max=72"`
	Role         Role   `json:"role" validate:"required,oneof=client stylist"`
	FullName     string `json:"full_name" validate:"required,max=120"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,max=40"`
	BusinessName string `json:"business_name,omitempty" validate:"omitempty,max=120"`
	Location     string `json:"location,omitempty" validate:"omitempty,max=120"`
	ContactEmail string `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone string `json:"contact_phone,omitempty" validate:"omitempty,max=40"`
}

// Metadata はIdPへ渡すユーザーメタデータを組み立てる。空の項目は含めない。
func (r SignUpRequest) Metadata() map[string]any {
	m := map[string]any{
		MetaRole:     string(r.Role),
		MetaFullName: r.FullName,
	}
	set := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	set(MetaPhone, r.Phone)
	set(MetaBusinessName, r.BusinessName)
	set(MetaLocation, r.Location)
	set(MetaContactEmail, r.ContactEmail)
	set(MetaContactPhone, r.ContactPhone)
	return m
}

// Credentials はパスワードサインインの入力。
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// OTPRequest はメール確認コードの検証入力。
type OTPRequest struct {
	Email string `validate:"required,email"`
	Token string `validate:"required,numeric,len=6"`
}
