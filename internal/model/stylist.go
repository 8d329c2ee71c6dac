package model

import "time"

// DefaultBusinessName はメタデータに店舗名がない場合に使用するプレースホルダー。
const DefaultBusinessName = "My Salon"

// StylistProfile はrole=stylistのUserProfileに1対1で紐付く掲載情報を表す。
type StylistProfile struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	BusinessName string    `json:"business_name"`
	Location     string    `json:"location"`
	Bio          string    `json:"bio"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone"`
	WebsiteURL   string    `json:"website_url"`
	Specialties  []string  `json:"specialties"`
	RatingAvg    float64   `json:"rating_avg"`
	RatingCount  int       `json:"rating_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Service はスタイリストが提供するメニューを表す。
// 価格は最小通貨単位の整数で保持する。
type Service struct {
	ID              string    `json:"id"`
	StylistID       string    `json:"stylist_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Price           int64     `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StylistInput はスタイリストプロフィールの作成・更新入力。
// UserIDは管理者が他ユーザーの掲載情報を作成する場合のみ指定する。
type StylistInput struct {
	UserID       string   `json:"user_id,omitempty" validate:"omitempty,uuid"`
	BusinessName string   `json:"business_name" validate:"required,max=120"`
	Location     string   `json:"location" validate:"max=120"`
	Bio          string   `json:"bio" validate:"max=4000"`
	ContactEmail string   `json:"contact_email" validate:"omitempty,email"`
	ContactPhone string   `json:"contact_phone" validate:"max=40"`
	WebsiteURL   string   `json:"website_url" validate:"omitempty,http_url"`
	Specialties  []string `json:"specialties" validate:"max=20,dive,required,max=40"`
}

// ServiceInput はメニューの更新入力。価格は最小通貨単位。
type ServiceInput struct {
	Name            string `json:"name" validate:"required,max=120"`
	Description     string `json:"description" validate:"max=2000"`
	Price           int64  `json:"price" validate:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gte=5,lte=600"`
}

// NewServiceInput はメニューの作成入力。
type NewServiceInput struct {
	StylistID string `json:"stylist_id" validate:"required,uuid"`
	ServiceInput
}

// AccountRequest は管理者によるアカウント作成入力。
type AccountRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6,max=72"`
	Role         Role   `json:"role" validate:"required,oneof=client stylist admin"`
	FullName     string `json:"full_name" validate:"required,max=120"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,max=40"`
	BusinessName string `json:"business_name,omitempty" validate:"omitempty,max=120"`
}

// Metadata はIdPへ渡すユーザーメタデータを組み立てる。空の項目は含めない。
func (r AccountRequest) Metadata() map[string]any {
	return SignUpRequest{
		Role:         r.Role,
		FullName:     r.FullName,
		Phone:        r.Phone,
		BusinessName: r.BusinessName,
	}.Metadata()
}
