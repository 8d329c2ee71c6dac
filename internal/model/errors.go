// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrNotFound はリポジトリ・テーブル層で対象レコードが存在しないことを表す。
var ErrNotFound = errors.New("record not found")

// ErrDuplicate は一意制約違反を表す。プロフィール自動作成の競合判定に使用する。
var ErrDuplicate = errors.New("duplicate key")

// ErrorKind はエラーの分類を表す。
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindTransient     ErrorKind = "transient"
	KindValidation    ErrorKind = "validation"
	KindAuth          ErrorKind = "auth"
	KindForbidden     ErrorKind = "forbidden"
)

// APIError は統一エラーフォーマットを表す。
// 外部サービスの生エラーは境界で必ずこの形に変換し、UI・CLI・HTTPレスポンスにはこれだけを渡す。
type APIError struct {
	Code        string    // エラーコード
	Message     string    // エラーメッセージ
	Category    string    // カテゴリ: auth, validation, profile, stylist, system
	Action      string    // ユーザー向け対処方法
	Kind        ErrorKind // 分類
	Recoverable bool      // 再試行で解決しうるか
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// AsAPIError はerrから*APIErrorを取り出す。見つからない場合はnilを返す。
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// 定義済みエラーコード
const (
	ErrCodeMissingConfig      = "MISSING_CONFIG"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed  = "EMAIL_NOT_CONFIRMED"
	ErrCodeUserExists         = "USER_ALREADY_EXISTS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	ErrCodeStylistNotFound    = "STYLIST_NOT_FOUND"
	ErrCodeServiceNotFound    = "SERVICE_NOT_FOUND"
	ErrCodeStylistExists      = "STYLIST_ALREADY_EXISTS"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewConfigurationError は必須設定の欠落エラーを生成する。
func NewConfigurationError(missing []string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingConfig,
		Message:  fmt.Sprintf("required configuration is missing: %v", missing),
		Category: "system",
		Action:   "Set the listed environment variables and restart.",
		Kind:     KindConfiguration,
	}
}

// NewValidationError は入力値の検証エラーを生成する。ネットワーク呼び出し前に返す。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s: %s", field, reason),
		Category: "validation",
		Action:   "Check the highlighted field and try again.",
		Kind:     KindValidation,
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "the request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
		Kind:     KindValidation,
	}
}

// NewInvalidCredentialsError は認証情報の不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:        ErrCodeInvalidCredentials,
		Message:     "invalid email or password.",
		Category:    "auth",
		Action:      "Check your email and password and try again.",
		Kind:        KindAuth,
		Recoverable: true,
	}
}

// NewEmailNotConfirmedError はメール未確認エラーを生成する。
func NewEmailNotConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotConfirmed,
		Message:  "email address has not been confirmed.",
		Category: "auth",
		Action:   "Open the confirmation link or enter the code we emailed you.",
		Kind:     KindAuth,
	}
}

// NewUserExistsError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewUserExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  "an account with this email already exists.",
		Category: "auth",
		Action:   "Sign in instead, or reset your password.",
		Kind:     KindConflict,
	}
}

// NewUnauthorizedError は認証が必要なエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "authentication is required.",
		Category: "auth",
		Action:   "Sign in and try again.",
		Kind:     KindAuth,
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "you do not have permission to perform this action.",
		Category: "auth",
		Action:   "Go back to your own dashboard.",
		Kind:     KindForbidden,
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("profile not found: %s", userID),
		Category: "profile",
		Action:   "Check the user id.",
		Kind:     KindNotFound,
	}
}

// NewStylistNotFoundError はスタイリスト未検出エラーを生成する。
func NewStylistNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeStylistNotFound,
		Message:  fmt.Sprintf("stylist not found: %s", id),
		Category: "stylist",
		Action:   "Check the stylist id.",
		Kind:     KindNotFound,
	}
}

// NewServiceNotFoundError はメニュー未検出エラーを生成する。
func NewServiceNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeServiceNotFound,
		Message:  fmt.Sprintf("service not found: %s", id),
		Category: "stylist",
		Action:   "Check the service id.",
		Kind:     KindNotFound,
	}
}

// NewStylistExistsError は同一ユーザーのスタイリストプロフィール重複エラーを生成する。
func NewStylistExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeStylistExists,
		Message:  "a stylist profile already exists for this user.",
		Category: "stylist",
		Action:   "Update the existing stylist profile instead.",
		Kind:     KindConflict,
	}
}

// NewBackendUnavailableError はバックエンドの一時的な障害エラーを生成する。
func NewBackendUnavailableError(reason string) *APIError {
	return &APIError{
		Code:        ErrCodeBackendUnavailable,
		Message:     fmt.Sprintf("the backend could not complete the request: %s", reason),
		Category:    "system",
		Action:      "Please wait a moment and try again.",
		Kind:        KindTransient,
		Recoverable: true,
	}
}

// NewRateLimitedError はレート制限エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:        ErrCodeRateLimited,
		Message:     "too many requests.",
		Category:    "system",
		Action:      "Please wait and retry after the specified time.",
		Kind:        KindTransient,
		Recoverable: true,
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:        ErrCodeInternal,
		Message:     "an internal error occurred.",
		Category:    "system",
		Action:      "Please wait a moment and try again.",
		Kind:        KindTransient,
		Recoverable: true,
	}
}
