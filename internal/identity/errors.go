package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hitoshi/salonlink/internal/model"
)

// errorBody はGoTrueのエラーレスポンス。APIバージョンにより2種類の形式がある。
type errorBody struct {
	Code             int    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// translateError はGoTrueのエラーレスポンスをmodel.APIErrorに変換する。
// 生のレスポンスはこの境界より外へ渡さない。
func translateError(status int, body []byte) *model.APIError {
	var b errorBody
	_ = json.Unmarshal(body, &b)

	code := b.ErrorCode
	if code == "" {
		code = b.Error
	}
	text := b.text()
	lower := strings.ToLower(text)

	switch {
	case code == "invalid_credentials" || (code == "invalid_grant" && strings.Contains(lower, "credentials")):
		return model.NewInvalidCredentialsError()
	case code == "email_not_confirmed" || strings.Contains(lower, "email not confirmed"):
		return model.NewEmailNotConfirmedError()
	case code == "user_already_exists" || code == "email_exists" || strings.Contains(lower, "already registered"):
		return model.NewUserExistsError()
	case code == "weak_password":
		return model.NewValidationError("password", text)
	case code == "otp_expired" || code == "otp_disabled":
		return model.NewValidationError("token", "has expired or is invalid")
	case code == "validation_failed" || code == "email_address_invalid":
		return model.NewValidationError("email", text)
	case code == "over_request_rate_limit" || code == "over_email_send_rate_limit" || status == http.StatusTooManyRequests:
		return model.NewRateLimitedError()
	case code == "invalid_grant" || code == "refresh_token_not_found" || code == "session_not_found" || code == "bad_jwt":
		return model.NewUnauthorizedError()
	case status == http.StatusUnauthorized:
		return model.NewUnauthorizedError()
	case status == http.StatusForbidden:
		return model.NewForbiddenError()
	case status >= 500:
		return model.NewBackendUnavailableError(http.StatusText(status))
	default:
		if text == "" {
			text = http.StatusText(status)
		}
		return model.NewValidationError("request", text)
	}
}
