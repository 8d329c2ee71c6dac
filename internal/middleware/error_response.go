package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/role"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法、ロック時のナビゲーションを含む。
type ErrorResponseBody struct {
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Category    string        `json:"category"`
	Action      string        `json:"action"`
	Recoverable bool          `json:"recoverable"`
	Actions     []role.Action `json:"actions,omitempty"`
}

// StatusForError はAPIErrorの分類に対応するHTTPステータスコードを返す。
func StatusForError(apiErr *model.APIError) int {
	switch apiErr.Kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindAuth:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	}
	if apiErr.Code == model.ErrCodeRateLimited {
		return http.StatusTooManyRequests
	}
	if apiErr.Code == model.ErrCodeBackendUnavailable {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError, actions ...role.Action) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:        apiErr.Code,
		Message:     apiErr.Message,
		Category:    apiErr.Category,
		Action:      apiErr.Action,
		Recoverable: apiErr.Recoverable,
		Actions:     actions,
	})
}

// WriteAPIError はAPIErrorの分類からステータスコードを決めて書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForError(apiErr), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
