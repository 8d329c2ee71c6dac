package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/salonlink/internal/middleware"
	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/stylist"
)

// maxBodySize はリクエストボディの最大サイズ。
const maxBodySize = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをdstにデコードする。
// 失敗した場合は400レスポンスを書き込み、falseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError())
		return false
	}
	return true
}

// handleServiceError はサービス層のエラーを適切なHTTPレスポンスに変換する。
// APIError以外のエラーは詳細をログに記録し、500として扱う。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// actorFromRequest は認証・ロール解決済みのリクエストから操作者を取り出す。
func actorFromRequest(r *http.Request) (stylist.Actor, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return stylist.Actor{}, false
	}
	resolved, ok := middleware.RoleFromContext(r.Context())
	if !ok {
		resolved = model.RoleClient
	}
	return stylist.Actor{UserID: userID, Role: resolved}, true
}
