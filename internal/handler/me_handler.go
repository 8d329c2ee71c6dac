package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/salonlink/internal/middleware"
	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/role"
)

// ProfileFetcher はプロフィール取得インターフェース。profile.Serviceが実装する。
// プロフィールが存在しない場合はIdPメタデータから作成する。
type ProfileFetcher interface {
	Fetch(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error)
}

// MeHandler は認証済みユーザー自身の情報を返すHTTPハンドラー。
type MeHandler struct {
	profiles ProfileFetcher
	logger   *slog.Logger
}

// NewMeHandler はMeHandlerを生成する。
func NewMeHandler(profiles ProfileFetcher, logger *slog.Logger) *MeHandler {
	return &MeHandler{profiles: profiles, logger: logger}
}

// meResponse はGET /api/meのレスポンス。
type meResponse struct {
	Profile       *model.UserProfile `json:"profile"`
	Role          model.Role         `json:"role"`
	DashboardPath string             `json:"dashboard_path"`
}

// Me はプロフィールと、ロールに応じたダッシュボードの遷移先を返す。
// GET /api/me
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	user := claims.User()
	p, err := h.profiles.Fetch(r.Context(), user)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resolved := role.Resolve(p, user)
	writeJSON(w, http.StatusOK, meResponse{
		Profile:       p,
		Role:          resolved,
		DashboardPath: role.DashboardPath(resolved),
	})
}
