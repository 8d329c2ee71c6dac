package identity

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/salonlink/internal/model"
)

// AdminUserRequest は管理者APIでのユーザー作成入力。
type AdminUserRequest struct {
	Email    string
	Password string
	Metadata map[string]any
	// AppMetadata はユーザーが変更できないメタデータ。管理者ロールの付与に使用する。
	AppMetadata map[string]any
}

// Admin はサービスロールキーでGoTrueの管理者APIを利用するクライアント。サーバー側でのみ使用する。
type Admin struct {
	transport
}

// NewAdmin はAdminを生成する。
func NewAdmin(baseURL, serviceRoleKey string, httpClient *http.Client, logger *slog.Logger) *Admin {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{
		transport: transport{
			baseURL:    baseURL,
			apiKey:     serviceRoleKey,
			httpClient: httpClient,
			logger:     logger,
		},
	}
}

// CreateUser はメール確認済みのユーザーを作成する。
func (a *Admin) CreateUser(ctx context.Context, req AdminUserRequest) (*model.AuthUser, error) {
	body := map[string]any{
		"email":         req.Email,
		"password":      req.Password,
		"email_confirm": true,
		"user_metadata": req.Metadata,
	}
	if len(req.AppMetadata) > 0 {
		body["app_metadata"] = req.AppMetadata
	}
	var uj userJSON
	if _, err := a.do(ctx, http.MethodPost, "/admin/users", nil, body, "", &uj); err != nil {
		return nil, err
	}
	u := uj.toModel()
	if u == nil {
		return nil, model.NewBackendUnavailableError("the identity service returned no user")
	}
	a.logger.Info("管理者APIでユーザーを作成しました",
		slog.String("user_id", u.ID),
	)
	return u, nil
}

// DeleteUser はユーザーを削除する。存在しない場合もエラーにしない。
func (a *Admin) DeleteUser(ctx context.Context, id string) error {
	status, err := a.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil, "", nil)
	if err != nil && status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	a.logger.Info("管理者APIでユーザーを削除しました",
		slog.String("user_id", id),
	)
	return nil
}
