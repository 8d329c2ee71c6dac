package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/salonlink/internal/model"
)

// AccountServiceInterface はアカウント管理ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// Create は認証ユーザーとプロフィールを作成する。
	Create(ctx context.Context, req model.AccountRequest) (*model.UserProfile, error)
	// Delete はプロフィール、ストレージ上のファイル、認証ユーザーを削除する。
	Delete(ctx context.Context, userID string) error
}

// AccountHandler は管理者向けアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	logger  *slog.Logger
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{service: service, logger: logger}
}

// CreateAccount はアカウントを作成する。
// POST /api/admin/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req model.AccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// DeleteAccount はアカウントを削除する。
// DELETE /api/admin/accounts/{id}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
