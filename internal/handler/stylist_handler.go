package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/salonlink/internal/middleware"
	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/stylist"
)

// StylistServiceInterface はスタイリストハンドラーが必要とするサービスインターフェース。
type StylistServiceInterface interface {
	Get(ctx context.Context, id string) (*model.StylistProfile, error)
	GetByUser(ctx context.Context, userID string) (*model.StylistProfile, error)
	Create(ctx context.Context, actor stylist.Actor, in model.StylistInput) (*model.StylistProfile, error)
	Update(ctx context.Context, actor stylist.Actor, id string, in model.StylistInput) (*model.StylistProfile, error)
	Delete(ctx context.Context, id string) error
	ListServices(ctx context.Context, stylistID string) ([]*model.Service, error)
	CreateService(ctx context.Context, actor stylist.Actor, in model.NewServiceInput) (*model.Service, error)
	UpdateService(ctx context.Context, actor stylist.Actor, id string, in model.ServiceInput) (*model.Service, error)
	DeleteService(ctx context.Context, actor stylist.Actor, id string) error
}

// StylistHandler はスタイリストとメニューのHTTPハンドラー。
type StylistHandler struct {
	service StylistServiceInterface
	logger  *slog.Logger
}

// NewStylistHandler はStylistHandlerを生成する。
func NewStylistHandler(service StylistServiceInterface, logger *slog.Logger) *StylistHandler {
	return &StylistHandler{service: service, logger: logger}
}

// GetStylist はスタイリストの掲載情報を返す。
// GET /api/stylists/{id}
func (h *StylistHandler) GetStylist(w http.ResponseWriter, r *http.Request) {
	sp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// GetStylistByUser はユーザーIDに紐付く掲載情報を返す。
// GET /api/stylists/by-user/{userID}
func (h *StylistHandler) GetStylistByUser(w http.ResponseWriter, r *http.Request) {
	sp, err := h.service.GetByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// ListServices はスタイリストのメニュー一覧を返す。
// GET /api/stylists/{id}/services
func (h *StylistHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListServices(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateStylist は掲載情報を作成する。
// POST /api/stylists
func (h *StylistHandler) CreateStylist(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	var in model.StylistInput
	if !decodeJSON(w, r, &in) {
		return
	}

	sp, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// UpdateStylist は掲載情報を更新する。
// PUT /api/stylists/{id}
func (h *StylistHandler) UpdateStylist(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	var in model.StylistInput
	if !decodeJSON(w, r, &in) {
		return
	}

	sp, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// DeleteStylist は掲載情報を削除する。管理者専用。
// DELETE /api/stylists/{id}
func (h *StylistHandler) DeleteStylist(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateService はメニューを作成する。
// POST /api/services
func (h *StylistHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	var in model.NewServiceInput
	if !decodeJSON(w, r, &in) {
		return
	}

	svc, err := h.service.CreateService(r.Context(), actor, in)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

// UpdateService はメニューを更新する。
// PUT /api/services/{id}
func (h *StylistHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	var in model.ServiceInput
	if !decodeJSON(w, r, &in) {
		return
	}

	svc, err := h.service.UpdateService(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

// DeleteService はメニューを削除する。
// DELETE /api/services/{id}
func (h *StylistHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	if err := h.service.DeleteService(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
