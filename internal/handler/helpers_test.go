package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/salonlink/internal/identity"
	"github.com/hitoshi/salonlink/internal/middleware"
	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/profile"
	"github.com/hitoshi/salonlink/internal/stylist"
)

// --- モック定義 ---

type mockProfileFetcher struct {
	fetchFn func(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error)
}

func (m *mockProfileFetcher) Fetch(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, user)
	}
	return &model.UserProfile{ID: user.ID, Role: model.RoleClient}, nil
}

// mockStylistService はStylistServiceInterfaceのモック実装。
type mockStylistService struct {
	getFn           func(ctx context.Context, id string) (*model.StylistProfile, error)
	getByUserFn     func(ctx context.Context, userID string) (*model.StylistProfile, error)
	createFn        func(ctx context.Context, actor stylist.Actor, in model.StylistInput) (*model.StylistProfile, error)
	updateFn        func(ctx context.Context, actor stylist.Actor, id string, in model.StylistInput) (*model.StylistProfile, error)
	deleteFn        func(ctx context.Context, id string) error
	listServicesFn  func(ctx context.Context, stylistID string) ([]*model.Service, error)
	createServiceFn func(ctx context.Context, actor stylist.Actor, in model.NewServiceInput) (*model.Service, error)
	updateServiceFn func(ctx context.Context, actor stylist.Actor, id string, in model.ServiceInput) (*model.Service, error)
	deleteServiceFn func(ctx context.Context, actor stylist.Actor, id string) error
}

func (m *mockStylistService) Get(ctx context.Context, id string) (*model.StylistProfile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.StylistProfile{ID: id}, nil
}

func (m *mockStylistService) GetByUser(ctx context.Context, userID string) (*model.StylistProfile, error) {
	if m.getByUserFn != nil {
		return m.getByUserFn(ctx, userID)
	}
	return &model.StylistProfile{UserID: userID}, nil
}

func (m *mockStylistService) Create(ctx context.Context, actor stylist.Actor, in model.StylistInput) (*model.StylistProfile, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return &model.StylistProfile{UserID: actor.UserID, BusinessName: in.BusinessName}, nil
}

func (m *mockStylistService) Update(ctx context.Context, actor stylist.Actor, id string, in model.StylistInput) (*model.StylistProfile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, id, in)
	}
	return &model.StylistProfile{ID: id, BusinessName: in.BusinessName}, nil
}

func (m *mockStylistService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockStylistService) ListServices(ctx context.Context, stylistID string) ([]*model.Service, error) {
	if m.listServicesFn != nil {
		return m.listServicesFn(ctx, stylistID)
	}
	return []*model.Service{}, nil
}

func (m *mockStylistService) CreateService(ctx context.Context, actor stylist.Actor, in model.NewServiceInput) (*model.Service, error) {
	if m.createServiceFn != nil {
		return m.createServiceFn(ctx, actor, in)
	}
	return &model.Service{StylistID: in.StylistID, Name: in.Name}, nil
}

func (m *mockStylistService) UpdateService(ctx context.Context, actor stylist.Actor, id string, in model.ServiceInput) (*model.Service, error) {
	if m.updateServiceFn != nil {
		return m.updateServiceFn(ctx, actor, id, in)
	}
	return &model.Service{ID: id, Name: in.Name}, nil
}

func (m *mockStylistService) DeleteService(ctx context.Context, actor stylist.Actor, id string) error {
	if m.deleteServiceFn != nil {
		return m.deleteServiceFn(ctx, actor, id)
	}
	return nil
}

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	createFn func(ctx context.Context, req model.AccountRequest) (*model.UserProfile, error)
	deleteFn func(ctx context.Context, userID string) error
}

func (m *mockAccountService) Create(ctx context.Context, req model.AccountRequest) (*model.UserProfile, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &model.UserProfile{ID: "new-user", Email: req.Email, Role: req.Role}, nil
}

func (m *mockAccountService) Delete(ctx context.Context, userID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID)
	}
	return nil
}

// tokenVerifier はトークン文字列をそのままユーザーIDとして扱う検証器。
type tokenVerifier struct {
	metadata map[string]map[string]any
}

func (v *tokenVerifier) Verify(ctx context.Context, raw string) (*identity.Claims, error) {
	if raw == "invalid" {
		return nil, model.NewUnauthorizedError()
	}
	return &identity.Claims{Subject: raw, UserMetadata: v.metadata[raw]}, nil
}

// roleProfiles はユーザーIDごとに固定のロールの行を返す。
// 行がないユーザーはメタデータから合成した行を返す。
type roleProfiles map[string]model.Role

func (f roleProfiles) Fetch(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
	r, ok := f[user.ID]
	if !ok {
		return profile.Synthesize(user, time.Now()), nil
	}
	return &model.UserProfile{ID: user.ID, Role: r}, nil
}

// --- ヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// withUser はテスト用に認証済みユーザーと解決済みロールを注入するヘルパー。
func withUser(r *http.Request, userID string, rl model.Role) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	ctx = middleware.ContextWithRole(ctx, rl)
	return r.WithContext(ctx)
}

// jsonBody は値をJSONエンコードしたリクエストボディを返す。
func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}
	return bytes.NewReader(data)
}

// parseAPIErrorResponse はレスポンスボディから統一エラーフォーマットをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}
