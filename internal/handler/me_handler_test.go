package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/salonlink/internal/identity"
	"github.com/hitoshi/salonlink/internal/middleware"
	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/role"
)

func TestMeHandler_Me_ReturnsProfileAndDashboard(t *testing.T) {
	fetcher := &mockProfileFetcher{
		fetchFn: func(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
			if user.ID != "user-1" || user.Email != "a@example.com" {
				t.Errorf("unexpected user: %+v", user)
			}
			return &model.UserProfile{ID: user.ID, Role: model.RoleStylist}, nil
		},
	}
	h := NewMeHandler(fetcher, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(middleware.ContextWithClaims(req.Context(), &identity.Claims{Subject: "user-1", Email: "a@example.com"}))
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body meResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Role != model.RoleStylist || body.DashboardPath != role.PathStylist {
		t.Errorf("role = %q, dashboard = %q", body.Role, body.DashboardPath)
	}
	if body.Profile == nil || body.Profile.ID != "user-1" {
		t.Errorf("profile = %+v", body.Profile)
	}
}

func TestMeHandler_Me_NoClaims_ReturnsUnauthorized(t *testing.T) {
	h := NewMeHandler(&mockProfileFetcher{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMeHandler_Me_BackendError(t *testing.T) {
	fetcher := &mockProfileFetcher{
		fetchFn: func(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
			return nil, model.NewBackendUnavailableError("database is down")
		},
	}
	h := NewMeHandler(fetcher, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if body := parseAPIErrorResponse(t, w); body.Code != model.ErrCodeBackendUnavailable {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeBackendUnavailable)
	}
}
