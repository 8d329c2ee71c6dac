package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantBody   string
	}{
		{"DBなし", nil, http.StatusOK, `"status":"ok"`},
		{"DB正常", pingerFunc(func(context.Context) error { return nil }), http.StatusOK, `"database":"up"`},
		{"DB停止", pingerFunc(func(context.Context) error { return errors.New("refused") }), http.StatusServiceUnavailable, `"database":"down"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, discardLogger())
			w := httptest.NewRecorder()

			h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want to contain %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}
