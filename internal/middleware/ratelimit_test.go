package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		AccountRate:     1,
		AccountBurst:    1,
		CleanupInterval: time.Minute,
	}
}

func requestAsUser(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	return req
}

func TestRateLimiter_General_AllowsBurstThenRejects(t *testing.T) {
	rec := &mockRecorder{}
	rl := NewRateLimiter(testRateLimiterConfig(), discardLogger(), rec)
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAsUser("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAsUser("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if ra := w.Header().Get("Retry-After"); ra != "1" {
		t.Errorf("Retry-After = %q, want %q", ra, "1")
	}
	body := decodeErrorBody(t, w)
	if body.Code != "RATE_LIMITED" || !body.Recoverable {
		t.Errorf("unexpected body: %+v", body)
	}
	if len(rec.rateLimited) != 1 || rec.rateLimited[0] != ScopeGeneral {
		t.Errorf("recorded = %v, want [general]", rec.rateLimited)
	}
}

// ユーザーごとに独立したバケットを持つ
func TestRateLimiter_General_IndependentPerUser(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(), discardLogger(), nil)
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestAsUser("user-1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAsUser("user-2"))
	if w.Code != http.StatusOK {
		t.Errorf("user-2 status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := rl.LimiterCount(ScopeGeneral); got != 2 {
		t.Errorf("LimiterCount = %d, want 2", got)
	}
}

// 未認証リクエストはクライアントIPで制限する
func TestRateLimiter_Unauthenticated_KeyedByIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(), discardLogger(), nil)
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	send := func(addr string) int {
		req := requestAsUser("")
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	send("198.51.100.7:1111")
	send("198.51.100.7:2222")
	if code := send("198.51.100.7:3333"); code != http.StatusTooManyRequests {
		t.Errorf("same IP third request = %d, want %d", code, http.StatusTooManyRequests)
	}
	if code := send("203.0.113.9:1111"); code != http.StatusOK {
		t.Errorf("other IP = %d, want %d", code, http.StatusOK)
	}
}

// アカウント管理の制限はAPI全般と独立している
func TestRateLimiter_Account_IndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(), discardLogger(), nil)
	defer rl.Stop()
	general := rl.GeneralMiddleware()(okHandler())
	account := rl.AccountMiddleware()(okHandler())

	w := httptest.NewRecorder()
	account.ServeHTTP(w, requestAsUser("admin-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first account request = %d", w.Code)
	}
	w = httptest.NewRecorder()
	account.ServeHTTP(w, requestAsUser("admin-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second account request = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestAsUser("admin-1"))
	if w.Code != http.StatusOK {
		t.Errorf("general request = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(), discardLogger(), nil)
	defer rl.Stop()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAsUser("user-1"))

	rl.cleanup(time.Now())
	if got := rl.LimiterCount(ScopeGeneral); got != 1 {
		t.Fatalf("fresh entry evicted: count = %d", got)
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if got := rl.LimiterCount(ScopeGeneral); got != 0 {
		t.Errorf("idle entry not evicted: count = %d", got)
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(120, 10)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d, want 2/120", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AccountBurst != 10 {
		t.Errorf("account burst = %d, want 10", cfg.AccountBurst)
	}

	rl := NewRateLimiter(cfg, nil, nil)
	rl.Stop()
	rl.Stop()
}
