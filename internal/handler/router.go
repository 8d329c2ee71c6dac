// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/salonlink/internal/middleware"
	"github.com/hitoshi/salonlink/internal/role"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Verifier           middleware.TokenVerifier
	Profiles           middleware.ProfileEnsurer
	RateLimiter        *middleware.RateLimiter
	CORSAllowedOrigins []string
	HTTPRecorder       middleware.HTTPRecorder

	// 運用
	DB      Pinger
	Metrics http.Handler

	// ドメイン
	ProfileService ProfileFetcher
	StylistService StylistServiceInterface
	AccountService AccountServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → (Auth → RateLimit(General) → RequireRole)
//
// 公開ルートはIPアドレス単位でレート制限する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPRecorder))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins...))

	healthHandler := NewHealthHandler(deps.DB, logger)
	meHandler := NewMeHandler(deps.ProfileService, logger)
	stylistHandler := NewStylistHandler(deps.StylistService, logger)
	accountHandler := NewAccountHandler(deps.AccountService, logger)

	requireStylist := middleware.RequireRole(deps.Profiles, role.StylistOnly, logger)
	requireAdmin := middleware.RequireRole(deps.Profiles, role.AdminOnly, logger)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/stylists/by-user/{userID}", stylistHandler.GetStylistByUser)
		r.Get("/api/stylists/{id}", stylistHandler.GetStylist)
		r.Get("/api/stylists/{id}/services", stylistHandler.ListServices)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Verifier, logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/me", meHandler.Me)

		// スタイリスト（管理者を含む）
		r.Group(func(r chi.Router) {
			r.Use(requireStylist)

			r.Post("/api/stylists", stylistHandler.CreateStylist)
			r.Put("/api/stylists/{id}", stylistHandler.UpdateStylist)

			r.Post("/api/services", stylistHandler.CreateService)
			r.Put("/api/services/{id}", stylistHandler.UpdateService)
			r.Delete("/api/services/{id}", stylistHandler.DeleteService)
		})

		// 管理者
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Delete("/api/stylists/{id}", stylistHandler.DeleteStylist)

			r.Route("/api/admin/accounts", func(r chi.Router) {
				// アカウント作成には専用のレート制限を追加する
				r.With(deps.RateLimiter.AccountMiddleware()).Post("/", accountHandler.CreateAccount)
				r.Delete("/{id}", accountHandler.DeleteAccount)
			})
		})
	})

	return r
}
