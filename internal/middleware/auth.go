// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/salonlink/internal/identity"
	"github.com/hitoshi/salonlink/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	claimsContextKey = contextKey("claims")
	roleContextKey   = contextKey("role")
)

// TokenVerifier はアクセストークンの検証インターフェース。identity.Verifierが実装する。
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*identity.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 検証済みのクレームをリクエストコンテキストに注入する。
// トークンがない、または無効な場合は401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Info("アクセストークンの検証に失敗しました",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ClaimsFromContext はリクエストコンテキストから検証済みクレームを取得する。
func ClaimsFromContext(ctx context.Context) (*identity.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*identity.Claims)
	return c, ok && c != nil
}

// ContextWithClaims はコンテキストにクレームを注入する。
// ロギングミドルウェアの内側であれば、アクセスログにもユーザーIDを記録させる。
func ContextWithClaims(ctx context.Context, c *identity.Claims) context.Context {
	if h, ok := ctx.Value(claimsHolderKey).(*claimsHolder); ok && c != nil {
		h.userID = c.Subject
	}
	return context.WithValue(ctx, claimsContextKey, c)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	c, ok := ClaimsFromContext(ctx)
	if !ok || c.Subject == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return c.Subject, nil
}

// ContextWithUserID はユーザーIDのみを持つクレームをコンテキストに注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithClaims(ctx, &identity.Claims{Subject: userID})
}

// RoleFromContext はRequireRoleが解決したロールを取得する。
func RoleFromContext(ctx context.Context) (model.Role, bool) {
	r, ok := ctx.Value(roleContextKey).(model.Role)
	return r, ok
}

// ContextWithRole はコンテキストに解決済みロールを注入する。
func ContextWithRole(ctx context.Context, r model.Role) context.Context {
	return context.WithValue(ctx, roleContextKey, r)
}
