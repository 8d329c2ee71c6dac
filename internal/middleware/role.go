package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/role"
)

// ProfileEnsurer はロール判定の対象となるプロフィールを返すインターフェース。
// 未作成の場合は作成して返す。profile.Serviceが満たす。
type ProfileEnsurer interface {
	Fetch(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error)
}

// RequireRole はガードに従ってロールを検証するミドルウェアを返す。
// プロフィール行を確定させてから、その行のロールのみで判定する。
// 未認証の場合は401、ロール不一致の場合は403をナビゲーション付きで返す。
// 解決したロールはリクエストコンテキストに注入する。
func RequireRole(profiles ProfileEnsurer, guard role.Guard, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				decision := guard.Evaluate(role.Input{Settled: true})
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(), decision.Actions...)
				return
			}

			p, err := profiles.Fetch(r.Context(), claims.User())
			if err != nil {
				logger.Error("ロール解決のためのプロフィール取得に失敗しました",
					slog.String("user_id", claims.Subject),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			// トークンのメタデータは参照しない
			resolved := role.Resolve(p, nil)

			decision := guard.Evaluate(role.Input{
				Settled:        true,
				SessionPresent: true,
				Role:           resolved,
			})
			if decision.Outcome != role.OutcomeRender {
				logger.Warn("権限のないロールによるアクセスを拒否しました",
					slog.String("user_id", claims.Subject),
					slog.String("role", string(resolved)),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError(), decision.Actions...)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithRole(r.Context(), resolved)))
		})
	}
}
